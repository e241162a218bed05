package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lakesage/lakesage/internal/llm"
	"github.com/lakesage/lakesage/internal/observability"
	"github.com/lakesage/lakesage/internal/warehouse"
)

// NoResultsAnswer is returned without a model call when the query produced
// zero rows; there is nothing for the model to summarize.
const NoResultsAnswer = "The query executed successfully but returned no results."

const maxCellChars = 120

const composerSystemPrompt = "You answer questions about Salesforce data. " +
	"You are given the user's question and the rows a query returned. " +
	"Answer the question directly from those rows in plain language. " +
	"Do not invent values that are not in the rows."

// Composer renders result rows into a natural-language answer with one model
// call. The row representation in the prompt is bounded so large result sets
// do not blow up latency or cost.
type Composer struct {
	client         llm.Client
	promptRowLimit int
}

func NewComposer(client llm.Client, promptRowLimit int) *Composer {
	if promptRowLimit <= 0 {
		promptRowLimit = 50
	}
	return &Composer{client: client, promptRowLimit: promptRowLimit}
}

func (c *Composer) Compose(ctx context.Context, question string, result warehouse.Result) (string, error) {
	if len(result.Rows) == 0 {
		return NoResultsAnswer, nil
	}

	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nQuery result:\n")
	b.WriteString(renderRows(result, c.promptRowLimit))

	start := time.Now()
	raw, err := c.client.Complete(ctx, llm.Request{
		System: composerSystemPrompt,
		User:   b.String(),
	})
	observability.ObserveModelCall("compose", time.Since(start))
	if err != nil {
		return "", &CompositionError{Cause: err}
	}

	answer := strings.TrimSpace(raw)
	if answer == "" {
		return "", &CompositionError{Cause: fmt.Errorf("model returned an empty answer")}
	}
	return answer, nil
}

func renderRows(result warehouse.Result, limit int) string {
	var b strings.Builder
	b.WriteString(strings.Join(result.Columns, " | "))
	b.WriteString("\n")

	shown := len(result.Rows)
	if shown > limit {
		shown = limit
	}
	for _, row := range result.Rows[:shown] {
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = formatCell(value)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}
	if hidden := len(result.Rows) - shown; hidden > 0 {
		b.WriteString(fmt.Sprintf("... (%d more rows not shown)\n", hidden))
	}
	return b.String()
}

func formatCell(value any) string {
	if value == nil {
		return "NULL"
	}
	text := fmt.Sprintf("%v", value)
	if utf8.RuneCountInString(text) <= maxCellChars {
		return text
	}
	// Truncate on rune boundaries so a split multi-byte character never puts
	// invalid UTF-8 into the prompt.
	return string([]rune(text)[:maxCellChars]) + "..."
}
