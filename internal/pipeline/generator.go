package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lakesage/lakesage/internal/llm"
	"github.com/lakesage/lakesage/internal/observability"
	"github.com/lakesage/lakesage/internal/schema"
)

// Generator asks the language model for one SQL SELECT statement grounded in
// the schema catalog. On retry, the most recent failures are replayed into
// the prompt so the model can correct itself.
type Generator struct {
	client  llm.Client
	catalog *schema.Catalog
}

func NewGenerator(client llm.Client, catalog *schema.Catalog) *Generator {
	return &Generator{client: client, catalog: catalog}
}

// maxFeedbackAttempts bounds how many prior failures are replayed into the
// prompt; older ones add tokens without adding signal.
const maxFeedbackAttempts = 2

func (g *Generator) Generate(ctx context.Context, question string, prior []AttemptRecord) (CandidateQuery, error) {
	if strings.TrimSpace(question) == "" {
		return CandidateQuery{}, &GenerationError{Cause: fmt.Errorf("question is required")}
	}

	start := time.Now()
	raw, err := g.client.Complete(ctx, llm.Request{
		System: g.systemPrompt(),
		User:   userPrompt(question, prior),
	})
	observability.ObserveModelCall("generate", time.Since(start))
	if err != nil {
		return CandidateQuery{}, &GenerationError{Cause: err}
	}

	candidate, err := parseCandidate(raw)
	if err != nil {
		return CandidateQuery{}, &GenerationError{Cause: err}
	}
	return candidate, nil
}

func (g *Generator) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You translate questions about Salesforce data into SQL.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Produce exactly one SELECT statement. Never write data.\n")
	b.WriteString("- Only use the tables and columns listed below.\n")
	b.WriteString("- Respond with a JSON object {\"sql\": \"...\", \"intent\": \"...\"} and nothing else. ")
	b.WriteString("The intent is a one-sentence restatement of what the query answers.\n\n")
	b.WriteString("Schema:\n")
	b.WriteString(g.catalog.PromptContext())

	if g.catalogHasHistoryTables() {
		b.WriteString("\nTables with grax__idseq and grax__deleted columns hold every historical ")
		b.WriteString("version of each record. To query only the latest live rows, filter with a ")
		b.WriteString("row-number subquery, for example:\n")
		b.WriteString("SELECT * FROM (\n")
		b.WriteString("  SELECT *, ROW_NUMBER() OVER (PARTITION BY Id ORDER BY grax__idseq DESC) AS rn\n")
		b.WriteString("  FROM object_account\n")
		b.WriteString(") t WHERE rn = 1 AND NOT grax__deleted\n")
	}
	return b.String()
}

func (g *Generator) catalogHasHistoryTables() bool {
	for _, table := range g.catalog.Tables() {
		if table.HasHistoryColumns() {
			return true
		}
	}
	return false
}

func userPrompt(question string, prior []AttemptRecord) string {
	if len(prior) == 0 {
		return "Question: " + question
	}

	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nPrevious attempts failed. Fix the problems and try again.\n")

	feedback := prior
	if len(feedback) > maxFeedbackAttempts {
		feedback = feedback[len(feedback)-maxFeedbackAttempts:]
	}
	for _, record := range feedback {
		b.WriteString(fmt.Sprintf("\nAttempt %d query:\n%s\nFailure: %s\n", record.Attempt, record.Query.SQL, record.FailureReason()))
	}
	return b.String()
}

func parseCandidate(raw string) (CandidateQuery, error) {
	cleaned := llm.StripMarkdownFence(raw)
	if strings.TrimSpace(cleaned) == "" {
		return CandidateQuery{}, fmt.Errorf("model returned an empty response")
	}

	var payload struct {
		SQL    string `json:"sql"`
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return CandidateQuery{}, fmt.Errorf("model response is not valid JSON: %w", err)
	}
	if strings.TrimSpace(payload.SQL) == "" {
		return CandidateQuery{}, fmt.Errorf("model response has an empty sql field")
	}
	return CandidateQuery{
		SQL:    strings.TrimSpace(payload.SQL),
		Intent: strings.TrimSpace(payload.Intent),
	}, nil
}
