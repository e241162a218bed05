package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lakesage/lakesage/internal/history"
	"github.com/lakesage/lakesage/internal/observability"
	"github.com/lakesage/lakesage/internal/warehouse"
)

type queryGenerator interface {
	Generate(ctx context.Context, question string, prior []AttemptRecord) (CandidateQuery, error)
}

type queryValidator interface {
	Validate(candidate CandidateQuery) ValidationResult
}

type queryExecutor interface {
	Execute(ctx context.Context, candidate CandidateQuery, tables []string) (warehouse.Result, error)
}

type answerComposer interface {
	Compose(ctx context.Context, question string, result warehouse.Result) (string, error)
}

type orchestratorState int

const (
	stateGenerating orchestratorState = iota
	stateValidating
	stateExecuting
	stateRetrying
	stateSucceeded
	stateFailed
)

const DefaultMaxAttempts = 3

type OrchestratorConfig struct {
	MaxAttempts int
	Logger      *slog.Logger
	History     history.Repository
}

// Orchestrator drives the generate-validate-execute loop for one question at
// a time. Attempts are strictly sequential; each failed attempt's reason
// feeds the next generation call. Concurrent questions are independent, so a
// single Orchestrator is safe for concurrent use.
type Orchestrator struct {
	generator   queryGenerator
	validator   queryValidator
	executor    queryExecutor
	composer    answerComposer
	maxAttempts int
	logger      *slog.Logger
	history     history.Repository
}

func NewOrchestrator(generator queryGenerator, validator queryValidator, executor queryExecutor, composer answerComposer, cfg OrchestratorConfig) *Orchestrator {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		generator:   generator,
		validator:   validator,
		executor:    executor,
		composer:    composer,
		maxAttempts: maxAttempts,
		logger:      logger,
		history:     cfg.History,
	}
}

func (o *Orchestrator) MaxAttempts() int { return o.maxAttempts }

func (o *Orchestrator) AnswerQuestion(ctx context.Context, question string) (Answer, error) {
	if strings.TrimSpace(question) == "" {
		return Answer{}, fmt.Errorf("question is required")
	}

	logger := o.logger.With(slog.String("trace_id", observability.TraceIDFromContext(ctx)))
	start := time.Now()
	observability.ObserveQuestionStart()

	var (
		attempts   []AttemptRecord
		attempt    int
		candidate  CandidateQuery
		validation ValidationResult
		result     warehouse.Result
	)

	state := stateGenerating
	for {
		switch state {
		case stateGenerating:
			if err := ctx.Err(); err != nil {
				observability.ObserveQuestionDone(false, time.Since(start))
				return Answer{}, err
			}
			attempt++
			observability.ObserveAttempt()
			generated, err := o.generator.Generate(ctx, question, attempts)
			if err != nil {
				logger.Error("query generation failed", slog.Int("attempt", attempt), slog.Any("error", err))
				observability.ObserveQuestionDone(false, time.Since(start))
				return Answer{}, err
			}
			generated.Attempt = attempt
			candidate = generated
			logger.Debug("candidate generated",
				slog.Int("attempt", attempt),
				slog.String("intent", candidate.Intent))
			state = stateValidating

		case stateValidating:
			validation = o.validator.Validate(candidate)
			if !validation.OK {
				observability.ObserveValidationFailure()
				logger.Info("candidate rejected",
					slog.Int("attempt", attempt),
					slog.String("reason", validation.Reason))
				attempts = append(attempts, AttemptRecord{
					Attempt:    attempt,
					Query:      candidate,
					Validation: validation,
				})
				state = stateRetrying
				continue
			}
			state = stateExecuting

		case stateExecuting:
			executed, err := o.executor.Execute(ctx, candidate, validation.Tables)
			if err != nil {
				if ctx.Err() != nil {
					observability.ObserveQuestionDone(false, time.Since(start))
					return Answer{}, ctx.Err()
				}
				observability.ObserveExecutionError()
				logger.Info("query execution failed",
					slog.Int("attempt", attempt),
					slog.String("error", err.Error()))
				attempts = append(attempts, AttemptRecord{
					Attempt:    attempt,
					Query:      candidate,
					Validation: validation,
					ExecError:  err.Error(),
				})
				state = stateRetrying
				continue
			}
			result = executed
			attempts = append(attempts, AttemptRecord{
				Attempt:    attempt,
				Query:      candidate,
				Validation: validation,
			})
			logger.Info("query executed",
				slog.Int("attempt", attempt),
				slog.Int("rows", len(result.Rows)),
				slog.Duration("engine_duration", result.Duration))
			state = stateSucceeded

		case stateRetrying:
			if attempt >= o.maxAttempts {
				state = stateFailed
				continue
			}
			state = stateGenerating

		case stateSucceeded:
			text, err := o.composer.Compose(ctx, question, result)
			if err != nil {
				logger.Error("answer composition failed", slog.Any("error", err))
				observability.ObserveQuestionDone(false, time.Since(start))
				return Answer{}, err
			}
			answer := Answer{Text: text, Result: result, Attempts: attempts}
			observability.ObserveQuestionDone(true, time.Since(start))
			o.recordInteraction(ctx, logger, question, answer.Text, attempts, true)
			return answer, nil

		case stateFailed:
			observability.ObserveRetryExhausted()
			observability.ObserveQuestionDone(false, time.Since(start))
			logger.Warn("retry budget exhausted",
				slog.Int("attempts", len(attempts)))
			o.recordInteraction(ctx, logger, question, "", attempts, false)
			return Answer{}, &RetryExhaustedError{Attempts: attempts}
		}
	}
}

// recordInteraction persists the outcome for auditing. Failures to write
// history never fail the question.
func (o *Orchestrator) recordInteraction(ctx context.Context, logger *slog.Logger, question, answer string, attempts []AttemptRecord, answered bool) {
	if o.history == nil {
		return
	}
	attemptLog, err := json.Marshal(attempts)
	if err != nil {
		logger.Warn("marshal attempt log failed", slog.Any("error", err))
		attemptLog = []byte("[]")
	}
	if _, err := o.history.RecordInteraction(ctx, history.RecordInput{
		Question:   question,
		Answer:     answer,
		Answered:   answered,
		Attempts:   len(attempts),
		AttemptLog: attemptLog,
	}); err != nil {
		logger.Warn("record interaction failed", slog.Any("error", err))
	}
}
