package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/lakesage/lakesage/internal/warehouse"
)

// Executor submits a validated candidate to the warehouse engine. It never
// retries; the orchestrator owns the retry policy. Engine errors come back as
// ExecutionError with the engine's text verbatim so the failure can drive the
// next generation attempt.
type Executor struct {
	engine   warehouse.Engine
	timeout  time.Duration
	rowLimit int
}

func NewExecutor(engine warehouse.Engine, timeout time.Duration, rowLimit int) *Executor {
	return &Executor{engine: engine, timeout: timeout, rowLimit: rowLimit}
}

func (e *Executor) Execute(ctx context.Context, candidate CandidateQuery, tables []string) (warehouse.Result, error) {
	execCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	result, err := e.engine.Execute(execCtx, warehouse.Request{
		SQL:      candidate.SQL,
		RowLimit: e.rowLimit,
		Tables:   tables,
	})
	if err != nil {
		// Caller cancellation is not a query failure; let the
		// orchestrator stop the loop.
		if ctx.Err() != nil {
			return warehouse.Result{}, ctx.Err()
		}
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return warehouse.Result{}, &ExecutionError{Message: "timeout"}
		}
		return warehouse.Result{}, &ExecutionError{Message: err.Error()}
	}
	return result, nil
}
