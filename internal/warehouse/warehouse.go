package warehouse

import (
	"context"
	"time"
)

// Request names the tables a statement may touch. The engine resolves each
// table to its parquet files in the object store before executing.
type Request struct {
	SQL      string
	RowLimit int
	Tables   []string
}

type Result struct {
	Columns      []string
	Rows         [][]any
	ScannedFiles int
	ScannedBytes int64
	Duration     time.Duration
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}
