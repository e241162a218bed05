package history

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("interaction not found")

// Interaction is one answered (or failed) question, kept for auditing.
// AttemptLog holds the per-attempt records as JSON.
type Interaction struct {
	ID         int64
	Question   string
	Answer     string
	Answered   bool
	Attempts   int
	AttemptLog []byte
	CreatedAt  time.Time
}

type RecordInput struct {
	Question   string
	Answer     string
	Answered   bool
	Attempts   int
	AttemptLog []byte
}

type Repository interface {
	RecordInteraction(ctx context.Context, in RecordInput) (Interaction, error)
	ListRecent(ctx context.Context, limit int) ([]Interaction, error)
	HealthCheck(ctx context.Context) error
}
