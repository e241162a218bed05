package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lakesage/lakesage/internal/history"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

func (r *Repository) RecordInteraction(ctx context.Context, in history.RecordInput) (history.Interaction, error) {
	attemptLog := in.AttemptLog
	if len(attemptLog) == 0 {
		attemptLog = []byte("[]")
	}

	query := `
INSERT INTO interaction (question, answer, answered, attempts, attempt_log)
VALUES ($1, $2, $3, $4, $5::jsonb)
RETURNING interaction_id, created_at`

	var interaction history.Interaction
	interaction.Question = in.Question
	interaction.Answer = in.Answer
	interaction.Answered = in.Answered
	interaction.Attempts = in.Attempts
	interaction.AttemptLog = attemptLog

	if err := r.db.QueryRowContext(ctx, query, in.Question, in.Answer, in.Answered, in.Attempts, string(attemptLog)).Scan(
		&interaction.ID,
		&interaction.CreatedAt,
	); err != nil {
		return history.Interaction{}, fmt.Errorf("record interaction: %w", err)
	}
	return interaction, nil
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]history.Interaction, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT interaction_id, question, answer, answered, attempts, attempt_log, created_at
FROM interaction
ORDER BY interaction_id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	interactions := make([]history.Interaction, 0)
	for rows.Next() {
		var interaction history.Interaction
		if err := rows.Scan(
			&interaction.ID,
			&interaction.Question,
			&interaction.Answer,
			&interaction.Answered,
			&interaction.Attempts,
			&interaction.AttemptLog,
			&interaction.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan interaction row: %w", err)
		}
		interactions = append(interactions, interaction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interaction rows: %w", err)
	}
	return interactions, nil
}
