package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lakesage/lakesage/internal/auth"
	"github.com/lakesage/lakesage/internal/observability"
	"github.com/lakesage/lakesage/internal/pipeline"
)

type askRequest struct {
	Question string `json:"question"`
}

type askAttempt struct {
	Attempt   int    `json:"attempt"`
	SQL       string `json:"sql"`
	Intent    string `json:"intent,omitempty"`
	Succeeded bool   `json:"succeeded"`
	Failure   string `json:"failure,omitempty"`
}

type askResponse struct {
	Answer   string       `json:"answer"`
	SQL      string       `json:"sql"`
	Intent   string       `json:"intent,omitempty"`
	Attempts []askAttempt `json:"attempts"`
	Stats    askStats     `json:"stats"`
}

type askStats struct {
	Rows         int    `json:"rows"`
	ScannedFiles int    `json:"scanned_files"`
	ScannedBytes int64  `json:"scanned_bytes"`
	Duration     string `json:"duration"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if errResp := requireRole(r, auth.RoleAsk); errResp != nil {
		writeError(r.Context(), w, errResp.status, errResp.code, errResp.message, false, nil)
		return
	}
	if deps.Orchestrator == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "PIPELINE_UNAVAILABLE", "question pipeline is not configured", true, nil)
		return
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	var req askRequest
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body: "+err.Error(), false, nil)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question must not be empty", false, nil)
		return
	}

	answer, err := deps.Orchestrator.AnswerQuestion(r.Context(), req.Question)
	if err != nil {
		writeAskError(deps.Logger, w, r, err)
		return
	}

	var final pipeline.AttemptRecord
	if len(answer.Attempts) > 0 {
		final = answer.Attempts[len(answer.Attempts)-1]
	}
	writeJSON(w, http.StatusOK, askResponse{
		Answer:   answer.Text,
		SQL:      final.Query.SQL,
		Intent:   final.Query.Intent,
		Attempts: renderAttempts(answer.Attempts),
		Stats: askStats{
			Rows:         len(answer.Result.Rows),
			ScannedFiles: answer.Result.ScannedFiles,
			ScannedBytes: answer.Result.ScannedBytes,
			Duration:     answer.Result.Duration.String(),
		},
	})
}

func writeAskError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var exhausted *pipeline.RetryExhaustedError
	if errors.As(err, &exhausted) {
		writeError(ctx, w, http.StatusUnprocessableEntity, "RETRY_EXHAUSTED", err.Error(), false, map[string]any{
			"attempts": renderAttempts(exhausted.Attempts),
		})
		return
	}

	var genErr *pipeline.GenerationError
	if errors.As(err, &genErr) {
		writeError(ctx, w, http.StatusBadGateway, "GENERATION_FAILED", err.Error(), true, nil)
		return
	}

	var compErr *pipeline.CompositionError
	if errors.As(err, &compErr) {
		writeError(ctx, w, http.StatusBadGateway, "COMPOSITION_FAILED", err.Error(), true, nil)
		return
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeError(ctx, w, http.StatusServiceUnavailable, "REQUEST_CANCELLED", err.Error(), true, nil)
		return
	}

	if logger != nil {
		logger.ErrorContext(ctx, "ask failed",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("error", err.Error()),
		)
	}
	writeError(ctx, w, http.StatusInternalServerError, "ASK_FAILED", err.Error(), true, nil)
}

func renderAttempts(records []pipeline.AttemptRecord) []askAttempt {
	out := make([]askAttempt, 0, len(records))
	for _, record := range records {
		out = append(out, askAttempt{
			Attempt:   record.Attempt,
			SQL:       record.Query.SQL,
			Intent:    record.Query.Intent,
			Succeeded: record.FailureReason() == "",
			Failure:   record.FailureReason(),
		})
	}
	return out
}

type roleError struct {
	status  int
	code    string
	message string
}

// requireRole enforces role checks only when an identity is present. Requests
// reach handlers without an identity when auth is disabled by configuration.
func requireRole(r *http.Request, role string) *roleError {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if !identity.HasRole(role) {
		return &roleError{status: http.StatusForbidden, code: "FORBIDDEN", message: "role " + role + " is required"}
	}
	return nil
}
