package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/studyowl/studyowl/internal/engine"
)

// maxRequestBody caps the answer request payload at 64 KiB; questions are
// short.
const maxRequestBody = 64 << 10

// Answerer runs a question through the answering pipeline.
type Answerer interface {
	Answer(ctx context.Context, userID, query string) (engine.Result, error)
}

type answerRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
}

type answerHandler struct {
	engine Answerer
	logger *slog.Logger
}

// answer handles POST /api/v1/answer.
func (h *answerHandler) answer(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		code, message := "invalid_json", "request body must be valid JSON"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			code, message = "body_too_large", "request body too large"
		}
		WriteError(w, http.StatusBadRequest, code, message, h.logger)
		return
	}
	_, _ = io.Copy(io.Discard, r.Body)

	result, err := h.engine.Answer(r.Context(), req.UserID, req.Query)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrEmptyQuery):
			WriteError(w, http.StatusBadRequest, "empty_query", "query must not be empty", h.logger)
		case errors.Is(err, engine.ErrEmptyUser):
			WriteError(w, http.StatusBadRequest, "empty_user", "user_id must not be empty", h.logger)
		default:
			h.logger.Error("answering query failed",
				"error", err,
				"request_id", requestIDFromContext(r.Context()),
			)
			WriteError(w, http.StatusInternalServerError, "answer_failed", "could not answer the question", h.logger)
		}
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
