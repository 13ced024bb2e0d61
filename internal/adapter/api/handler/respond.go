package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/V4T54L/foodhub/internal/domain"
)

// Headers that expose the side-effect outcome of a committed mutation.
const (
	HeaderMutationState  = "X-Mutation-State"
	HeaderCacheOutcome   = "X-Cache-Outcome"
	HeaderPublishOutcome = "X-Publish-Outcome"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithError maps the error taxonomy onto HTTP status codes.
func respondWithError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithJSON(w, logger, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, domain.ErrValidation):
		respondWithJSON(w, logger, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		respondWithJSON(w, logger, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		respondWithJSON(w, logger, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrUnavailable), errors.Is(err, domain.ErrTimeout):
		logger.Error("backing store unavailable", "error", err)
		respondWithJSON(w, logger, http.StatusServiceUnavailable, errorResponse{Error: "service unavailable"})
	default:
		logger.Error("unhandled request error", "error", err)
		respondWithJSON(w, logger, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// respondWithMutation writes the committed entity. Degraded side effects are
// reported in headers only; the write itself succeeded.
func respondWithMutation(w http.ResponseWriter, logger *slog.Logger, code int, result domain.MutationResult) {
	w.Header().Set(HeaderMutationState, string(result.State))
	w.Header().Set(HeaderCacheOutcome, string(result.CacheOutcome))
	w.Header().Set(HeaderPublishOutcome, string(result.PublishOutcome))
	if code == http.StatusNoContent {
		w.WriteHeader(code)
		return
	}
	respondWithJSON(w, logger, code, result.Entity)
}

// decodeJSON decodes a bounded request body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("body", "cannot be empty")
		}
		return domain.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}
