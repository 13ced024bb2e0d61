package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/foodhub/internal/domain"
	"github.com/V4T54L/foodhub/internal/usecase"
)

// AdminHandler handles HTTP requests for event stream administration.
type AdminHandler struct {
	uc     *usecase.AdminStreamUseCase
	logger *slog.Logger
}

// NewAdminHandler returns a handler backed by the stream admin use case.
func NewAdminHandler(uc *usecase.AdminStreamUseCase, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{uc: uc, logger: logger.With("component", "admin_handler")}
}

// HealthCheck reports that the notifier process is up.
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// GetGroupInfo lists the consumer groups reading an event topic.
// GET /admin/streams/{stream}/groups
func (h *AdminHandler) GetGroupInfo(w http.ResponseWriter, r *http.Request) {
	groups, err := h.uc.GetGroupInfo(r.Context(), chi.URLParam(r, "stream"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, groups)
}

// GetConsumerInfo lists the consumers of one group.
// GET /admin/streams/{stream}/groups/{group}/consumers
func (h *AdminHandler) GetConsumerInfo(w http.ResponseWriter, r *http.Request) {
	consumers, err := h.uc.GetConsumerInfo(r.Context(), chi.URLParam(r, "stream"), chi.URLParam(r, "group"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, consumers)
}

// GetPendingSummary reports how many events a group has read but not acked.
// GET /admin/streams/{stream}/groups/{group}/pending
func (h *AdminHandler) GetPendingSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.uc.GetPendingSummary(r.Context(), chi.URLParam(r, "stream"), chi.URLParam(r, "group"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, summary)
}

// GetPendingMessages lists unacked events, optionally for one consumer or
// one restaurant.
// GET /admin/streams/{stream}/groups/{group}/pending/messages?consumer=&scopeId=&start=&count=
func (h *AdminHandler) GetPendingMessages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var count int64
	if raw := query.Get("count"); raw != "" {
		var err error
		count, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondWithError(w, h.logger, domain.NewValidationError("count", "must be an integer"))
			return
		}
	}

	messages, err := h.uc.GetPendingMessages(r.Context(), chi.URLParam(r, "stream"), chi.URLParam(r, "group"), domain.PendingQuery{
		Consumer: query.Get("consumer"),
		ScopeID:  query.Get("scopeId"),
		StartID:  query.Get("start"),
		Count:    count,
	})
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, messages)
}

// ClaimMessages moves idle unacked events to another consumer.
// POST /admin/streams/{stream}/groups/{group}/claim
func (h *AdminHandler) ClaimMessages(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Consumer    string   `json:"consumer"`
		MinIdleTime string   `json:"minIdleTime"`
		MessageIDs  []string `json:"messageIds"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	minIdle, err := time.ParseDuration(payload.MinIdleTime)
	if err != nil {
		respondWithError(w, h.logger, domain.NewValidationError("minIdleTime", "must be a duration such as 30s"))
		return
	}

	claimed, err := h.uc.ClaimMessages(r.Context(), chi.URLParam(r, "stream"), chi.URLParam(r, "group"), payload.Consumer, minIdle, payload.MessageIDs)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, claimed)
}

// AcknowledgeMessages acks events by stream message id.
// POST /admin/streams/{stream}/groups/{group}/ack
func (h *AdminHandler) AcknowledgeMessages(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MessageIDs []string `json:"messageIds"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	count, err := h.uc.AcknowledgeMessages(r.Context(), chi.URLParam(r, "stream"), chi.URLParam(r, "group"), payload.MessageIDs...)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]int64{"acknowledged": count})
}

// TrimStream caps the topic at maxLen entries.
// POST /admin/streams/{stream}/trim
func (h *AdminHandler) TrimStream(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MaxLen int64 `json:"maxLen"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	trimmed, err := h.uc.TrimStream(r.Context(), chi.URLParam(r, "stream"), payload.MaxLen)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]int64{"trimmed": trimmed})
}
