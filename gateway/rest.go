package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"chatlink/auth"
	"chatlink/domain"
	"chatlink/errors"
)

// handleConversations returns the caller's conversation list, most
// recently active pair first.
func (h *Handler) handleConversations(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, errors.ErrNotAuthenticated.Error())
		return
	}

	summaries, err := h.index.SummariesFor(identity)
	if err != nil {
		h.log.Error("Conversation list failed", "identity", string(identity), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch conversations")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"conversations": lo.Map(summaries, func(s domain.ConversationSummary, _ int) SummaryPayload {
			return toSummaryPayload(s)
		}),
	})
}

// handleHistory returns the most recent messages with a counterpart,
// oldest first, bounded by the configured page size.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, errors.ErrNotAuthenticated.Error())
		return
	}
	counterpart := domain.Identity(chi.URLParam(r, "counterpart"))
	if counterpart == "" {
		respondError(w, http.StatusBadRequest, errors.ErrMissingCounterpart.Error())
		return
	}

	messages, err := h.store.History(identity, counterpart, h.historyLimit)
	if err != nil {
		h.log.Error("History fetch failed", "identity", string(identity), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"messages": lo.Map(messages, func(m domain.Message, _ int) MessagePayload {
			return toMessagePayload(m)
		}),
	})
}

// handleMarkRead is the idempotent REST form of mark-read.
func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, errors.ErrNotAuthenticated.Error())
		return
	}
	counterpart := domain.Identity(chi.URLParam(r, "counterpart"))
	if counterpart == "" {
		respondError(w, http.StatusBadRequest, errors.ErrMissingCounterpart.Error())
		return
	}

	updated, err := h.receipts.MarkRead(r.Context(), identity, counterpart)
	if err != nil {
		h.log.Error("Mark-read failed", "identity", string(identity), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to mark messages read")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
