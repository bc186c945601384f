package handlers

import (
	"net/http"

	"github.com/growthpro/messaging/internal/api/middleware"
	"github.com/growthpro/messaging/internal/models"
)

// ConversationListResponse represents the conversation list response.
type ConversationListResponse struct {
	Conversations []models.ConversationSummary `json:"conversations"`
}

// ListConversations handles the per-counterpart inbox rollup. Admin
// staff only.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.GetViewerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	summaries, err := h.svc.FetchConversations(r.Context(), viewer)
	if err != nil {
		h.ServiceError(w, err)
		return
	}
	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}

	h.JSON(w, http.StatusOK, ConversationListResponse{Conversations: summaries})
}
