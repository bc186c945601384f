package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/growthpro/messaging/internal/api/middleware"
	"github.com/growthpro/messaging/internal/messaging"
	"github.com/growthpro/messaging/internal/models"
)

// SendMessageRequest represents the send request body.
type SendMessageRequest struct {
	Kind         string   `json:"kind"` // direct or broadcast
	RecipientIDs []string `json:"recipient_ids"`
	Subject      string   `json:"subject"`
	Content      string   `json:"content"`
	Priority     string   `json:"priority,omitempty"`
	ThreadID     string   `json:"thread_id,omitempty"`
}

// MessageListResponse represents the message list response.
type MessageListResponse struct {
	Messages []models.Message `json:"messages"`
	Unread   int              `json:"unread"`
}

// ListMessages handles fetching the viewer's messages, newest first.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.GetViewerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	messages, err := h.svc.FetchMessages(r.Context(), viewer, limit)
	if err != nil {
		h.ServiceError(w, err)
		return
	}

	unread := 0
	for _, m := range messages {
		if m.ReceiverID != nil && *m.ReceiverID == viewer.ID && !m.IsRead() {
			unread++
		}
	}

	h.JSON(w, http.StatusOK, MessageListResponse{Messages: messages, Unread: unread})
}

// SendMessage handles creating a direct or broadcast message.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.GetViewerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	recipients := make([]uuid.UUID, 0, len(req.RecipientIDs))
	for _, raw := range req.RecipientIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid recipient ID format")
			return
		}
		recipients = append(recipients, id)
	}

	messages, err := h.svc.Send(r.Context(), viewer, messaging.SendRequest{
		Kind:         models.MessageKind(req.Kind),
		RecipientIDs: recipients,
		Subject:      req.Subject,
		Content:      req.Content,
		Priority:     models.Priority(req.Priority),
		ThreadID:     req.ThreadID,
	})
	if err != nil {
		h.ServiceError(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, map[string]interface{}{"messages": messages})
}

// MarkMessageRead handles recording a read receipt for one message.
func (h *Handler) MarkMessageRead(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.GetViewerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	messageID := chi.URLParam(r, "id")
	if messageID == "" {
		h.Error(w, http.StatusBadRequest, "message ID is required")
		return
	}

	if err := h.svc.MarkRead(r.Context(), viewer, messageID); err != nil {
		h.ServiceError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}
