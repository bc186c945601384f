package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/growthpro/messaging/internal/api/middleware"
	"github.com/growthpro/messaging/internal/models"
)

// ThreadListResponse represents the thread list response.
type ThreadListResponse struct {
	Threads []models.MessageThread `json:"threads"`
}

// ListThreads groups the viewer's messages by thread.
func (h *Handler) ListThreads(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.GetViewerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	threads, err := h.svc.Threads(r.Context(), viewer)
	if err != nil {
		h.ServiceError(w, err)
		return
	}
	if threads == nil {
		threads = []models.MessageThread{}
	}

	h.JSON(w, http.StatusOK, ThreadListResponse{Threads: threads})
}

// GetThread refetches the full exchange between the viewer and one
// counterpart.
func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.GetViewerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	counterpartID, err := uuid.Parse(chi.URLParam(r, "participantID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid participant ID format")
		return
	}

	thread, err := h.svc.GetThread(r.Context(), viewer, counterpartID)
	if err != nil {
		h.ServiceError(w, err)
		return
	}
	if thread == nil {
		h.Error(w, http.StatusNotFound, "no messages with this participant")
		return
	}

	h.JSON(w, http.StatusOK, thread)
}
