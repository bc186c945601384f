package handlers

import (
	"net/http"

	"github.com/growthpro/messaging/internal/api/middleware"
)

// Stats returns the viewer's message counts for the dashboard cards.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.GetViewerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	stats, err := h.svc.FetchStats(r.Context(), viewer)
	if err != nil {
		h.ServiceError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, stats)
}
