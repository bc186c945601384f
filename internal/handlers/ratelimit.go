package handlers

import (
	"net/http"

	"github.com/growthpro/messaging/internal/api/middleware"
)

// RateLimit returns the viewer's current send quota for display next to
// the compose form.
func (h *Handler) RateLimit(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.GetViewerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	info, err := h.svc.RateLimit(r.Context(), viewer)
	if err != nil {
		h.ServiceError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, info)
}
