package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/growthpro/messaging/internal/api/middleware"
	"github.com/growthpro/messaging/internal/metrics"
	"github.com/growthpro/messaging/internal/models"
)

// ClientListResponse represents the recipient directory response.
type ClientListResponse struct {
	Clients []models.UserSummary `json:"clients"`
}

// ListClients returns the client directory used by broadcast composers.
// Admin staff only.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.GetViewerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !viewer.IsAdmin() {
		h.Error(w, http.StatusForbidden, "operation not permitted")
		return
	}

	users, err := h.svc.ListClients(r.Context())
	if err != nil {
		h.ServiceError(w, err)
		return
	}

	clients := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		clients = append(clients, u.Summary())
	}

	h.JSON(w, http.StatusOK, ClientListResponse{Clients: clients})
}

// ProvisionClientRequest represents the provisioning request body.
type ProvisionClientRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ProvisionClientResponse represents the provisioning response.
type ProvisionClientResponse struct {
	Client  models.UserSummary `json:"client"`
	Created bool               `json:"created"`
}

// ProvisionClient creates a client account with a generated temporary
// password and triggers the welcome email. Admin staff only.
func (h *Handler) ProvisionClient(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.GetViewerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !viewer.IsAdmin() {
		h.Error(w, http.StatusForbidden, "operation not permitted")
		return
	}

	var req ProvisionClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := sanitizeName(req.Name)
	if name == "" {
		h.Error(w, http.StatusUnprocessableEntity, "name is required")
		return
	}
	if !isValidEmail(req.Email) {
		h.Error(w, http.StatusUnprocessableEntity, "invalid email address")
		return
	}

	user, created, err := h.provisioner.Provision(r.Context(), name, req.Email)
	if err != nil {
		h.logger.Error().Err(err).Str("email", req.Email).Msg("provisioning failed")
		h.Error(w, http.StatusInternalServerError, "provisioning failed")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		metrics.ClientsProvisioned.Inc()
	}

	h.JSON(w, status, ProvisionClientResponse{Client: user.Summary(), Created: created})
}
