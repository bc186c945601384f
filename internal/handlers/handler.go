package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/growthpro/messaging/internal/accounts"
	"github.com/growthpro/messaging/internal/messaging"
	"github.com/growthpro/messaging/internal/realtime"
	"github.com/growthpro/messaging/internal/store"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	svc         *messaging.Service
	store       store.DataStore
	redis       *store.RedisStore
	hub         *realtime.Hub
	provisioner *accounts.Provisioner
	logger      zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(svc *messaging.Service, st store.DataStore, redis *store.RedisStore, hub *realtime.Hub, provisioner *accounts.Provisioner, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:         svc,
		store:       st,
		redis:       redis,
		hub:         hub,
		provisioner: provisioner,
		logger:      logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// ServiceError maps messaging service failures onto HTTP responses.
func (h *Handler) ServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, messaging.ErrForbidden):
		h.Error(w, http.StatusForbidden, "operation not permitted")
	case messaging.IsValidation(err):
		h.Error(w, http.StatusUnprocessableEntity, err.Error())
	case messaging.IsRateLimited(err):
		var re *messaging.RateLimitError
		errors.As(err, &re)
		h.JSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":      err.Error(),
			"rate_limit": re.Info,
		})
	default:
		h.logger.Error().Err(err).Msg("request failed")
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// sanitizeName trims and limits name to 100 characters, removing control characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	if len(name) > 100 {
		name = name[:100]
	}

	return name
}

// isValidEmail validates email addresses using RFC 5322 pattern.
func isValidEmail(email string) bool {
	if email == "" {
		return false
	}
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}
