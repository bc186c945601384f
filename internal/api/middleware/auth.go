package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/growthpro/messaging/internal/models"
)

type contextKey string

const ViewerContextKey contextKey = "viewer"

// AuthMiddleware verifies bearer tokens on authenticated endpoints.
type AuthMiddleware struct {
	secret []byte
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

// RequireAuth verifies the Authorization header and puts the resolved
// viewer in the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			// Browsers cannot set headers on websocket upgrades, so the
			// token may arrive as a query parameter instead.
			if t := r.URL.Query().Get("token"); t != "" {
				header = "Bearer " + t
			}
		}
		if !strings.HasPrefix(header, "Bearer ") {
			jsonError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return m.secret, nil
		})
		if err != nil || !token.Valid {
			jsonError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			jsonError(w, http.StatusUnauthorized, "token missing subject")
			return
		}
		viewerID, err := uuid.Parse(sub)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid subject")
			return
		}

		role, _ := claims["role"].(string)
		viewer := models.Viewer{ID: viewerID, Role: models.Role(role)}
		if viewer.Role != models.RoleAdmin && viewer.Role != models.RoleClient {
			jsonError(w, http.StatusUnauthorized, "unknown role")
			return
		}

		ctx := context.WithValue(r.Context(), ViewerContextKey, viewer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetViewerFromContext retrieves the authenticated viewer from the
// request context. The zero Viewer means the request was not
// authenticated.
func GetViewerFromContext(ctx context.Context) (models.Viewer, bool) {
	viewer, ok := ctx.Value(ViewerContextKey).(models.Viewer)
	return viewer, ok
}
