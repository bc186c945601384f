package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/growthpro/messaging/internal/models"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func authedRequest(t *testing.T, token string) (*httptest.ResponseRecorder, models.Viewer, bool) {
	t.Helper()

	var viewer models.Viewer
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer, ok = GetViewerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/messages", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	NewAuthMiddleware(testSecret).RequireAuth(next).ServeHTTP(rec, req)
	return rec, viewer, ok
}

func TestRequireAuthValidToken(t *testing.T) {
	id := uuid.New()
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  id.String(),
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	rec, viewer, ok := authedRequest(t, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !ok {
		t.Fatal("expected viewer in context")
	}
	if viewer.ID != id || viewer.Role != models.RoleAdmin {
		t.Fatalf("unexpected viewer %+v", viewer)
	}
}

func TestRequireAuthMissingToken(t *testing.T) {
	rec, _, ok := authedRequest(t, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if ok {
		t.Fatal("no viewer should be set")
	}
}

func TestRequireAuthWrongSecret(t *testing.T) {
	token := signToken(t, "other-secret", jwt.MapClaims{
		"sub":  uuid.New().String(),
		"role": "client",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	rec, _, _ := authedRequest(t, token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuthExpiredToken(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  uuid.New().String(),
		"role": "client",
		"exp":  time.Now().Add(-time.Hour).Unix(),
	})
	rec, _, _ := authedRequest(t, token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuthUnknownRole(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  uuid.New().String(),
		"role": "superuser",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	rec, _, _ := authedRequest(t, token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuthQueryTokenForWebsocket(t *testing.T) {
	id := uuid.New()
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  id.String(),
		"role": "client",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = GetViewerFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	rec := httptest.NewRecorder()
	NewAuthMiddleware(testSecret).RequireAuth(next).ServeHTTP(rec, req)
	if !ok {
		t.Fatal("expected query-parameter token accepted")
	}
}
