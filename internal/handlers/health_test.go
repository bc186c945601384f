package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestHealthDegradedWithoutBackends(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "degraded" {
		t.Fatalf("expected degraded, got %s", resp.Status)
	}
	if resp.Checks["database"].Status != "fail" || resp.Checks["redis"].Status != "fail" {
		t.Fatalf("expected failing checks, got %+v", resp.Checks)
	}
}

func TestSanitizeName(t *testing.T) {
	if got := sanitizeName("  Acme\x00 Corp  "); got != "Acme Corp" {
		t.Fatalf("expected control characters stripped, got %q", got)
	}
}

func TestIsValidEmail(t *testing.T) {
	if !isValidEmail("user@example.com") {
		t.Fatal("expected valid email accepted")
	}
	for _, bad := range []string{"", "not-an-email", "a@b", "@example.com"} {
		if isValidEmail(bad) {
			t.Fatalf("expected %q rejected", bad)
		}
	}
}
