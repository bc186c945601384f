package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientDisabledOnEmptyEndpoint(t *testing.T) {
	if c := NewClient(""); c != nil {
		t.Fatal("expected nil client for empty endpoint")
	}
}

func TestNilClientSendIsSafe(t *testing.T) {
	var c *Client
	resp, err := c.Send(context.Background(), Request{Email: "a@b.co"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Success {
		t.Fatal("disabled client must not report success")
	}
}

func TestSendPostsPayload(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("expected JSON content type, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		json.NewEncoder(w).Encode(Response{Success: true, MessageID: "msg-1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	resp, err := c.Send(context.Background(), Request{
		Email:    "client@example.com",
		FullName: "Test Client",
		Password: "temporary",
		AdditionalData: map[string]any{
			"role": "client",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.MessageID != "msg-1" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got.Email != "client@example.com" || got.FullName != "Test Client" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestSendSurfacesErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(Response{Success: false})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	resp, err := c.Send(context.Background(), Request{Email: "a@b.co"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Success {
		t.Fatal("expected failure")
	}
	if resp.Error == "" {
		t.Fatal("expected error filled from status code")
	}
}
