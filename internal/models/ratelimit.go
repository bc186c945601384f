package models

import (
	"time"

	"github.com/google/uuid"
)

// SendWindow is the server-maintained per-user counter row backing the
// hourly send quota. The store resets it lazily when the window expires.
type SendWindow struct {
	UserID       uuid.UUID `json:"user_id"`
	MessageCount int       `json:"message_count"`
	ResetAt      time.Time `json:"reset_at"`
}

// RateLimitInfo is the quota projection derived from a SendWindow. It is
// always recomputed from the authoritative counter, never decremented
// locally on optimistic sends.
type RateLimitInfo struct {
	Limit     int       `json:"limit"`
	Count     int       `json:"count"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// EventType labels a realtime change notification.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
)

// MessageEvent is the payload pushed over the realtime channel when a
// message row is inserted or updated.
type MessageEvent struct {
	Type    EventType `json:"type"`
	Message Message   `json:"message"`
}
