package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageThread is a derived conversation grouping. It is recomputed from
// flat message rows and never persisted; a thread with zero messages
// cannot exist.
type MessageThread struct {
	ID           string        `json:"id"`
	Participants []UserSummary `json:"participants"`
	Messages     []Message     `json:"messages"` // ascending by created_at
	LastMessage  *Message      `json:"last_message,omitempty"`
	UnreadCount  int           `json:"unread_count"`
}

// ConversationSummary is the admin view: one row per counterpart with the
// most recent direct message preview.
type ConversationSummary struct {
	CounterpartID   uuid.UUID `json:"counterpart_id"`
	CounterpartName string    `json:"counterpart_name"`
	Preview         string    `json:"preview"`
	Subject         string    `json:"subject"`
	LastMessageAt   time.Time `json:"last_message_at"`
	UnreadCount     int       `json:"unread_count"`
}

// MessageStats are the count-only aggregates shown on the dashboard.
type MessageStats struct {
	Total     int64 `json:"total"`
	Unread    int64 `json:"unread"`
	SentToday int64 `json:"sent_today"`
}
