package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind distinguishes one-to-one messages from fanned-out broadcasts.
type MessageKind string

const (
	KindDirect    MessageKind = "direct"
	KindBroadcast MessageKind = "broadcast"
)

// Priority is an optional urgency marker on a message.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// MessageStatus tracks delivery state for direct messages.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Message is the unified message record. A direct message always has a
// non-nil ReceiverID; a broadcast's targets live in message_recipients.
type Message struct {
	ID         string        `json:"id"` // ULID
	SenderID   uuid.UUID     `json:"sender_id"`
	ReceiverID *uuid.UUID    `json:"receiver_id,omitempty"`
	Subject    string        `json:"subject"`
	Content    string        `json:"content"`
	Kind       MessageKind   `json:"kind"`
	Priority   Priority      `json:"priority"`
	ThreadID   string        `json:"thread_id,omitempty"`
	Status     MessageStatus `json:"status"`
	ReadAt     *time.Time    `json:"read_at,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`

	Sender   *UserSummary `json:"sender,omitempty"`
	Receiver *UserSummary `json:"receiver,omitempty"`
}

// IsRead reports whether the message has been read by its receiver.
func (m *Message) IsRead() bool {
	return m.Status == StatusRead
}

// MessageRecipient is the broadcast fan-out join row: one per
// (message, recipient) pair, created atomically with the broadcast.
type MessageRecipient struct {
	MessageID   string     `json:"message_id"`
	RecipientID uuid.UUID  `json:"recipient_id"`
	Read        bool       `json:"read"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}
