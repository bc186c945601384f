package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/growthpro/messaging/internal/models"
)

// QuotaError is returned by the insert operations when bumping the send
// counter inside the transaction would exceed the hourly limit. Window
// holds the pre-bump counter state the refusal was derived from.
type QuotaError struct {
	Window models.SendWindow
	Limit  int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("send quota exceeded: %d of %d used", e.Window.MessageCount, e.Limit)
}

// DataStore defines the interface for persistent storage of users,
// messages and send windows. Both PostgresStore and SQLiteStore
// implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, name, email string, role models.Role, passwordHash string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListClients(ctx context.Context) ([]models.User, error)

	// Message writes. Both multi-row inserts run in a single transaction:
	// a failure partway through leaves no partial data behind. The sender's
	// hourly counter is bumped inside the same transaction (one unit per
	// direct row, one unit per broadcast); when the bump would push the
	// counter past limit the transaction rolls back and a *QuotaError is
	// returned.
	InsertDirect(ctx context.Context, senderID uuid.UUID, recipientIDs []uuid.UUID, subject, content string, priority models.Priority, threadID string, limit int) ([]models.Message, error)
	InsertBroadcast(ctx context.Context, senderID uuid.UUID, recipientIDs []uuid.UUID, subject, content string, priority models.Priority, limit int) (*models.Message, error)

	// Message reads
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessagesForViewer(ctx context.Context, viewerID uuid.UUID, limit int) ([]models.Message, error)
	ListBroadcastsFor(ctx context.Context, recipientID uuid.UUID, limit int) ([]models.Message, error)
	ListDirectMessages(ctx context.Context, viewerID uuid.UUID, limit int) ([]models.Message, error)
	ListConversations(ctx context.Context, adminID uuid.UUID) ([]models.ConversationSummary, error)
	ThreadBetween(ctx context.Context, viewerID, counterpartID uuid.UUID) ([]models.Message, error)
	CountStats(ctx context.Context, viewer models.Viewer) (*models.MessageStats, error)

	// Read receipts. Updates are scoped to unread rows so repeated calls
	// never overwrite the original read_at. Returns whether a row changed.
	MarkMessageRead(ctx context.Context, messageID string, receiverID uuid.UUID, at time.Time) (bool, error)
	MarkRecipientRead(ctx context.Context, messageID string, recipientID uuid.UUID, at time.Time) (bool, error)

	// Send window counter backing the hourly quota. Read-only: the counter
	// only moves inside the insert transactions above.
	GetSendWindow(ctx context.Context, userID uuid.UUID) (*models.SendWindow, error)
}
