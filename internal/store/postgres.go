package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/growthpro/messaging/internal/models"
	"github.com/growthpro/messaging/internal/ratelimit"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// RunMigrations creates the schema if it does not exist.
func RunMigrations(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('admin', 'client')),
			password_hash TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			sender_id UUID NOT NULL REFERENCES users(id),
			receiver_id UUID REFERENCES users(id),
			subject TEXT NOT NULL,
			content TEXT NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('direct', 'broadcast')),
			priority TEXT NOT NULL DEFAULT 'normal' CHECK (priority IN ('low', 'normal', 'high')),
			thread_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'sent' CHECK (status IN ('sent', 'delivered', 'read')),
			read_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (kind = 'broadcast' OR receiver_id IS NOT NULL)
		)`,
		`CREATE TABLE IF NOT EXISTS message_recipients (
			message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			recipient_id UUID NOT NULL REFERENCES users(id),
			read BOOLEAN NOT NULL DEFAULT FALSE,
			read_at TIMESTAMPTZ,
			PRIMARY KEY (message_id, recipient_id)
		)`,
		`CREATE TABLE IF NOT EXISTS send_windows (
			user_id UUID PRIMARY KEY REFERENCES users(id),
			message_count INT NOT NULL DEFAULT 0,
			reset_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id)`,
		`CREATE INDEX IF NOT EXISTS idx_recipients_recipient ON message_recipients(recipient_id)`,
	}

	for _, stmt := range statements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, name, email string, role models.Role, passwordHash string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, role, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, email, role, password_hash, created_at, updated_at
	`, name, email, role, passwordHash).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, role, password_hash, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, role, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`, email).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// ListClients retrieves all client users ordered by name.
func (s *PostgresStore) ListClients(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, role, password_hash, created_at, updated_at
		FROM users WHERE role = 'client'
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// messageColumns is the shared projection for message queries. Sender is
// always joined; receiver is joined when present.
const messageColumns = `
	m.id, m.sender_id, m.receiver_id, m.subject, m.content, m.kind,
	m.priority, m.thread_id, m.status, m.read_at, m.created_at, m.updated_at,
	s.name, s.email, s.role,
	r.name, r.email, r.role
`

const messageJoins = `
	JOIN users s ON s.id = m.sender_id
	LEFT JOIN users r ON r.id = m.receiver_id
`

func scanMessage(row pgx.Row) (*models.Message, error) {
	m := &models.Message{}
	var senderName, senderEmail string
	var senderRole models.Role
	var recvName, recvEmail *string
	var recvRole *models.Role

	err := row.Scan(
		&m.ID, &m.SenderID, &m.ReceiverID, &m.Subject, &m.Content, &m.Kind,
		&m.Priority, &m.ThreadID, &m.Status, &m.ReadAt, &m.CreatedAt, &m.UpdatedAt,
		&senderName, &senderEmail, &senderRole,
		&recvName, &recvEmail, &recvRole,
	)
	if err != nil {
		return nil, err
	}

	m.Sender = &models.UserSummary{ID: m.SenderID, Name: senderName, Email: senderEmail, Role: senderRole}
	if m.ReceiverID != nil && recvName != nil {
		m.Receiver = &models.UserSummary{ID: *m.ReceiverID, Name: *recvName, Email: *recvEmail}
		if recvRole != nil {
			m.Receiver.Role = *recvRole
		}
	}
	return m, nil
}

func (s *PostgresStore) queryMessages(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

// bumpSendWindowTx adds n to the sender's counter inside tx, starting a
// fresh window when the stored one has expired. When the bumped counter
// exceeds limit it returns a *QuotaError carrying the pre-bump state; the
// caller's rollback then undoes the bump together with any inserts. The
// upsert locks the counter row, so concurrent sends by the same user
// serialize here before writing any message rows.
func (s *PostgresStore) bumpSendWindowTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, n, limit int) error {
	var count int
	var resetAt time.Time
	err := tx.QueryRow(ctx, `
		INSERT INTO send_windows (user_id, message_count, reset_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			message_count = CASE WHEN send_windows.reset_at < NOW()
				THEN EXCLUDED.message_count
				ELSE send_windows.message_count + EXCLUDED.message_count END,
			reset_at = CASE WHEN send_windows.reset_at < NOW()
				THEN EXCLUDED.reset_at
				ELSE send_windows.reset_at END
		RETURNING message_count, reset_at
	`, userID, n, time.Now().UTC().Add(ratelimit.Window)).Scan(&count, &resetAt)
	if err != nil {
		return err
	}
	if count > limit {
		return &QuotaError{
			Window: models.SendWindow{UserID: userID, MessageCount: count - n, ResetAt: resetAt},
			Limit:  limit,
		}
	}
	return nil
}

// InsertDirect inserts one message row per recipient in a single
// transaction, after bumping the sender's counter by one unit per row.
// Each row carries the same subject and content; rows with no explicit
// thread start their own thread.
func (s *PostgresStore) InsertDirect(ctx context.Context, senderID uuid.UUID, recipientIDs []uuid.UUID, subject, content string, priority models.Priority, threadID string, limit int) ([]models.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.bumpSendWindowTx(ctx, tx, senderID, len(recipientIDs), limit); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	messages := make([]models.Message, 0, len(recipientIDs))

	for _, recipientID := range recipientIDs {
		id := ulid.Make().String()
		tid := threadID
		if tid == "" {
			tid = id
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO messages (id, sender_id, receiver_id, subject, content, kind, priority, thread_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 'direct', $6, $7, 'sent', $8, $8)
		`, id, senderID, recipientID, subject, content, priority, tid, now)
		if err != nil {
			return nil, err
		}

		rid := recipientID
		messages = append(messages, models.Message{
			ID:         id,
			SenderID:   senderID,
			ReceiverID: &rid,
			Subject:    subject,
			Content:    content,
			Kind:       models.KindDirect,
			Priority:   priority,
			ThreadID:   tid,
			Status:     models.StatusSent,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return messages, nil
}

// InsertBroadcast inserts one message row plus one fan-out row per
// recipient, all in a single transaction. A broadcast costs one quota
// unit regardless of fan-out size.
func (s *PostgresStore) InsertBroadcast(ctx context.Context, senderID uuid.UUID, recipientIDs []uuid.UUID, subject, content string, priority models.Priority, limit int) (*models.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.bumpSendWindowTx(ctx, tx, senderID, 1, limit); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	id := ulid.Make().String()

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, subject, content, kind, priority, thread_id, status, created_at, updated_at)
		VALUES ($1, $2, NULL, $3, $4, 'broadcast', $5, $1, 'sent', $6, $6)
	`, id, senderID, subject, content, priority, now)
	if err != nil {
		return nil, err
	}

	for _, recipientID := range recipientIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO message_recipients (message_id, recipient_id, read)
			VALUES ($1, $2, FALSE)
		`, id, recipientID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &models.Message{
		ID:        id,
		SenderID:  senderID,
		Subject:   subject,
		Content:   content,
		Kind:      models.KindBroadcast,
		Priority:  priority,
		ThreadID:  id,
		Status:    models.StatusSent,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetMessage retrieves a message by ID.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages m `+messageJoins+`
		WHERE m.id = $1
	`, id)

	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// ListMessagesForViewer retrieves messages where the viewer is sender or
// receiver, newest first.
func (s *PostgresStore) ListMessagesForViewer(ctx context.Context, viewerID uuid.UUID, limit int) ([]models.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+`
		FROM messages m `+messageJoins+`
		WHERE m.sender_id = $1 OR m.receiver_id = $1
		ORDER BY m.created_at DESC
		LIMIT $2
	`, viewerID, limit)
}

// ListBroadcastsFor retrieves broadcast messages addressed to the
// recipient via fan-out rows, with the per-recipient read state applied.
func (s *PostgresStore) ListBroadcastsFor(ctx context.Context, recipientID uuid.UUID, limit int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`, mr.read, mr.read_at
		FROM messages m `+messageJoins+`
		JOIN message_recipients mr ON mr.message_id = m.id
		WHERE mr.recipient_id = $1
		ORDER BY m.created_at DESC
		LIMIT $2
	`, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m := &models.Message{}
		var senderName, senderEmail string
		var senderRole models.Role
		var recvName, recvEmail *string
		var recvRole *models.Role
		var read bool
		var readAt *time.Time

		err := rows.Scan(
			&m.ID, &m.SenderID, &m.ReceiverID, &m.Subject, &m.Content, &m.Kind,
			&m.Priority, &m.ThreadID, &m.Status, &m.ReadAt, &m.CreatedAt, &m.UpdatedAt,
			&senderName, &senderEmail, &senderRole,
			&recvName, &recvEmail, &recvRole,
			&read, &readAt,
		)
		if err != nil {
			return nil, err
		}

		m.Sender = &models.UserSummary{ID: m.SenderID, Name: senderName, Email: senderEmail, Role: senderRole}
		if read {
			m.Status = models.StatusRead
			m.ReadAt = readAt
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

// ListDirectMessages retrieves raw direct rows involving the viewer,
// newest first. Used by the conversation fallback path.
func (s *PostgresStore) ListDirectMessages(ctx context.Context, viewerID uuid.UUID, limit int) ([]models.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+`
		FROM messages m `+messageJoins+`
		WHERE m.kind = 'direct' AND (m.sender_id = $1 OR m.receiver_id = $1)
		ORDER BY m.created_at DESC
		LIMIT $2
	`, viewerID, limit)
}

// ListConversations aggregates one summary per counterpart the admin has
// exchanged direct messages with, newest first.
func (s *PostgresStore) ListConversations(ctx context.Context, adminID uuid.UUID) ([]models.ConversationSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (counterpart_id)
			CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END AS counterpart_id,
			u.name, m.subject, m.content, m.created_at
		FROM messages m
		JOIN users u ON u.id = CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END
		WHERE m.kind = 'direct' AND (m.sender_id = $1 OR m.receiver_id = $1)
		ORDER BY counterpart_id, m.created_at DESC
	`, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.ConversationSummary
	for rows.Next() {
		var c models.ConversationSummary
		if err := rows.Scan(&c.CounterpartID, &c.CounterpartName, &c.Subject, &c.Preview, &c.LastMessageAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Unread counts per counterpart in a second pass.
	unreadRows, err := s.pool.Query(ctx, `
		SELECT sender_id, COUNT(*)
		FROM messages
		WHERE kind = 'direct' AND receiver_id = $1 AND status <> 'read'
		GROUP BY sender_id
	`, adminID)
	if err != nil {
		return nil, err
	}
	defer unreadRows.Close()

	unread := make(map[uuid.UUID]int)
	for unreadRows.Next() {
		var senderID uuid.UUID
		var count int
		if err := unreadRows.Scan(&senderID, &count); err != nil {
			return nil, err
		}
		unread[senderID] = count
	}
	if err := unreadRows.Err(); err != nil {
		return nil, err
	}

	for i := range summaries {
		summaries[i].UnreadCount = unread[summaries[i].CounterpartID]
	}

	sortSummariesByLastMessage(summaries)
	return summaries, nil
}

// ThreadBetween retrieves all direct messages between two users,
// ascending by creation time.
func (s *PostgresStore) ThreadBetween(ctx context.Context, viewerID, counterpartID uuid.UUID) ([]models.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+`
		FROM messages m `+messageJoins+`
		WHERE m.kind = 'direct'
		  AND ((m.sender_id = $1 AND m.receiver_id = $2) OR (m.sender_id = $2 AND m.receiver_id = $1))
		ORDER BY m.created_at ASC
	`, viewerID, counterpartID)
}

// CountStats computes count-only aggregates scoped to the viewer's role.
func (s *PostgresStore) CountStats(ctx context.Context, viewer models.Viewer) (*models.MessageStats, error) {
	stats := &models.MessageStats{}

	if viewer.IsAdmin() {
		if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&stats.Total); err != nil {
			return nil, err
		}
		err := s.pool.QueryRow(ctx, `
			SELECT COUNT(*) FROM messages
			WHERE kind = 'direct' AND receiver_id = $1 AND status <> 'read'
		`, viewer.ID).Scan(&stats.Unread)
		if err != nil {
			return nil, err
		}
	} else {
		err := s.pool.QueryRow(ctx, `
			SELECT
				(SELECT COUNT(*) FROM messages WHERE sender_id = $1 OR receiver_id = $1) +
				(SELECT COUNT(*) FROM message_recipients WHERE recipient_id = $1)
		`, viewer.ID).Scan(&stats.Total)
		if err != nil {
			return nil, err
		}
		err = s.pool.QueryRow(ctx, `
			SELECT
				(SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND status <> 'read') +
				(SELECT COUNT(*) FROM message_recipients WHERE recipient_id = $1 AND read = FALSE)
		`, viewer.ID).Scan(&stats.Unread)
		if err != nil {
			return nil, err
		}
	}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE sender_id = $1 AND created_at >= date_trunc('day', NOW())
	`, viewer.ID).Scan(&stats.SentToday)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// MarkMessageRead marks a direct message read, scoped to its receiver.
// The unread guard keeps the original read_at on repeated calls.
func (s *PostgresStore) MarkMessageRead(ctx context.Context, messageID string, receiverID uuid.UUID, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET status = 'read', read_at = $3, updated_at = $3
		WHERE id = $1 AND receiver_id = $2 AND status <> 'read'
	`, messageID, receiverID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkRecipientRead marks a broadcast fan-out row read for one recipient.
func (s *PostgresStore) MarkRecipientRead(ctx context.Context, messageID string, recipientID uuid.UUID, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE message_recipients
		SET read = TRUE, read_at = $3
		WHERE message_id = $1 AND recipient_id = $2 AND read = FALSE
	`, messageID, recipientID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetSendWindow retrieves the send counter row for a user, nil if absent.
func (s *PostgresStore) GetSendWindow(ctx context.Context, userID uuid.UUID) (*models.SendWindow, error) {
	w := &models.SendWindow{}
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, message_count, reset_at FROM send_windows WHERE user_id = $1
	`, userID).Scan(&w.UserID, &w.MessageCount, &w.ResetAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}

// sortSummariesByLastMessage orders summaries newest first.
func sortSummariesByLastMessage(summaries []models.ConversationSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessageAt.After(summaries[j].LastMessageAt)
	})
}
