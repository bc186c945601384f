package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/growthpro/messaging/internal/models"
	"github.com/growthpro/messaging/internal/ratelimit"
)

// SQLiteStore handles SQLite database operations. It is the development
// and single-node deployment backend.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/growthpro.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/growthpro.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('admin', 'client')),
		password_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL REFERENCES users(id),
		receiver_id TEXT REFERENCES users(id),
		subject TEXT NOT NULL,
		content TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('direct', 'broadcast')),
		priority TEXT NOT NULL DEFAULT 'normal' CHECK (priority IN ('low', 'normal', 'high')),
		thread_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'sent' CHECK (status IN ('sent', 'delivered', 'read')),
		read_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		CHECK (kind = 'broadcast' OR receiver_id IS NOT NULL)
	);

	CREATE TABLE IF NOT EXISTS message_recipients (
		message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		recipient_id TEXT NOT NULL REFERENCES users(id),
		read INTEGER NOT NULL DEFAULT 0,
		read_at DATETIME,
		PRIMARY KEY (message_id, recipient_id)
	);

	CREATE TABLE IF NOT EXISTS send_windows (
		user_id TEXT PRIMARY KEY REFERENCES users(id),
		message_count INTEGER NOT NULL DEFAULT 0,
		reset_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id);
	CREATE INDEX IF NOT EXISTS idx_recipients_recipient ON message_recipients(recipient_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, email string, role models.Role, passwordHash string) (*models.User, error) {
	id := uuid.New()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id.String(), name, email, role, passwordHash, now, now)
	if err != nil {
		return nil, err
	}

	return &models.User{
		ID:           id,
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	user := &models.User{}
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, password_hash, created_at, updated_at
		FROM users WHERE `+where, arg).Scan(
		&id,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	user.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, "id = ?", id.String())
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email = ?", email)
}

// ListClients retrieves all client users ordered by name.
func (s *SQLiteStore) ListClients(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
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
		var id string
		if err := rows.Scan(&id, &u.Name, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		if u.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

const sqliteMessageSelect = `
	SELECT m.id, m.sender_id, m.receiver_id, m.subject, m.content, m.kind,
		m.priority, m.thread_id, m.status, m.read_at, m.created_at, m.updated_at,
		s.name, s.email, s.role,
		r.name, r.email, r.role
	FROM messages m
	JOIN users s ON s.id = m.sender_id
	LEFT JOIN users r ON r.id = m.receiver_id
`

type sqliteRowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteMessage(row sqliteRowScanner, extra ...any) (*models.Message, error) {
	m := &models.Message{}
	var senderID string
	var receiverID sql.NullString
	var senderName, senderEmail string
	var senderRole models.Role
	var recvName, recvEmail, recvRole sql.NullString

	dest := []any{
		&m.ID, &senderID, &receiverID, &m.Subject, &m.Content, &m.Kind,
		&m.Priority, &m.ThreadID, &m.Status, &m.ReadAt, &m.CreatedAt, &m.UpdatedAt,
		&senderName, &senderEmail, &senderRole,
		&recvName, &recvEmail, &recvRole,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	sid, err := uuid.Parse(senderID)
	if err != nil {
		return nil, err
	}
	m.SenderID = sid
	m.Sender = &models.UserSummary{ID: sid, Name: senderName, Email: senderEmail, Role: senderRole}

	if receiverID.Valid {
		rid, err := uuid.Parse(receiverID.String)
		if err != nil {
			return nil, err
		}
		m.ReceiverID = &rid
		if recvName.Valid {
			m.Receiver = &models.UserSummary{ID: rid, Name: recvName.String, Email: recvEmail.String, Role: models.Role(recvRole.String)}
		}
	}
	return m, nil
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

// bumpSendWindowTx adds n to the sender's counter inside tx, starting a
// fresh window when the stored one has expired, and returns a *QuotaError
// when the bumped counter would exceed limit. SQLite serializes writers,
// so the read-then-write pair is atomic within the transaction.
func (s *SQLiteStore) bumpSendWindowTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID, n, limit int) error {
	now := time.Now().UTC()

	var count int
	var resetAt time.Time
	var id string
	err := tx.QueryRowContext(ctx, `
		SELECT user_id, message_count, reset_at FROM send_windows WHERE user_id = ?
	`, userID.String()).Scan(&id, &count, &resetAt)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if err == sql.ErrNoRows || resetAt.Before(now) {
		count = 0
		resetAt = now.Add(ratelimit.Window)
	}

	if count+n > limit {
		return &QuotaError{
			Window: models.SendWindow{UserID: userID, MessageCount: count, ResetAt: resetAt},
			Limit:  limit,
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO send_windows (user_id, message_count, reset_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET message_count = ?, reset_at = ?
	`, userID.String(), count+n, resetAt, count+n, resetAt)
	return err
}

// InsertDirect inserts one message row per recipient in a single
// transaction, after bumping the sender's counter by one unit per row.
func (s *SQLiteStore) InsertDirect(ctx context.Context, senderID uuid.UUID, recipientIDs []uuid.UUID, subject, content string, priority models.Priority, threadID string, limit int) ([]models.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

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

		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, sender_id, receiver_id, subject, content, kind, priority, thread_id, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 'direct', ?, ?, 'sent', ?, ?)
		`, id, senderID.String(), recipientID.String(), subject, content, priority, tid, now, now)
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

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return messages, nil
}

// InsertBroadcast inserts one message row plus one fan-out row per
// recipient, all in a single transaction. A broadcast costs one quota
// unit regardless of fan-out size.
func (s *SQLiteStore) InsertBroadcast(ctx context.Context, senderID uuid.UUID, recipientIDs []uuid.UUID, subject, content string, priority models.Priority, limit int) (*models.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.bumpSendWindowTx(ctx, tx, senderID, 1, limit); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	id := ulid.Make().String()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, subject, content, kind, priority, thread_id, status, created_at, updated_at)
		VALUES (?, ?, NULL, ?, ?, 'broadcast', ?, ?, 'sent', ?, ?)
	`, id, senderID.String(), subject, content, priority, id, now, now)
	if err != nil {
		return nil, err
	}

	for _, recipientID := range recipientIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO message_recipients (message_id, recipient_id, read)
			VALUES (?, ?, 0)
		`, id, recipientID.String())
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
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
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, sqliteMessageSelect+` WHERE m.id = ?`, id)
	m, err := scanSQLiteMessage(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// ListMessagesForViewer retrieves messages where the viewer is sender or
// receiver, newest first.
func (s *SQLiteStore) ListMessagesForViewer(ctx context.Context, viewerID uuid.UUID, limit int) ([]models.Message, error) {
	return s.queryMessages(ctx, sqliteMessageSelect+`
		WHERE m.sender_id = ? OR m.receiver_id = ?
		ORDER BY m.created_at DESC
		LIMIT ?
	`, viewerID.String(), viewerID.String(), limit)
}

// ListBroadcastsFor retrieves broadcast messages addressed to the
// recipient via fan-out rows.
func (s *SQLiteStore) ListBroadcastsFor(ctx context.Context, recipientID uuid.UUID, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.sender_id, m.receiver_id, m.subject, m.content, m.kind,
			m.priority, m.thread_id, m.status, m.read_at, m.created_at, m.updated_at,
			s.name, s.email, s.role,
			r.name, r.email, r.role,
			mr.read, mr.read_at
		FROM messages m
		JOIN users s ON s.id = m.sender_id
		LEFT JOIN users r ON r.id = m.receiver_id
		JOIN message_recipients mr ON mr.message_id = m.id
		WHERE mr.recipient_id = ?
		ORDER BY m.created_at DESC
		LIMIT ?
	`, recipientID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var read bool
		var readAt sql.NullTime
		m, err := scanSQLiteMessage(rows, &read, &readAt)
		if err != nil {
			return nil, err
		}
		if read {
			m.Status = models.StatusRead
			if readAt.Valid {
				t := readAt.Time
				m.ReadAt = &t
			}
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

// ListDirectMessages retrieves raw direct rows involving the viewer,
// newest first.
func (s *SQLiteStore) ListDirectMessages(ctx context.Context, viewerID uuid.UUID, limit int) ([]models.Message, error) {
	return s.queryMessages(ctx, sqliteMessageSelect+`
		WHERE m.kind = 'direct' AND (m.sender_id = ? OR m.receiver_id = ?)
		ORDER BY m.created_at DESC
		LIMIT ?
	`, viewerID.String(), viewerID.String(), limit)
}

// ListConversations reduces direct rows to one summary per counterpart.
// SQLite has no DISTINCT ON, so the reduction happens here.
func (s *SQLiteStore) ListConversations(ctx context.Context, adminID uuid.UUID) ([]models.ConversationSummary, error) {
	messages, err := s.ListDirectMessages(ctx, adminID, 1000)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool)
	var summaries []models.ConversationSummary
	for _, m := range messages {
		counterpart := m.SenderID
		name := ""
		if m.Sender != nil {
			name = m.Sender.Name
		}
		if m.SenderID == adminID && m.ReceiverID != nil {
			counterpart = *m.ReceiverID
			if m.Receiver != nil {
				name = m.Receiver.Name
			}
		}
		if seen[counterpart] {
			continue
		}
		seen[counterpart] = true
		summaries = append(summaries, models.ConversationSummary{
			CounterpartID:   counterpart,
			CounterpartName: name,
			Preview:         m.Content,
			Subject:         m.Subject,
			LastMessageAt:   m.CreatedAt,
		})
	}

	for i := range summaries {
		var count int
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM messages
			WHERE kind = 'direct' AND sender_id = ? AND receiver_id = ? AND status <> 'read'
		`, summaries[i].CounterpartID.String(), adminID.String()).Scan(&count)
		if err != nil {
			return nil, err
		}
		summaries[i].UnreadCount = count
	}
	return summaries, nil
}

// ThreadBetween retrieves all direct messages between two users,
// ascending by creation time.
func (s *SQLiteStore) ThreadBetween(ctx context.Context, viewerID, counterpartID uuid.UUID) ([]models.Message, error) {
	return s.queryMessages(ctx, sqliteMessageSelect+`
		WHERE m.kind = 'direct'
		  AND ((m.sender_id = ? AND m.receiver_id = ?) OR (m.sender_id = ? AND m.receiver_id = ?))
		ORDER BY m.created_at ASC
	`, viewerID.String(), counterpartID.String(), counterpartID.String(), viewerID.String())
}

// CountStats computes count-only aggregates scoped to the viewer's role.
func (s *SQLiteStore) CountStats(ctx context.Context, viewer models.Viewer) (*models.MessageStats, error) {
	stats := &models.MessageStats{}
	id := viewer.ID.String()

	if viewer.IsAdmin() {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&stats.Total); err != nil {
			return nil, err
		}
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM messages
			WHERE kind = 'direct' AND receiver_id = ? AND status <> 'read'
		`, id).Scan(&stats.Unread)
		if err != nil {
			return nil, err
		}
	} else {
		err := s.db.QueryRowContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM messages WHERE sender_id = ? OR receiver_id = ?) +
				(SELECT COUNT(*) FROM message_recipients WHERE recipient_id = ?)
		`, id, id, id).Scan(&stats.Total)
		if err != nil {
			return nil, err
		}
		err = s.db.QueryRowContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND status <> 'read') +
				(SELECT COUNT(*) FROM message_recipients WHERE recipient_id = ? AND read = 0)
		`, id, id).Scan(&stats.Unread)
		if err != nil {
			return nil, err
		}
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE sender_id = ? AND created_at >= datetime('now', 'start of day')
	`, id).Scan(&stats.SentToday)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// MarkMessageRead marks a direct message read, scoped to its receiver.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, messageID string, receiverID uuid.UUID, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET status = 'read', read_at = ?, updated_at = ?
		WHERE id = ? AND receiver_id = ? AND status <> 'read'
	`, at, at, messageID, receiverID.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkRecipientRead marks a broadcast fan-out row read for one recipient.
func (s *SQLiteStore) MarkRecipientRead(ctx context.Context, messageID string, recipientID uuid.UUID, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE message_recipients
		SET read = 1, read_at = ?
		WHERE message_id = ? AND recipient_id = ? AND read = 0
	`, at, messageID, recipientID.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetSendWindow retrieves the send counter row for a user, nil if absent.
func (s *SQLiteStore) GetSendWindow(ctx context.Context, userID uuid.UUID) (*models.SendWindow, error) {
	w := &models.SendWindow{}
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, message_count, reset_at FROM send_windows WHERE user_id = ?
	`, userID.String()).Scan(&id, &w.MessageCount, &w.ResetAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if w.UserID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	return w, nil
}
