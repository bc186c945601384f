package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/growthpro/messaging/internal/models"
	"github.com/growthpro/messaging/internal/store"
)

var svcBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeStore is an in-memory DataStore for service tests. The mutex
// mirrors the real stores' transactional inserts: the quota bump and the
// row writes happen as one atomic step.
type fakeStore struct {
	mu         sync.Mutex
	users      map[uuid.UUID]*models.User
	messages   []models.Message
	recipients []models.MessageRecipient
	windows    map[uuid.UUID]*models.SendWindow

	convs   []models.ConversationSummary
	convErr error

	seq int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[uuid.UUID]*models.User),
		windows: make(map[uuid.UUID]*models.SendWindow),
	}
}

func (f *fakeStore) nextID() string {
	f.seq++
	return fmt.Sprintf("01HXTEST%08d", f.seq)
}

func (f *fakeStore) now() time.Time {
	return svcBase.Add(time.Duration(f.seq) * time.Second)
}

func (f *fakeStore) Close() {}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) CreateUser(ctx context.Context, name, email string, role models.Role, passwordHash string) (*models.User, error) {
	u := &models.User{ID: uuid.New(), Name: name, Email: email, Role: role, PasswordHash: passwordHash}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return f.users[id], nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListClients(ctx context.Context) ([]models.User, error) {
	var out []models.User
	for _, u := range f.users {
		if u.Role == models.RoleClient {
			out = append(out, *u)
		}
	}
	return out, nil
}

// bumpWindow is the in-transaction counter bump: refuse and leave state
// untouched when the send would exceed limit.
func (f *fakeStore) bumpWindow(userID uuid.UUID, n, limit int) error {
	now := time.Now()
	w, ok := f.windows[userID]
	if !ok || now.After(w.ResetAt) {
		w = &models.SendWindow{UserID: userID, ResetAt: now.Add(time.Hour)}
	}
	if w.MessageCount+n > limit {
		return &store.QuotaError{Window: *w, Limit: limit}
	}
	w.MessageCount += n
	f.windows[userID] = w
	return nil
}

func (f *fakeStore) InsertDirect(ctx context.Context, senderID uuid.UUID, recipientIDs []uuid.UUID, subject, content string, priority models.Priority, threadID string, limit int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.bumpWindow(senderID, len(recipientIDs), limit); err != nil {
		return nil, err
	}

	var out []models.Message
	for _, rcpt := range recipientIDs {
		id := f.nextID()
		tid := threadID
		if tid == "" {
			tid = id
		}
		receiver := rcpt
		m := models.Message{
			ID:         id,
			SenderID:   senderID,
			ReceiverID: &receiver,
			Subject:    subject,
			Content:    content,
			Kind:       models.KindDirect,
			Priority:   priority,
			ThreadID:   tid,
			Status:     models.StatusSent,
			CreatedAt:  f.now(),
		}
		f.messages = append(f.messages, m)
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeStore) InsertBroadcast(ctx context.Context, senderID uuid.UUID, recipientIDs []uuid.UUID, subject, content string, priority models.Priority, limit int) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.bumpWindow(senderID, 1, limit); err != nil {
		return nil, err
	}

	id := f.nextID()
	m := models.Message{
		ID:        id,
		SenderID:  senderID,
		Subject:   subject,
		Content:   content,
		Kind:      models.KindBroadcast,
		Priority:  priority,
		ThreadID:  id,
		Status:    models.StatusSent,
		CreatedAt: f.now(),
	}
	f.messages = append(f.messages, m)
	for _, rcpt := range recipientIDs {
		f.recipients = append(f.recipients, models.MessageRecipient{MessageID: id, RecipientID: rcpt})
	}
	return &m, nil
}

func (f *fakeStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	for i := range f.messages {
		if f.messages[i].ID == id {
			m := f.messages[i]
			return &m, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListMessagesForViewer(ctx context.Context, viewerID uuid.UUID, limit int) ([]models.Message, error) {
	var out []models.Message
	for _, m := range f.messages {
		if m.SenderID == viewerID || (m.ReceiverID != nil && *m.ReceiverID == viewerID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) ListBroadcastsFor(ctx context.Context, recipientID uuid.UUID, limit int) ([]models.Message, error) {
	var out []models.Message
	for _, r := range f.recipients {
		if r.RecipientID != recipientID {
			continue
		}
		for _, m := range f.messages {
			if m.ID == r.MessageID {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ListDirectMessages(ctx context.Context, viewerID uuid.UUID, limit int) ([]models.Message, error) {
	var out []models.Message
	for _, m := range f.messages {
		if m.Kind != models.KindDirect {
			continue
		}
		if m.SenderID == viewerID || (m.ReceiverID != nil && *m.ReceiverID == viewerID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) ListConversations(ctx context.Context, adminID uuid.UUID) ([]models.ConversationSummary, error) {
	return f.convs, f.convErr
}

func (f *fakeStore) ThreadBetween(ctx context.Context, viewerID, counterpartID uuid.UUID) ([]models.Message, error) {
	var out []models.Message
	for _, m := range f.messages {
		if m.Kind != models.KindDirect || m.ReceiverID == nil {
			continue
		}
		pair := (m.SenderID == viewerID && *m.ReceiverID == counterpartID) ||
			(m.SenderID == counterpartID && *m.ReceiverID == viewerID)
		if pair {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) CountStats(ctx context.Context, viewer models.Viewer) (*models.MessageStats, error) {
	stats := &models.MessageStats{}
	for _, m := range f.messages {
		if m.ReceiverID != nil && *m.ReceiverID == viewer.ID {
			stats.Total++
			if m.Status != models.StatusRead {
				stats.Unread++
			}
		}
	}
	return stats, nil
}

func (f *fakeStore) MarkMessageRead(ctx context.Context, messageID string, receiverID uuid.UUID, at time.Time) (bool, error) {
	for i := range f.messages {
		m := &f.messages[i]
		if m.ID == messageID && m.ReceiverID != nil && *m.ReceiverID == receiverID && m.Status != models.StatusRead {
			m.Status = models.StatusRead
			readAt := at
			m.ReadAt = &readAt
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) MarkRecipientRead(ctx context.Context, messageID string, recipientID uuid.UUID, at time.Time) (bool, error) {
	for i := range f.recipients {
		r := &f.recipients[i]
		if r.MessageID == messageID && r.RecipientID == recipientID && !r.Read {
			r.Read = true
			readAt := at
			r.ReadAt = &readAt
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetSendWindow(ctx context.Context, userID uuid.UUID) (*models.SendWindow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.windows[userID], nil
}

// fakeBus records published realtime events.
type fakeBus struct {
	published []struct {
		UserID string
		Event  models.MessageEvent
	}
}

func (b *fakeBus) PublishEvent(ctx context.Context, userID string, event *models.MessageEvent) error {
	b.published = append(b.published, struct {
		UserID string
		Event  models.MessageEvent
	}{userID, *event})
	return nil
}

func newTestService(st *fakeStore, bus *fakeBus) *Service {
	return NewService(st, bus, nil, zerolog.Nop(), 10, 100)
}

func TestSendDirectCreatesRowPerRecipient(t *testing.T) {
	st := newFakeStore()
	bus := &fakeBus{}
	svc := newTestService(st, bus)

	admin := models.Viewer{ID: uuid.New(), Role: models.RoleAdmin}
	r1, r2 := uuid.New(), uuid.New()

	messages, err := svc.Send(context.Background(), admin, SendRequest{
		Kind:         models.KindDirect,
		RecipientIDs: []uuid.UUID{r1, r2},
		Subject:      "hello",
		Content:      "body",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(messages))
	}
	for _, m := range messages {
		if m.Subject != "hello" || m.Content != "body" {
			t.Fatalf("expected shared subject and content, got %+v", m)
		}
		if m.Priority != models.PriorityNormal {
			t.Fatalf("expected priority defaulted to normal, got %s", m.Priority)
		}
		if m.ThreadID == "" {
			t.Fatal("expected a thread ID on a new send")
		}
	}

	w := st.windows[admin.ID]
	if w == nil || w.MessageCount != 2 {
		t.Fatalf("expected quota bumped by 2, got %+v", w)
	}

	// per row: one insert event to the recipient and one to the sender
	if len(bus.published) != 4 {
		t.Fatalf("expected 4 realtime events, got %d", len(bus.published))
	}
}

func TestSendBroadcastSingleRowWithFanout(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(st, &fakeBus{})

	admin := models.Viewer{ID: uuid.New(), Role: models.RoleAdmin}
	recipients := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	messages, err := svc.Send(context.Background(), admin, SendRequest{
		Kind:         models.KindBroadcast,
		RecipientIDs: recipients,
		Subject:      "monthly update",
		Content:      "report attached",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected a single broadcast row, got %d", len(messages))
	}
	if messages[0].ReceiverID != nil {
		t.Fatal("broadcast row must have no receiver")
	}
	if len(st.recipients) != 3 {
		t.Fatalf("expected 3 fan-out rows, got %d", len(st.recipients))
	}
	for _, r := range st.recipients {
		if r.Read {
			t.Fatal("fan-out rows must start unread")
		}
	}

	// a broadcast consumes one quota unit regardless of audience size
	if w := st.windows[admin.ID]; w == nil || w.MessageCount != 1 {
		t.Fatalf("expected quota bumped by 1, got %+v", w)
	}
}

func TestSendBroadcastRequiresAdmin(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(st, &fakeBus{})

	client := models.Viewer{ID: uuid.New(), Role: models.RoleClient}
	_, err := svc.Send(context.Background(), client, SendRequest{
		Kind:         models.KindBroadcast,
		RecipientIDs: []uuid.UUID{uuid.New()},
		Subject:      "s",
		Content:      "c",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if len(st.messages) != 0 {
		t.Fatal("no rows should be written")
	}
}

func TestSendValidationRejectsBeforeStore(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(st, &fakeBus{})
	viewer := models.Viewer{ID: uuid.New(), Role: models.RoleAdmin}
	other := uuid.New()

	cases := []SendRequest{
		{Kind: "carrier-pigeon", RecipientIDs: []uuid.UUID{other}, Subject: "s", Content: "c"},
		{Kind: models.KindDirect, RecipientIDs: []uuid.UUID{other}, Subject: "  ", Content: "c"},
		{Kind: models.KindDirect, RecipientIDs: []uuid.UUID{other}, Subject: "s", Content: ""},
		{Kind: models.KindDirect, RecipientIDs: nil, Subject: "s", Content: "c"},
		{Kind: models.KindDirect, RecipientIDs: []uuid.UUID{viewer.ID}, Subject: "s", Content: "c"},
		{Kind: models.KindDirect, RecipientIDs: []uuid.UUID{other, other}, Subject: "s", Content: "c"},
		{Kind: models.KindDirect, RecipientIDs: []uuid.UUID{uuid.Nil}, Subject: "s", Content: "c"},
		{Kind: models.KindDirect, RecipientIDs: []uuid.UUID{other}, Subject: "s", Content: "c", Priority: "urgent"},
	}

	for i, req := range cases {
		_, err := svc.Send(context.Background(), viewer, req)
		if err == nil {
			t.Fatalf("case %d: expected a validation error", i)
		}
		if !IsValidation(err) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	if len(st.messages) != 0 {
		t.Fatal("validation failures must not reach the store")
	}
}

func TestSendQuotaRefusal(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(st, &fakeBus{})
	viewer := models.Viewer{ID: uuid.New(), Role: models.RoleClient}

	st.windows[viewer.ID] = &models.SendWindow{
		UserID:       viewer.ID,
		MessageCount: 10,
		ResetAt:      time.Now().Add(30 * time.Minute),
	}

	_, err := svc.Send(context.Background(), viewer, SendRequest{
		Kind:         models.KindDirect,
		RecipientIDs: []uuid.UUID{uuid.New()},
		Subject:      "s",
		Content:      "c",
	})
	if !IsRateLimited(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	var re *RateLimitError
	errors.As(err, &re)
	if re.Info.Remaining != 0 {
		t.Fatalf("expected 0 remaining, got %d", re.Info.Remaining)
	}
	if len(st.messages) != 0 {
		t.Fatal("refused sends must not write rows")
	}
}

func TestSendQuotaCountsDirectPerRecipient(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(st, &fakeBus{})
	viewer := models.Viewer{ID: uuid.New(), Role: models.RoleClient}

	st.windows[viewer.ID] = &models.SendWindow{
		UserID:       viewer.ID,
		MessageCount: 9,
		ResetAt:      time.Now().Add(30 * time.Minute),
	}

	_, err := svc.Send(context.Background(), viewer, SendRequest{
		Kind:         models.KindDirect,
		RecipientIDs: []uuid.UUID{uuid.New(), uuid.New()},
		Subject:      "s",
		Content:      "c",
	})
	if !IsRateLimited(err) {
		t.Fatalf("expected refusal when recipients exceed remaining, got %v", err)
	}
}

func TestSendQuotaConcurrentSendsNeverOverspend(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(st, &fakeBus{})
	viewer := models.Viewer{ID: uuid.New(), Role: models.RoleClient}

	// one unit left: of two simultaneous sends exactly one may land
	st.windows[viewer.ID] = &models.SendWindow{
		UserID:       viewer.ID,
		MessageCount: 9,
		ResetAt:      time.Now().Add(30 * time.Minute),
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Send(context.Background(), viewer, SendRequest{
				Kind:         models.KindDirect,
				RecipientIDs: []uuid.UUID{uuid.New()},
				Subject:      "s",
				Content:      "c",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var refused int
	for err := range errs {
		if err == nil {
			continue
		}
		if !IsRateLimited(err) {
			t.Fatalf("expected rate limit error, got %v", err)
		}
		refused++
	}
	if refused != 1 {
		t.Fatalf("expected exactly one refusal, got %d", refused)
	}
	if len(st.messages) != 1 {
		t.Fatalf("expected exactly one row written, got %d", len(st.messages))
	}
	if w := st.windows[viewer.ID]; w.MessageCount != 10 {
		t.Fatalf("expected counter capped at the limit, got %d", w.MessageCount)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	st := newFakeStore()
	bus := &fakeBus{}
	svc := newTestService(st, bus)

	sender := models.Viewer{ID: uuid.New(), Role: models.RoleAdmin}
	receiverID := uuid.New()
	receiver := models.Viewer{ID: receiverID, Role: models.RoleClient}

	messages, err := svc.Send(context.Background(), sender, SendRequest{
		Kind:         models.KindDirect,
		RecipientIDs: []uuid.UUID{receiverID},
		Subject:      "s",
		Content:      "c",
	})
	if err != nil {
		t.Fatal(err)
	}
	bus.published = nil

	if err := svc.MarkRead(context.Background(), receiver, messages[0].ID); err != nil {
		t.Fatal(err)
	}
	if len(bus.published) != 2 {
		t.Fatalf("expected update events to sender and viewer, got %d", len(bus.published))
	}

	stored, _ := st.GetMessage(context.Background(), messages[0].ID)
	if stored.Status != models.StatusRead || stored.ReadAt == nil {
		t.Fatalf("expected read status with read_at, got %+v", stored)
	}
	firstReadAt := *stored.ReadAt

	// second call is a no-op: no events, read_at unchanged
	bus.published = nil
	if err := svc.MarkRead(context.Background(), receiver, messages[0].ID); err != nil {
		t.Fatal(err)
	}
	if len(bus.published) != 0 {
		t.Fatalf("expected no events on repeat, got %d", len(bus.published))
	}
	stored, _ = st.GetMessage(context.Background(), messages[0].ID)
	if !stored.ReadAt.Equal(firstReadAt) {
		t.Fatal("read_at must keep its original value")
	}
}

func TestFetchMessagesMergesBroadcastsForClients(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(st, &fakeBus{})

	admin := models.Viewer{ID: uuid.New(), Role: models.RoleAdmin}
	clientID := uuid.New()
	client := models.Viewer{ID: clientID, Role: models.RoleClient}

	if _, err := svc.Send(context.Background(), admin, SendRequest{
		Kind:         models.KindDirect,
		RecipientIDs: []uuid.UUID{clientID},
		Subject:      "dm",
		Content:      "direct",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Send(context.Background(), admin, SendRequest{
		Kind:         models.KindBroadcast,
		RecipientIDs: []uuid.UUID{clientID, uuid.New()},
		Subject:      "news",
		Content:      "broadcast",
	}); err != nil {
		t.Fatal(err)
	}

	messages, err := svc.FetchMessages(context.Background(), client, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected direct plus broadcast, got %d", len(messages))
	}
	// newest first
	if messages[0].Kind != models.KindBroadcast {
		t.Fatalf("expected broadcast newest, got %s", messages[0].Kind)
	}
}

func TestFetchConversationsForbiddenForClients(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeBus{})
	client := models.Viewer{ID: uuid.New(), Role: models.RoleClient}

	_, err := svc.FetchConversations(context.Background(), client)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestFetchConversationsFallback(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(st, &fakeBus{})

	adminID := uuid.New()
	admin := models.Viewer{ID: adminID, Role: models.RoleAdmin}
	clientID := uuid.New()
	client := models.Viewer{ID: clientID, Role: models.RoleClient}

	// two inbound unread plus one outbound
	if _, err := svc.Send(context.Background(), client, SendRequest{
		Kind: models.KindDirect, RecipientIDs: []uuid.UUID{adminID}, Subject: "q1", Content: "first",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Send(context.Background(), client, SendRequest{
		Kind: models.KindDirect, RecipientIDs: []uuid.UUID{adminID}, Subject: "q2", Content: "second",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Send(context.Background(), admin, SendRequest{
		Kind: models.KindDirect, RecipientIDs: []uuid.UUID{clientID}, Subject: "a", Content: "answer",
	}); err != nil {
		t.Fatal(err)
	}
	// and an unrelated broadcast that must not appear
	if _, err := svc.Send(context.Background(), admin, SendRequest{
		Kind: models.KindBroadcast, RecipientIDs: []uuid.UUID{clientID}, Subject: "b", Content: "news",
	}); err != nil {
		t.Fatal(err)
	}

	st.convErr = errors.New("aggregation unavailable")

	summaries, err := svc.FetchConversations(context.Background(), admin)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected one counterpart, got %d", len(summaries))
	}
	s := summaries[0]
	if s.CounterpartID != clientID {
		t.Fatalf("expected counterpart %s, got %s", clientID, s.CounterpartID)
	}
	if s.UnreadCount != 2 {
		t.Fatalf("expected unread 2 in fallback, got %d", s.UnreadCount)
	}
}

func TestRefreshPopulatesSnapshot(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(st, &fakeBus{})

	admin := models.Viewer{ID: uuid.New(), Role: models.RoleAdmin}
	clientID := uuid.New()
	client := models.Viewer{ID: clientID, Role: models.RoleClient}

	if _, err := svc.Send(context.Background(), admin, SendRequest{
		Kind: models.KindDirect, RecipientIDs: []uuid.UUID{clientID}, Subject: "s", Content: "c",
	}); err != nil {
		t.Fatal(err)
	}

	snap := NewSnapshot(clientID)
	applied, err := svc.Refresh(context.Background(), client, snap)
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Fatal("expected refresh to apply")
	}
	if snap.UnreadCount() != 1 {
		t.Fatalf("expected unread 1, got %d", snap.UnreadCount())
	}
}

func TestGetThreadNilWhenNoExchange(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeBus{})
	viewer := models.Viewer{ID: uuid.New(), Role: models.RoleAdmin}

	th, err := svc.GetThread(context.Background(), viewer, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if th != nil {
		t.Fatalf("expected nil thread, got %+v", th)
	}
}

func TestGetThreadAssemblesAscending(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(st, &fakeBus{})

	adminID := uuid.New()
	admin := models.Viewer{ID: adminID, Role: models.RoleAdmin}
	clientID := uuid.New()
	client := models.Viewer{ID: clientID, Role: models.RoleClient}

	if _, err := svc.Send(context.Background(), client, SendRequest{
		Kind: models.KindDirect, RecipientIDs: []uuid.UUID{adminID}, Subject: "q", Content: "question",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Send(context.Background(), admin, SendRequest{
		Kind: models.KindDirect, RecipientIDs: []uuid.UUID{clientID}, Subject: "a", Content: "answer",
	}); err != nil {
		t.Fatal(err)
	}

	th, err := svc.GetThread(context.Background(), admin, clientID)
	if err != nil {
		t.Fatal(err)
	}
	if th == nil {
		t.Fatal("expected a thread")
	}
	if len(th.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(th.Messages))
	}
	if !th.Messages[0].CreatedAt.Before(th.Messages[1].CreatedAt) {
		t.Fatal("expected ascending order")
	}
	if th.UnreadCount != 1 {
		t.Fatalf("expected unread 1 for the admin viewer, got %d", th.UnreadCount)
	}
}
