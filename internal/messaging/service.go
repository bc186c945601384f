// Package messaging is the repository for message data. Every operation
// takes an explicit viewer identity; nothing is resolved from ambient
// state.
package messaging

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/growthpro/messaging/internal/events"
	"github.com/growthpro/messaging/internal/metrics"
	"github.com/growthpro/messaging/internal/models"
	"github.com/growthpro/messaging/internal/ratelimit"
	"github.com/growthpro/messaging/internal/store"
	"github.com/growthpro/messaging/internal/thread"
)

const (
	defaultFetchLimit = 200
	maxSubjectLen     = 200
	maxContentLen     = 8192
)

// Bus publishes realtime events to per-user channels.
type Bus interface {
	PublishEvent(ctx context.Context, userID string, event *models.MessageEvent) error
}

// Service coordinates message reads, sends, read receipts and quota
// checks against the data store.
type Service struct {
	store    store.DataStore
	bus      Bus              // nil disables realtime publishing
	producer *events.Producer // nil disables the event stream
	logger   zerolog.Logger

	hourlyLimit  int
	maxBroadcast int
}

// NewService creates a messaging service.
func NewService(st store.DataStore, bus Bus, producer *events.Producer, logger zerolog.Logger, hourlyLimit, maxBroadcast int) *Service {
	if hourlyLimit <= 0 {
		hourlyLimit = ratelimit.DefaultHourlyLimit
	}
	if maxBroadcast <= 0 {
		maxBroadcast = 100
	}
	return &Service{
		store:        st,
		bus:          bus,
		producer:     producer,
		logger:       logger,
		hourlyLimit:  hourlyLimit,
		maxBroadcast: maxBroadcast,
	}
}

// FetchMessages returns the viewer's messages, newest first. Clients
// additionally receive broadcasts addressed to them through fan-out
// rows, merged into the same list.
func (s *Service) FetchMessages(ctx context.Context, viewer models.Viewer, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > defaultFetchLimit {
		limit = defaultFetchLimit
	}

	messages, err := s.store.ListMessagesForViewer(ctx, viewer.ID, limit)
	if err != nil {
		return nil, err
	}

	if !viewer.IsAdmin() {
		broadcasts, err := s.store.ListBroadcastsFor(ctx, viewer.ID, limit)
		if err != nil {
			return nil, err
		}
		messages = mergeByID(messages, broadcasts)
	}

	return messages, nil
}

// Refresh runs a full fetch into the snapshot under a generation token.
// Returns whether the snapshot accepted the result.
func (s *Service) Refresh(ctx context.Context, viewer models.Viewer, snap *Snapshot) (bool, error) {
	gen := snap.Begin()
	messages, err := s.FetchMessages(ctx, viewer, defaultFetchLimit)
	if err != nil {
		return false, err
	}
	return snap.Replace(gen, messages), nil
}

// FetchConversations returns one summary per counterpart for admin
// staff. The server-side aggregation is preferred; on failure it falls
// back to a reduction over the raw direct-message list. The fallback
// scans only direct rows, so broadcasts never appear in it.
func (s *Service) FetchConversations(ctx context.Context, viewer models.Viewer) ([]models.ConversationSummary, error) {
	if !viewer.IsAdmin() {
		return nil, ErrForbidden
	}

	summaries, err := s.store.ListConversations(ctx, viewer.ID)
	if err == nil {
		return summaries, nil
	}
	s.logger.Warn().Err(err).Msg("conversation aggregation failed, using fallback")

	messages, err := s.store.ListDirectMessages(ctx, viewer.ID, 1000)
	if err != nil {
		return nil, err
	}
	return reduceConversations(messages, viewer.ID), nil
}

// reduceConversations reduces direct rows (newest first) to one summary
// per counterpart, keeping the most recent message and counting unread
// inbound rows.
func reduceConversations(messages []models.Message, viewerID uuid.UUID) []models.ConversationSummary {
	index := make(map[uuid.UUID]int)
	var summaries []models.ConversationSummary

	for _, m := range messages {
		if m.Kind != models.KindDirect || m.ReceiverID == nil {
			continue
		}

		counterpart := m.SenderID
		name := ""
		if m.Sender != nil {
			name = m.Sender.Name
		}
		inbound := true
		if m.SenderID == viewerID {
			counterpart = *m.ReceiverID
			if m.Receiver != nil {
				name = m.Receiver.Name
			}
			inbound = false
		}

		i, ok := index[counterpart]
		if !ok {
			index[counterpart] = len(summaries)
			i = len(summaries)
			summaries = append(summaries, models.ConversationSummary{
				CounterpartID:   counterpart,
				CounterpartName: name,
				Preview:         m.Content,
				Subject:         m.Subject,
				LastMessageAt:   m.CreatedAt,
			})
		}
		if inbound && m.Status != models.StatusRead {
			summaries[i].UnreadCount++
		}
	}
	return summaries
}

// FetchStats returns count-only aggregates for the viewer.
func (s *Service) FetchStats(ctx context.Context, viewer models.Viewer) (*models.MessageStats, error) {
	return s.store.CountStats(ctx, viewer)
}

// RateLimit derives the viewer's current send quota from the stored
// counter. Absent or expired windows count as fresh.
func (s *Service) RateLimit(ctx context.Context, viewer models.Viewer) (models.RateLimitInfo, error) {
	window, err := s.store.GetSendWindow(ctx, viewer.ID)
	if err != nil {
		return models.RateLimitInfo{}, err
	}
	return ratelimit.Derive(window, s.hourlyLimit, time.Now().UTC()), nil
}

// SendRequest describes one send operation.
type SendRequest struct {
	Kind         models.MessageKind
	RecipientIDs []uuid.UUID
	Subject      string
	Content      string
	Priority     models.Priority
	ThreadID     string // empty starts a new thread (direct only)
}

// Send validates and stores the request. A direct send to N recipients
// produces N independent rows; a broadcast produces one row plus N
// fan-out rows. The store bumps the sender's quota counter inside the
// insert transaction and refuses the whole send when it would exceed the
// limit, so concurrent sends can never overspend.
func (s *Service) Send(ctx context.Context, viewer models.Viewer, req SendRequest) ([]models.Message, error) {
	if err := s.validate(viewer, &req); err != nil {
		return nil, err
	}

	var messages []models.Message
	var err error
	switch req.Kind {
	case models.KindDirect:
		messages, err = s.store.InsertDirect(ctx, viewer.ID, req.RecipientIDs, req.Subject, req.Content, req.Priority, req.ThreadID, s.hourlyLimit)
	case models.KindBroadcast:
		var msg *models.Message
		msg, err = s.store.InsertBroadcast(ctx, viewer.ID, req.RecipientIDs, req.Subject, req.Content, req.Priority, s.hourlyLimit)
		if msg != nil {
			messages = []models.Message{*msg}
		}
	}
	if err != nil {
		var qe *store.QuotaError
		if errors.As(err, &qe) {
			metrics.QuotaRefusals.Inc()
			now := time.Now().UTC()
			info := ratelimit.Derive(&qe.Window, s.hourlyLimit, now)
			return nil, &RateLimitError{Info: info, Wait: ratelimit.WaitHint(info, now)}
		}
		s.logger.Error().Err(err).Str("kind", string(req.Kind)).Msg("send failed")
		return nil, err
	}

	s.publishSends(ctx, viewer, req, messages)

	metrics.MessagesSent.WithLabelValues(string(req.Kind)).Add(float64(len(messages)))
	if req.Kind == models.KindBroadcast {
		metrics.BroadcastFanout.Observe(float64(len(req.RecipientIDs)))
	}

	return messages, nil
}

// publishSends pushes realtime inserts to recipients and emits the
// event-stream record. Both are best-effort.
func (s *Service) publishSends(ctx context.Context, viewer models.Viewer, req SendRequest, messages []models.Message) {
	if s.bus != nil {
		for _, m := range messages {
			ev := &models.MessageEvent{Type: models.EventInsert, Message: m}
			targets := make([]uuid.UUID, 0, len(req.RecipientIDs)+1)
			if m.Kind == models.KindBroadcast {
				targets = append(targets, req.RecipientIDs...)
			} else if m.ReceiverID != nil {
				targets = append(targets, *m.ReceiverID)
			}
			targets = append(targets, viewer.ID) // sender sees their own insert
			for _, t := range targets {
				if err := s.bus.PublishEvent(ctx, t.String(), ev); err != nil {
					s.logger.Warn().Err(err).Str("user", t.String()).Msg("realtime publish failed")
				}
			}
		}
	}

	if s.producer != nil {
		for _, m := range messages {
			err := s.producer.PublishCreated(ctx, events.MessageCreated{
				ID:         m.ID,
				SenderID:   m.SenderID.String(),
				Kind:       m.Kind,
				Priority:   m.Priority,
				Recipients: len(req.RecipientIDs),
				CreatedAt:  m.CreatedAt,
			})
			if err != nil {
				s.logger.Warn().Err(err).Str("message", m.ID).Msg("event publish failed")
			}
		}
	}
}

func (s *Service) validate(viewer models.Viewer, req *SendRequest) error {
	req.Subject = strings.TrimSpace(req.Subject)
	req.Content = strings.TrimSpace(req.Content)

	if req.Kind != models.KindDirect && req.Kind != models.KindBroadcast {
		return &ValidationError{Field: "kind", Reason: "must be direct or broadcast"}
	}
	if req.Kind == models.KindBroadcast && !viewer.IsAdmin() {
		return ErrForbidden
	}
	if req.Subject == "" {
		return &ValidationError{Field: "subject", Reason: "is required"}
	}
	if len(req.Subject) > maxSubjectLen {
		return &ValidationError{Field: "subject", Reason: "too long"}
	}
	if req.Content == "" {
		return &ValidationError{Field: "content", Reason: "is required"}
	}
	if len(req.Content) > maxContentLen {
		return &ValidationError{Field: "content", Reason: "too long"}
	}
	if len(req.RecipientIDs) == 0 {
		return &ValidationError{Field: "recipients", Reason: "at least one recipient is required"}
	}
	if req.Kind == models.KindBroadcast && len(req.RecipientIDs) > s.maxBroadcast {
		return &ValidationError{Field: "recipients", Reason: "too many recipients"}
	}
	seen := make(map[uuid.UUID]bool, len(req.RecipientIDs))
	for _, id := range req.RecipientIDs {
		if id == uuid.Nil {
			return &ValidationError{Field: "recipients", Reason: "contains an invalid recipient"}
		}
		if id == viewer.ID {
			return &ValidationError{Field: "recipients", Reason: "cannot include the sender"}
		}
		if seen[id] {
			return &ValidationError{Field: "recipients", Reason: "contains duplicates"}
		}
		seen[id] = true
	}
	if req.Priority == "" {
		req.Priority = models.PriorityNormal
	}
	if req.Priority != models.PriorityLow && req.Priority != models.PriorityNormal && req.Priority != models.PriorityHigh {
		return &ValidationError{Field: "priority", Reason: "must be low, normal or high"}
	}
	return nil
}

// MarkRead records a read receipt for the viewer on one message. The
// direct row and any broadcast fan-out row are updated in one pass;
// repeated calls are no-ops that keep the original read_at.
func (s *Service) MarkRead(ctx context.Context, viewer models.Viewer, messageID string) error {
	now := time.Now().UTC()

	changedMsg, err := s.store.MarkMessageRead(ctx, messageID, viewer.ID, now)
	if err != nil {
		return err
	}
	changedRcpt, err := s.store.MarkRecipientRead(ctx, messageID, viewer.ID, now)
	if err != nil {
		return err
	}
	if !changedMsg && !changedRcpt {
		return nil
	}

	metrics.MessagesRead.Inc()

	if s.bus != nil {
		msg, err := s.store.GetMessage(ctx, messageID)
		if err != nil || msg == nil {
			return nil
		}
		ev := &models.MessageEvent{Type: models.EventUpdate, Message: *msg}
		// Sender gets the read receipt, viewer gets their own update.
		for _, t := range []uuid.UUID{msg.SenderID, viewer.ID} {
			if err := s.bus.PublishEvent(ctx, t.String(), ev); err != nil {
				s.logger.Warn().Err(err).Str("user", t.String()).Msg("realtime publish failed")
			}
		}
	}
	return nil
}

// GetThread refetches all messages between the viewer and one
// counterpart, ascending, with the unread count computed for the viewer.
func (s *Service) GetThread(ctx context.Context, viewer models.Viewer, counterpartID uuid.UUID) (*models.MessageThread, error) {
	messages, err := s.store.ThreadBetween(ctx, viewer.ID, counterpartID)
	if err != nil {
		return nil, err
	}
	t := thread.Assemble(counterpartID.String(), messages, viewer.ID)
	if t == nil {
		// No exchange yet; an empty thread cannot exist, so return an
		// assembled shell with no messages for the API layer to 404 on.
		return nil, nil
	}
	return t, nil
}

// Threads assembles the viewer's messages into thread_id groups.
func (s *Service) Threads(ctx context.Context, viewer models.Viewer) ([]models.MessageThread, error) {
	messages, err := s.FetchMessages(ctx, viewer, defaultFetchLimit)
	if err != nil {
		return nil, err
	}
	return thread.ByThreadID(messages, viewer.ID), nil
}

// ListClients exposes the recipient directory for composers.
func (s *Service) ListClients(ctx context.Context) ([]models.User, error) {
	return s.store.ListClients(ctx)
}

// mergeByID merges two newest-first lists, deduplicating by message ID.
func mergeByID(a, b []models.Message) []models.Message {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]models.Message, 0, len(a)+len(b))
	for _, list := range [][]models.Message{a, b} {
		for _, m := range list {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			out = append(out, m)
		}
	}
	sortDescending(out)
	return out
}

func sortDescending(messages []models.Message) {
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID > messages[j].ID
		}
		return messages[i].CreatedAt.After(messages[j].CreatedAt)
	})
}
