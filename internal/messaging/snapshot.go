package messaging

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/growthpro/messaging/internal/models"
)

// Snapshot is the in-memory message view maintained for one connected
// viewer. Full fetches carry a monotonic generation so a stale response
// can never overwrite fresher state; realtime events are merged
// incrementally by message ID.
type Snapshot struct {
	mu       sync.Mutex
	viewerID uuid.UUID
	issued   uint64
	applied  uint64
	messages map[string]models.Message
}

// NewSnapshot creates an empty snapshot for a viewer.
func NewSnapshot(viewerID uuid.UUID) *Snapshot {
	return &Snapshot{
		viewerID: viewerID,
		messages: make(map[string]models.Message),
	}
}

// Begin issues a generation token for a fetch about to start.
func (s *Snapshot) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Replace installs a full fetch result. A result whose generation is not
// newer than the last applied one is discarded; the return value reports
// whether the snapshot changed.
func (s *Snapshot) Replace(gen uint64, messages []models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen <= s.applied {
		return false
	}
	s.applied = gen

	s.messages = make(map[string]models.Message, len(messages))
	for _, m := range messages {
		s.messages[m.ID] = m
	}
	return true
}

// Apply merges one pushed row into the snapshot by ID. Returns true when
// the event is an insert addressed to the viewer, the "new message"
// notification case.
func (s *Snapshot) Apply(ev models.MessageEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[ev.Message.ID] = ev.Message

	if ev.Type != models.EventInsert {
		return false
	}
	if ev.Message.ReceiverID != nil && *ev.Message.ReceiverID == s.viewerID {
		return true
	}
	// Broadcasts reach the viewer through fan-out rows; the event itself
	// is only published to addressed recipients, so an insert that is not
	// the viewer's own send counts as new.
	return ev.Message.Kind == models.KindBroadcast && ev.Message.SenderID != s.viewerID
}

// Messages returns the snapshot contents, newest first.
func (s *Snapshot) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// UnreadCount counts snapshot messages addressed to the viewer that are
// not read.
func (s *Snapshot) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, m := range s.messages {
		if m.ReceiverID != nil && *m.ReceiverID == s.viewerID && m.Status != models.StatusRead {
			count++
		}
	}
	return count
}
