// Package thread turns flat message rows into derived conversation
// threads. All functions are pure: same input, same output.
package thread

import (
	"sort"

	"github.com/google/uuid"

	"github.com/growthpro/messaging/internal/models"
)

// sortAscending orders messages by creation time, oldest first. ULIDs
// break ties so the order is total.
func sortAscending(messages []models.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}

// unreadFor counts messages addressed to the viewer that are not read.
func unreadFor(messages []models.Message, viewerID uuid.UUID) int {
	count := 0
	for _, m := range messages {
		if m.ReceiverID != nil && *m.ReceiverID == viewerID && m.Status != models.StatusRead {
			count++
		}
	}
	return count
}

// participants derives the participant set from the sender and receiver
// summaries observed in the group, deduplicated by ID.
func participants(messages []models.Message) []models.UserSummary {
	seen := make(map[uuid.UUID]bool)
	var out []models.UserSummary
	for _, m := range messages {
		if m.Sender != nil && !seen[m.Sender.ID] {
			seen[m.Sender.ID] = true
			out = append(out, *m.Sender)
		}
		if m.Receiver != nil && !seen[m.Receiver.ID] {
			seen[m.Receiver.ID] = true
			out = append(out, *m.Receiver)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// Assemble builds a single thread from flat rows: ascending order,
// participant union, unread count for the viewer. Returns nil for an
// empty group; a thread with zero messages cannot exist.
func Assemble(id string, messages []models.Message, viewerID uuid.UUID) *models.MessageThread {
	if len(messages) == 0 {
		return nil
	}

	msgs := make([]models.Message, len(messages))
	copy(msgs, messages)
	sortAscending(msgs)

	last := msgs[len(msgs)-1]
	return &models.MessageThread{
		ID:           id,
		Participants: participants(msgs),
		Messages:     msgs,
		LastMessage:  &last,
		UnreadCount:  unreadFor(msgs, viewerID),
	}
}

// ByThreadID groups messages by their thread ID. Threads are sorted
// descending by last message time.
func ByThreadID(messages []models.Message, viewerID uuid.UUID) []models.MessageThread {
	groups := make(map[string][]models.Message)
	for _, m := range messages {
		tid := m.ThreadID
		if tid == "" {
			tid = m.ID
		}
		groups[tid] = append(groups[tid], m)
	}

	threads := make([]models.MessageThread, 0, len(groups))
	for tid, group := range groups {
		if t := Assemble(tid, group, viewerID); t != nil {
			threads = append(threads, *t)
		}
	}

	sortThreadsByLastMessage(threads)
	return threads
}

// ByCounterpart groups the viewer's direct messages by the other
// participant, the pairing model used for admin-client conversations.
func ByCounterpart(messages []models.Message, viewerID uuid.UUID) []models.MessageThread {
	groups := make(map[uuid.UUID][]models.Message)
	for _, m := range messages {
		if m.Kind != models.KindDirect || m.ReceiverID == nil {
			continue
		}
		counterpart := m.SenderID
		if m.SenderID == viewerID {
			counterpart = *m.ReceiverID
		}
		groups[counterpart] = append(groups[counterpart], m)
	}

	threads := make([]models.MessageThread, 0, len(groups))
	for counterpart, group := range groups {
		if t := Assemble(counterpart.String(), group, viewerID); t != nil {
			threads = append(threads, *t)
		}
	}

	sortThreadsByLastMessage(threads)
	return threads
}

func sortThreadsByLastMessage(threads []models.MessageThread) {
	sort.SliceStable(threads, func(i, j int) bool {
		a, b := threads[i].LastMessage, threads[j].LastMessage
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID > b.ID
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}
