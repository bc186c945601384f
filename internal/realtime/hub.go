// Package realtime bridges the Redis change-notification bus to
// connected websocket clients. One Redis subscription is held per
// viewer with at least one open connection; the subscription follows
// the connection lifecycle, so changing viewers re-subscribes.
package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/growthpro/messaging/internal/metrics"
	"github.com/growthpro/messaging/internal/models"
	"github.com/growthpro/messaging/internal/store"
)

// Push is the frame delivered to websocket clients.
type Push struct {
	Event      models.MessageEvent `json:"event"`
	NewMessage bool                `json:"new_message"`
	Unread     int                 `json:"unread"`
}

type subscription struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

// Hub routes realtime events from Redis to websocket clients.
type Hub struct {
	bus    *store.RedisStore
	logger zerolog.Logger

	register   chan *Client
	unregister chan *Client
	events     chan viewerEvent

	// clients and subs are touched only from Run's goroutine.
	clients map[uuid.UUID]map[*Client]bool
	subs    map[uuid.UUID]*subscription
}

type viewerEvent struct {
	viewerID uuid.UUID
	event    models.MessageEvent
}

// NewHub creates a hub over the Redis bus.
func NewHub(bus *store.RedisStore, logger zerolog.Logger) *Hub {
	return &Hub{
		bus:        bus,
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan viewerEvent, 64),
		clients:    make(map[uuid.UUID]map[*Client]bool),
		subs:       make(map[uuid.UUID]*subscription),
	}
}

// Run owns the client registry. Call in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, sub := range h.subs {
				sub.cancel()
				sub.pubsub.Close()
			}
			return

		case client := <-h.register:
			viewerID := client.viewer.ID
			if h.clients[viewerID] == nil {
				h.clients[viewerID] = make(map[*Client]bool)
				h.subscribe(ctx, viewerID)
			}
			h.clients[viewerID][client] = true
			metrics.WebsocketConnections.Inc()

		case client := <-h.unregister:
			viewerID := client.viewer.ID
			if set, ok := h.clients[viewerID]; ok && set[client] {
				delete(set, client)
				close(client.send)
				metrics.WebsocketConnections.Dec()
				if len(set) == 0 {
					delete(h.clients, viewerID)
					if sub, ok := h.subs[viewerID]; ok {
						sub.cancel()
						sub.pubsub.Close()
						delete(h.subs, viewerID)
					}
				}
			}

		case ve := <-h.events:
			h.deliver(ve.viewerID, ve.event)
		}
	}
}

// subscribe opens the viewer's Redis channel and pumps its events to
// that viewer's connections.
func (h *Hub) subscribe(ctx context.Context, viewerID uuid.UUID) {
	subCtx, cancel := context.WithCancel(ctx)
	pubsub := h.bus.Subscribe(subCtx, viewerID.String())
	h.subs[viewerID] = &subscription{pubsub: pubsub, cancel: cancel}

	ch := pubsub.Channel()
	go func() {
		for msg := range ch {
			var ev models.MessageEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				h.logger.Warn().Err(err).Msg("malformed realtime event")
				continue
			}
			select {
			case h.events <- viewerEvent{viewerID: viewerID, event: ev}:
			case <-subCtx.Done():
				return
			}
		}
	}()
}

// deliver merges the event into each connection's snapshot and forwards
// the push frame. Slow clients are dropped rather than blocking the
// pump.
func (h *Hub) deliver(viewerID uuid.UUID, ev models.MessageEvent) {
	metrics.RealtimeEvents.WithLabelValues(string(ev.Type)).Inc()

	for client := range h.clients[viewerID] {
		isNew := client.snapshot.Apply(ev)
		frame, err := json.Marshal(Push{
			Event:      ev,
			NewMessage: isNew,
			Unread:     client.snapshot.UnreadCount(),
		})
		if err != nil {
			continue
		}
		select {
		case client.send <- frame:
		default:
			close(client.send)
			delete(h.clients[viewerID], client)
			metrics.WebsocketConnections.Dec()
		}
	}
}
