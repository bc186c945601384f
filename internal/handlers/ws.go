package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/growthpro/messaging/internal/api/middleware"
	"github.com/growthpro/messaging/internal/messaging"
	"github.com/growthpro/messaging/internal/models"
	"github.com/growthpro/messaging/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SnapshotFrame is the first frame pushed after a websocket connects.
type SnapshotFrame struct {
	Type     string           `json:"type"`
	Messages []models.Message `json:"messages"`
	Unread   int              `json:"unread"`
}

// ServeWS upgrades the connection, primes the viewer's snapshot with a
// full fetch and hands the connection to the realtime hub.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.GetViewerFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	snapshot := messaging.NewSnapshot(viewer.ID)
	if _, err := h.svc.Refresh(r.Context(), viewer, snapshot); err != nil {
		h.logger.Error().Err(err).Msg("snapshot refresh failed")
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := realtime.NewClient(h.hub, conn, viewer, snapshot)
	client.Start()

	frame, err := json.Marshal(SnapshotFrame{
		Type:     "snapshot",
		Messages: snapshot.Messages(),
		Unread:   snapshot.UnreadCount(),
	})
	if err == nil {
		client.Send(frame)
	}
}
