package rpcapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seloria/seloria/core/types"
)

// upgrader accepts any origin: this node is meant to sit behind a
// reverse proxy or be reached directly by trusted agents, not a browser
// served from a third-party origin.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsFrame is spec.md §6's WebSocket envelope: {type, data}.
type wsFrame struct {
	Type types.EventKind `json:"type"`
	Data types.Event     `json:"data"`
}

const wsWriteTimeout = 5 * time.Second

// handleWS upgrades the connection and streams every event published on
// the bus until the client disconnects or a write stalls past
// wsWriteTimeout, at which point the connection is dropped — matching
// spec.md §4.5's "slow subscribers may drop events but must never block
// commit".
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	for ev := range events {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		frame := wsFrame{Type: ev.Kind, Data: ev}
		b, err := json.Marshal(frame)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
}
