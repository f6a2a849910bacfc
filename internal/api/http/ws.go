package apihttp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
)

// wsMessage is the tagged wire envelope for every pushed
// ports.BroadcastMessage, snake_case "type" per SPEC_FULL.md §6.
type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS upgrades the connection and relays messages published to the
// broadcast hub until the client disconnects or the hub unsubscribes it
// (e.g. on server shutdown), grounded on the teacher's wsClient
// writePump/readPump pair — generalized to read from a
// ports.Broadcaster subscription instead of the teacher's own channel
// hub, since that responsibility now lives in internal/broadcast.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "not_configured", "broadcast hub not configured")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}

	ch, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go wsReadPump(conn, done)
	wsWritePump(conn, ch, done, s.logger)
}

func encodeBroadcastMessage(msg ports.BroadcastMessage) ([]byte, bool) {
	msgType := broadcastMessageType(msg)
	if msgType == "" {
		return nil, false
	}
	payload, err := json.Marshal(wsMessage{Type: msgType, Data: msg})
	if err != nil {
		return nil, false
	}
	return payload, true
}

func broadcastMessageType(msg ports.BroadcastMessage) string {
	switch msg.(type) {
	case ports.MsgTicketUpdate:
		return "ticket_update"
	case ports.MsgTicketDeleted:
		return "ticket_deleted"
	case ports.MsgTorrentProgress:
		return "torrent_progress"
	case ports.MsgPipelineProgress:
		return "pipeline_progress"
	case ports.MsgOrchestratorStatus:
		return "orchestrator_status"
	case ports.MsgHeartbeat:
		return "heartbeat"
	default:
		return ""
	}
}

func wsWritePump(conn *websocket.Conn, ch <-chan ports.BroadcastMessage, done <-chan struct{}, logger *slog.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case msg, ok := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			payload, ok := encodeBroadcastMessage(msg)
			if !ok {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// wsReadPump drains client frames (ping frames and any text frames, which
// are ignored per SPEC_FULL.md §6) so the connection's read deadline is
// serviced; it exits and closes done when the client disconnects.
func wsReadPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
