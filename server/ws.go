package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/lounge/chat"
)

const (
	// Time allowed to write an event to the peer.
	writeWait = 10 * time.Second
	// Time allowed to keep an idle connection alive.
	pongWait = 60 * time.Second
	// Send pings to peer with this period.
	pingPeriod = (pongWait * 9) / 10
	// Maximum inbound frame size. Messages are truncated to 128 runes
	// anyway; this only bounds hostile frames.
	maxFrameSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Pages and websocket are served from the same origin; the CORS
	// middleware governs the rest of the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inboundFrame is one client event: joinRoom, message.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// outboundFrame wraps an engine event for the wire.
type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// HandleWS upgrades the connection and runs it through the chat engine's
// state machine until either side disconnects.
func (h *Handlers) HandleWS(w http.ResponseWriter, r *http.Request) {
	identity := h.requestIdentity(r)

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.Any("err", err))
		return
	}

	conn := h.engine.NewConn(identity)
	go h.writePump(ws, conn)
	h.readPump(ws, conn)
}

// readPump drains inbound frames and feeds the controller. It owns the
// connection's Session; when it returns, the connection is torn down.
func (h *Handlers) readPump(ws *websocket.Conn, conn *chat.Conn) {
	defer func() {
		h.engine.Disconnect(conn)
		_ = ws.Close()
	}()

	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", slog.Any("err", err))
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			// Malformed frame: drop it, keep the connection.
			continue
		}

		switch frame.Event {
		case "joinRoom":
			if !truthy(frame.Data) {
				continue
			}
			if err := h.engine.HandleJoin(conn); err != nil {
				return
			}
		case "message":
			var payload struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(frame.Data, &payload); err != nil || payload.Message == "" {
				continue
			}
			if err := h.engine.HandleMessage(conn, payload.Message); err != nil {
				return
			}
		default:
			// Unknown events are ignored.
		}
	}
}

// writePump marshals engine events onto the socket and keeps the connection
// alive with pings. It exits when the connection is torn down or a write
// fails.
func (h *Handlers) writePump(ws *websocket.Conn, conn *chat.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case ev := <-conn.Events():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(outboundFrame{Event: ev.Name, Data: ev.Data}); err != nil {
				return
			}
		case <-conn.Done():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// truthy mirrors the loose join marker: any JSON value other than absent,
// null, false, 0, or an empty string/object/array counts.
func truthy(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}
