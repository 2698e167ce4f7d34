package relay

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/watch-progress/internal/platform/api"
	"github.com/example/watch-progress/internal/platform/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 4096
	sendBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is handled by the CORS layer; the relay carries no
	// privileged data.
	CheckOrigin: func(*http.Request) bool { return true },
}

// inboundFrame is what a player session sends: its current position.
type inboundFrame struct {
	Progress float64 `json:"progress"`
}

// outboundFrame is what the other sessions in the room receive.
type outboundFrame struct {
	UserID   string  `json:"user_id"`
	Progress float64 `json:"progress"`
}

// ServeWS upgrades the request and joins the caller to the video's room.
// Each position frame the client sends is rebroadcast to the room's other
// members tagged with the sender's user id.
func ServeWS(hub *Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "AUTH_MISSING", "user identity is required", "")
			return
		}
		videoID := strings.TrimSpace(chi.URLParam(r, "video_id"))
		if videoID == "" {
			api.BadRequest(w, "MISSING_ID", "video_id is required", "", nil)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			log.Debug("relay upgrade failed", zap.Error(err))
			return
		}

		client := &Client{VideoID: videoID, UserID: userID, Send: make(chan []byte, sendBufferSize)}
		hub.Register(client)

		go writePump(conn, client)
		go readPump(conn, hub, client, log)
	}
}

func readPump(conn *websocket.Conn, hub *Hub, c *Client, log *zap.Logger) {
	defer func() {
		hub.Unregister(c)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("relay read error", zap.String("video_id", c.VideoID), zap.Error(err))
			}
			return
		}

		var in inboundFrame
		if err := json.Unmarshal(raw, &in); err != nil {
			// Garbage frames are dropped, not fatal.
			continue
		}
		out, err := json.Marshal(outboundFrame{UserID: c.UserID, Progress: in.Progress})
		if err != nil {
			continue
		}
		hub.Broadcast(c.VideoID, c, out)
	}
}

func writePump(conn *websocket.Conn, c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
