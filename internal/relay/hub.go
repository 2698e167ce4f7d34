// Package relay fans raw playback-position frames out between the live
// sessions watching the same video. The relay is informational only: frames
// are not validated, not persisted, and carry no consistency guarantee with
// the stored progress records.
package relay

import (
	"context"

	"go.uber.org/zap"
)

// Client is one connected viewer session. Send is drained by the connection's
// write loop; the hub never blocks on it.
type Client struct {
	VideoID string
	UserID  string
	Send    chan []byte
}

type broadcastMsg struct {
	videoID string
	sender  *Client
	data    []byte
}

// Hub tracks the connected clients per video and rebroadcasts frames to
// everyone else in the same room. All state is owned by the Run goroutine.
type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMsg, 64),
		log:        log,
	}
}

// Run owns the room state until ctx is cancelled. Start it as a goroutine
// before serving connections.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, room := range h.rooms {
				for c := range room {
					close(c.Send)
				}
			}
			h.rooms = make(map[string]map[*Client]bool)
			return

		case c := <-h.register:
			room, ok := h.rooms[c.VideoID]
			if !ok {
				room = make(map[*Client]bool)
				h.rooms[c.VideoID] = room
			}
			room[c] = true
			h.log.Debug("relay client joined",
				zap.String("video_id", c.VideoID), zap.String("user_id", c.UserID))

		case c := <-h.unregister:
			if room, ok := h.rooms[c.VideoID]; ok {
				if room[c] {
					delete(room, c)
					close(c.Send)
					if len(room) == 0 {
						delete(h.rooms, c.VideoID)
					}
				}
			}

		case msg := <-h.broadcast:
			for c := range h.rooms[msg.videoID] {
				if c == msg.sender {
					continue
				}
				select {
				case c.Send <- msg.data:
				default:
					// Slow consumer; at-most-once relay drops the frame.
				}
			}
		}
	}
}

// Register queues a client for registration.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister queues a client for removal.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// Broadcast relays data to every other client watching the same video.
// Best-effort: if the hub's queue is full the frame is dropped.
func (h *Hub) Broadcast(videoID string, sender *Client, data []byte) {
	select {
	case h.broadcast <- broadcastMsg{videoID: videoID, sender: sender, data: data}:
	default:
		h.log.Warn("relay queue full, frame dropped", zap.String("video_id", videoID))
	}
}
