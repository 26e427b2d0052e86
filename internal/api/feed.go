package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hackrange/ctf-engine/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	feedWriteTimeout = 10 * time.Second
	feedSendBuffer   = 16
)

// FeedHub broadcasts solve events to connected websocket clients.
// Slow clients get disconnected rather than blocking the hub.
type FeedHub struct {
	mu      sync.RWMutex
	clients map[*feedClient]struct{}
}

type feedClient struct {
	conn *websocket.Conn
	send chan models.SolveEvent
}

// NewFeedHub creates an empty hub
func NewFeedHub() *FeedHub {
	return &FeedHub{
		clients: make(map[*feedClient]struct{}),
	}
}

// Broadcast queues an event for every connected client. Never blocks:
// clients whose send buffer is full are dropped.
func (h *FeedHub) Broadcast(ctx context.Context, event models.SolveEvent) {
	h.mu.RLock()
	stale := make([]*feedClient, 0)
	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		slog.Warn("dropping slow feed client", "remote_addr", c.conn.RemoteAddr().String())
		h.remove(c)
	}
}

// ClientCount returns the number of connected clients
func (h *FeedHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *FeedHub) add(c *feedClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *FeedHub) remove(c *feedClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// handleSolveFeed upgrades the connection and streams solve events
func (s *Server) handleSolveFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}

	client := &feedClient{
		conn: conn,
		send: make(chan models.SolveEvent, feedSendBuffer),
	}
	s.feed.add(client)

	slog.Info("solve feed client connected", "remote_addr", conn.RemoteAddr().String())

	// The write loop below owns the connection: closing it is what
	// unblocks the reader on shutdown.
	defer conn.Close()

	// Reader goroutine: we ignore incoming messages but need to consume
	// them to process control frames and detect disconnects. Removing
	// the client closes its send channel and ends the write loop.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.feed.remove(client)
				return
			}
		}
	}()

	for event := range client.send {
		conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
		if err := conn.WriteJSON(event); err != nil {
			slog.Debug("feed write failed", "error", err, "remote_addr", conn.RemoteAddr().String())
			s.feed.remove(client)
			return
		}
	}
}
