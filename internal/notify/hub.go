// Package notify fans change events out to connected browsers.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"paylog/internal/core"
	"paylog/internal/log"
)

// Event is the payload sent to observers.
type Event = core.ChangeEvent

func MemberUpdated(id int64) Event { return core.MemberUpdated(id) }
func MembersUpdated() Event        { return core.MembersUpdated() }

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	sendBufferSize = 16
)

// Hub is the registry of websocket subscribers. Delivery is best effort:
// a subscriber whose buffer is full misses the message.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*subscriber]struct{}
	closed   bool
	upgrader websocket.Upgrader
	logger   *log.Logger
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

var _ core.Notifier = (*Hub)(nil)

// NewHub creates an empty hub. checkOrigin may be nil to require the Origin
// header to match the request host.
func NewHub(logger *log.Logger, checkOrigin func(*http.Request) bool) *Hub {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Hub{
		clients: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger.WithComponent(log.ComponentNotify),
	}
}

// Publish sends e to every subscriber without blocking.
func (h *Hub) Publish(ctx context.Context, e Event) {
	msg, err := json.Marshal(e)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to encode event", log.FieldError, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	dropped := 0
	for s := range h.clients {
		select {
		case s.send <- msg:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.WarnContext(ctx, "Dropped event for slow subscribers",
			log.FieldEventType, e.Type, "dropped", dropped)
	}
}

// ServeHTTP upgrades the request and streams events until the peer goes
// away or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an error status.
		h.logger.WarnContext(r.Context(), "Websocket upgrade failed", log.FieldError, err)
		return
	}

	s := &subscriber{conn: conn, send: make(chan []byte, sendBufferSize)}
	if !h.register(s) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	go h.writePump(s)
	h.readPump(s)
}

func (h *Hub) register(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[s] = struct{}{}
	return true
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	if _, ok := h.clients[s]; ok {
		delete(h.clients, s)
	}
	h.mu.Unlock()
	s.once.Do(func() { close(s.send) })
}

// readPump discards inbound messages and keeps the read deadline fresh via
// pongs. It returns when the connection fails.
func (h *Hub) readPump(s *subscriber) {
	defer func() {
		h.unregister(s)
		_ = s.conn.Close()
	}()
	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*subscriber, 0, len(h.clients))
	for s := range h.clients {
		subs = append(subs, s)
		delete(h.clients, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.once.Do(func() { close(s.send) })
	}
}
