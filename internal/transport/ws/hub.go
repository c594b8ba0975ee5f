// Package ws pushes state snapshots to UI clients over WebSocket.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"twido/pkg/domain"
)

// MessageType tags outbound frames.
const MessageType = "SNAPSHOT"

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
)

// Message is the JSON frame sent to clients.
type Message struct {
	Type     string          `json:"type"`
	Seq      uint64          `json:"seq"`
	Document domain.Document `json:"document"`
}

// Source is the observable state a Hub publishes.
type Source interface {
	Snapshot() domain.Document
	Observe(fn func(domain.Document)) func()
}

type client struct {
	// out holds at most the newest unsent frame; snapshots are full state.
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) offer(b []byte) {
	for {
		select {
		case c.out <- b:
			return
		default:
		}
		select {
		case <-c.out:
		default:
		}
	}
}

func (c *client) close() { c.once.Do(func() { close(c.done) }) }

// Hub fans every observed snapshot out to connected clients.
type Hub struct {
	src      Source
	logger   *slog.Logger
	upgrader websocket.Upgrader
	seq      atomic.Uint64

	mu      sync.Mutex
	clients map[*client]struct{}
	cancel  func()
	closed  bool
}

// NewHub subscribes to src. Call Close to detach.
func NewHub(src Source, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		src:    src,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true }, // local UI
		},
		clients: make(map[*client]struct{}),
	}
	h.cancel = src.Observe(h.broadcast)
	return h
}

func (h *Hub) encode(doc domain.Document) ([]byte, error) {
	return json.Marshal(Message{Type: MessageType, Seq: h.seq.Add(1), Document: doc})
}

func (h *Hub) broadcast(doc domain.Document) {
	b, err := h.encode(doc)
	if err != nil {
		h.logger.Warn("encode snapshot failed", "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.offer(b)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register() (*client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	c := &client{out: make(chan []byte, 1), done: make(chan struct{})}
	h.clients[c] = struct{}{}
	return c, true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// Handler upgrades the request and streams snapshots, starting with the current one.
func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		c, ok := h.register()
		if !ok {
			http.Error(rw, "shutting down", http.StatusServiceUnavailable)
			return
		}
		defer h.unregister(c)

		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		if b, err := h.encode(h.src.Snapshot()); err == nil {
			c.offer(b)
		}

		// Reader loop only detects disconnects; clients send nothing meaningful.
		go func() {
			defer c.close()
			for {
				_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-c.done:
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
				return
			case b := <-c.out:
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					h.logger.Debug("snapshot write failed", "error", err)
					return
				}
			}
		}
	}
}

// Close detaches from the source and disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()
	h.cancel()
	for c := range clients {
		c.close()
	}
}
