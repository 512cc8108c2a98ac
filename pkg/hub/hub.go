// Package hub fans JSON messages out to websocket clients from a single
// goroutine and forwards what clients send to a handler.
//
// Each client has a small queue. When it fills, the oldest message is
// discarded, so a slow overlay falls behind by frames instead of being
// disconnected.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Handler receives a text message read from a client.
type Handler func(c *Client, data []byte)

// ConnectHandler runs on the hub goroutine once a client is registered.
type ConnectHandler func(c *Client)

// Hub tracks connected clients. Membership changes and fan-out happen on
// the Run goroutine; ClientCount may be called from anywhere.
type Hub struct {
	name   string
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}

	broadcast  chan []byte
	direct     chan directMessage
	register   chan *Client
	unregister chan *Client

	onMessage Handler
	onConnect ConnectHandler

	dropped atomic.Int64
	done    chan struct{}
}

type directMessage struct {
	client *Client
	data   []byte
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// OnMessage sets the handler for messages clients send.
func OnMessage(fn Handler) Option {
	return func(h *Hub) { h.onMessage = fn }
}

// OnConnect sets the handler called for each new client.
func OnConnect(fn ConnectHandler) Option {
	return func(h *Hub) { h.onConnect = fn }
}

// New creates a hub. Call Run before accepting clients.
func New(name string, opts ...Option) *Hub {
	h := &Hub{
		name:       name,
		logger:     slog.Default(),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 64),
		direct:     make(chan directMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("hub", name)
	return h
}

// Run serves the hub until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", "client", c.id, "clients", n)
			if h.onConnect != nil {
				h.onConnect(c)
			}

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", "client", c.id, "clients", n, "skipped", c.skipped)

		case dm := <-h.direct:
			h.mu.RLock()
			_, ok := h.clients[dm.client]
			h.mu.RUnlock()
			if ok {
				dm.client.enqueue(dm.data)
			}

		case data := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				c.enqueue(data)
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// Done is closed after Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Broadcast queues data for every client. It never blocks; when the hub is
// backed up the message is counted as dropped.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		h.dropped.Add(1)
	}
}

// BroadcastJSON encodes v and broadcasts it.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// SendTo queues data for one client. Safe from any goroutine, including
// message handlers.
func (h *Hub) SendTo(c *Client, data []byte) {
	select {
	case h.direct <- directMessage{client: c, data: data}:
	default:
		h.dropped.Add(1)
	}
}

// SendJSONTo encodes v and queues it for one client.
func (h *Hub) SendJSONTo(c *Client, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.SendTo(c, data)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages never reached the hub goroutine.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func (h *Hub) dispatch(c *Client, data []byte) {
	if h.onMessage != nil {
		h.onMessage(c, data)
	}
}
