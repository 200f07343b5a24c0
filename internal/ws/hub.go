package ws

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/message"
	"github.com/strawberryicecream-byte/chatbyanonymous-bot/internal/user"
)

// Client represents a connected WebSocket user.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	userID user.ID
	token  string
}

// Hub maps users to their live connection and delivers notices to them.
// It implements chat.Transport.
type Hub struct {
	mu      sync.RWMutex
	clients map[user.ID]*Client
	conns   *ConnManager
}

// NewHub creates a new Hub whose connections are managed with opts.
func NewHub(opts ...ConnManagerOption) *Hub {
	return &Hub{
		clients: make(map[user.ID]*Client),
		conns:   NewConnManager(opts...),
	}
}

// ConnMgr returns the connection manager for this hub.
func (h *Hub) ConnMgr() *ConnManager {
	return h.conns
}

// addClient registers a client and starts its write pump. The returned
// context is cancelled when the client is removed. It returns false if
// the connection manager refused the client.
func (h *Hub) addClient(c *Client) (context.Context, bool) {
	ctx, ok := h.conns.Add(c)
	if !ok {
		return nil, false
	}

	h.mu.Lock()
	h.clients[c.userID] = c
	h.mu.Unlock()
	return ctx, true
}

// removeClient unregisters a client and stops its write pump.
func (h *Hub) removeClient(c *Client) {
	h.conns.Remove(c)

	h.mu.Lock()
	if h.clients[c.userID] == c {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()
}

// Connected reports whether id has a live connection.
func (h *Hub) Connected(id user.ID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[id]
	return ok
}

// ClientCount returns the number of connected users.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send delivers msg to the user under a fresh message ID and returns that
// ID.
func (h *Hub) Send(_ context.Context, to user.ID, msg *message.Message) (string, error) {
	m := *msg
	m.ID = uuid.NewString()
	if err := h.deliver(to, TypeNotice, &m); err != nil {
		return "", err
	}
	return m.ID, nil
}

// Edit replaces the content of a message the user already received.
func (h *Hub) Edit(_ context.Context, to user.ID, msgID string, msg *message.Message) error {
	m := *msg
	m.ID = msgID
	return h.deliver(to, TypeEdit, &m)
}

func (h *Hub) deliver(to user.ID, typ string, msg *message.Message) error {
	data, err := encode(typ, msg)
	if err != nil {
		return fmt.Errorf("ws: encode %s: %w", typ, err)
	}

	h.mu.RLock()
	c, ok := h.clients[to]
	h.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	return h.conns.Send(c, data)
}
