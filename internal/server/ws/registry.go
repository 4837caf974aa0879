// Package ws holds the relay's WebSocket side: the connection registry that
// maps user ids to live sockets, and the handler that upgrades, authenticates,
// and dispatches frames.
package ws

import (
	"sync"

	"github.com/rs/zerolog"

	"sealchat/internal/domain"
)

// conn is the slice of *websocket.Conn the registry needs. Tests substitute
// an in-memory implementation.
type conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Client is one authenticated socket. A user may hold several at once
// (multiple devices); writes to the underlying conn are serialised.
type Client struct {
	UserID string

	mu sync.Mutex
	c  conn
}

func NewClient(userID string, c conn) *Client {
	return &Client{UserID: userID, c: c}
}

func (c *Client) Send(env domain.WsEnvelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.c.WriteJSON(env)
}

func (c *Client) Close() error { return c.c.Close() }

// Registry tracks which users currently hold live connections.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	log     zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		clients: make(map[string]map[*Client]struct{}),
		log:     log.With().Str("component", "registry").Logger(),
	}
}

func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		r.clients[c.UserID] = set
	}
	set[c] = struct{}{}
}

// Remove drops c. It reports whether the user has no connections left, so the
// caller knows when to flip presence to offline.
func (r *Registry) Remove(c *Client) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.clients[c.UserID]
	if !ok {
		return true
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.clients, c.UserID)
		return true
	}
	return false
}

// SendTo writes env to every connection userID holds. A failed write drops
// that connection from the fanout but does not abort the rest. Returns false
// when the user has no live connection.
func (r *Registry) SendTo(userID string, env domain.WsEnvelope) bool {
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.clients[userID]))
	for c := range r.clients[userID] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	if len(targets) == 0 {
		return false
	}
	delivered := false
	for _, c := range targets {
		if err := c.Send(env); err != nil {
			r.log.Debug().Str("user", userID).Err(err).Msg("dropping dead connection")
			continue
		}
		delivered = true
	}
	return delivered
}

// Broadcast sends env to every online user except exceptUserID.
func (r *Registry) Broadcast(env domain.WsEnvelope, exceptUserID string) {
	for _, id := range r.OnlineUserIDs() {
		if id == exceptUserID {
			continue
		}
		r.SendTo(id, env)
	}
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients[userID]) > 0
}

func (r *Registry) OnlineUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}
