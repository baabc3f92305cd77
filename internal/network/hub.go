package network

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrIdentityBound is returned when an identity already has a connection.
var ErrIdentityBound = errors.New("identity already bound to another connection")

// Hub is the directory of live connections: which identity owns which
// client, and who is in the matching room.
type Hub struct {
	mu sync.RWMutex

	// Every open connection, logged in or not. Used by CloseAll.
	clients map[*Client]struct{}

	// Logged-in players. An identity maps to at most one client.
	identities map[string]*Client

	// The matching room. Only bound identities can be members.
	room map[string]struct{}

	log *zap.Logger
}

// NewHub returns an empty directory.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		identities: make(map[string]*Client),
		room:       make(map[string]struct{}),
		log:        log,
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// remove forgets the client and whatever identity it held.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	if id := c.Identity(); id != "" && h.identities[id] == c {
		delete(h.identities, id)
		delete(h.room, id)
	}
}

// Bind attaches identity to c after a successful login.
func (h *Hub) Bind(identity string, c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if other, ok := h.identities[identity]; ok && other != c {
		return ErrIdentityBound
	}
	if prev := c.Identity(); prev != "" && prev != identity {
		delete(h.identities, prev)
		delete(h.room, prev)
	}
	h.identities[identity] = c
	c.setIdentity(identity)
	return nil
}

// Unbind detaches whatever identity c holds and returns it.
func (h *Hub) Unbind(c *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := c.Identity()
	if id == "" {
		return ""
	}
	if h.identities[id] == c {
		delete(h.identities, id)
		delete(h.room, id)
	}
	c.setIdentity("")
	return id
}

// Lookup returns the client bound to identity.
func (h *Hub) Lookup(identity string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.identities[identity]
	return c, ok
}

// SendTo delivers msg to identity if it is connected. Failures are logged
// and reported, never raised.
func (h *Hub) SendTo(identity string, msg Message) bool {
	c, ok := h.Lookup(identity)
	if !ok {
		h.log.Debug("recipient offline", zap.String("to", identity), zap.String("type", msg.Type))
		return false
	}
	return c.Deliver(msg)
}

// Broadcast sends msg to every listed identity and returns how many
// deliveries were queued.
func (h *Hub) Broadcast(identities []string, msg Message) int {
	n := 0
	for _, id := range identities {
		if h.SendTo(id, msg) {
			n++
		}
	}
	return n
}

// Connections counts open connections, logged in or not.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// EnterRoom adds a bound identity to the matching room.
func (h *Hub) EnterRoom(identity string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.identities[identity]; !ok {
		return false
	}
	h.room[identity] = struct{}{}
	return true
}

// LeaveRoom reports whether identity was in the room.
func (h *Hub) LeaveRoom(identity string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.room[identity]
	delete(h.room, identity)
	return ok
}

func (h *Hub) InRoom(identity string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.room[identity]
	return ok
}

// RoomMembers lists the room in name order.
func (h *Hub) RoomMembers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.room))
	for id := range h.room {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// CloseAll closes every connection; used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.Close()
	}
}
