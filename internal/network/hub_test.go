package network

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// pipeTransport is an in-memory Transport for tests.
type pipeTransport struct {
	in     chan Message
	mu     sync.Mutex
	out    []Message
	closed chan struct{}
	once   sync.Once
}

func newPipe() *pipeTransport {
	return &pipeTransport{in: make(chan Message, 16), closed: make(chan struct{})}
}

func (p *pipeTransport) ReadMessage() (Message, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.closed:
		return Message{}, errors.New("closed")
	}
}

func (p *pipeTransport) WriteMessage(msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = append(p.out, msg)
	return nil
}

func (p *pipeTransport) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeTransport) RemoteAddr() string { return "pipe" }

func (p *pipeTransport) written() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.out...)
}

func newTestClient(h *Hub) *Client {
	c := NewClient(newPipe(), h, zap.NewNop())
	h.add(c)
	return c
}

func TestBindIsExclusive(t *testing.T) {
	h := NewHub(zap.NewNop())
	a, b := newTestClient(h), newTestClient(h)

	require.NoError(t, h.Bind("alice", a))
	assert.Equal(t, "alice", a.Identity())
	assert.ErrorIs(t, h.Bind("alice", b), ErrIdentityBound)
	assert.NoError(t, h.Bind("alice", a))

	got, ok := h.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, a, got)

	assert.Equal(t, "alice", h.Unbind(a))
	assert.Equal(t, "", a.Identity())
	_, ok = h.Lookup("alice")
	assert.False(t, ok)
	assert.NoError(t, h.Bind("alice", b))
}

func TestSendToIsBestEffort(t *testing.T) {
	h := NewHub(zap.NewNop())
	a := newTestClient(h)
	require.NoError(t, h.Bind("alice", a))

	assert.True(t, h.SendTo("alice", Message{Type: "ping"}))
	assert.False(t, h.SendTo("bob", Message{Type: "ping"}))

	for i := 0; i < sendBuffer; i++ {
		a.Deliver(Message{Type: "fill"})
	}
	assert.False(t, h.SendTo("alice", Message{Type: "overflow"}), "full buffer drops")

	a.Close()
	assert.False(t, a.Deliver(Message{Type: "late"}), "closed client drops")
	assert.Equal(t, 0, h.Broadcast([]string{"alice", "bob"}, Message{Type: "x"}))
}

func TestRoomPresence(t *testing.T) {
	h := NewHub(zap.NewNop())
	a, b := newTestClient(h), newTestClient(h)
	require.NoError(t, h.Bind("bob", b))

	assert.False(t, h.EnterRoom("alice"), "unbound identities cannot enter")
	require.NoError(t, h.Bind("alice", a))
	assert.True(t, h.EnterRoom("alice"))
	assert.True(t, h.EnterRoom("bob"))
	assert.Equal(t, []string{"alice", "bob"}, h.RoomMembers())

	assert.True(t, h.LeaveRoom("bob"))
	assert.False(t, h.LeaveRoom("bob"))
	assert.False(t, h.InRoom("bob"))

	h.remove(a)
	assert.False(t, h.InRoom("alice"))
	assert.Empty(t, h.RoomMembers())
	assert.Equal(t, 1, h.Connections())
}
