package session

import (
	"context"
	"io"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"gomoku/internal/account"
	"gomoku/internal/game"
	"gomoku/internal/network"
	"gomoku/internal/store"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const testPassword = "secret"

// engine wires the whole session layer over in-memory stores and a fake
// clock.
type engine struct {
	clock       *clockwork.FakeClock
	mem         *store.Memory
	live        store.LiveSessionStore
	accounts    *account.Gateway
	registry    *Registry
	matchmaker  *Matchmaker
	invitations *Invitations
	hub         *network.Hub
	handler     *Handler
	sweeper     *Sweeper
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	log := zap.NewNop()
	e := &engine{clock: clockwork.NewFakeClockAt(epoch), mem: store.NewMemory()}
	e.live = e.mem.Live()
	cfg := Config{
		TurnBudget: 30 * time.Second,
		Clock:      e.clock,
		Rand:       rand.New(rand.NewPCG(1, 2)),
	}
	e.accounts = account.NewGateway(e.mem, e.mem, 0, log)
	e.registry = NewRegistry(cfg, e.accounts, e.mem, e.live, nil, log)
	e.matchmaker = NewMatchmaker(e.registry, log)
	e.hub = network.NewHub(log)
	e.invitations = NewInvitations(cfg, e.hub, e.registry, log)
	e.handler = NewHandler(cfg, e.accounts, e.registry, e.matchmaker, e.invitations, e.hub, log)
	e.sweeper = NewSweeper(cfg, e.registry, e.invitations, e.hub, log)
	return e
}

var (
	hashOnce sync.Once
	hash     []byte
)

// addAccount stores an account directly, hashed at the minimum cost.
func (e *engine) addAccount(t *testing.T, name string, credits int) {
	t.Helper()
	hashOnce.Do(func() {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
		require.NoError(t, err)
	})
	require.NoError(t, e.mem.Put(context.Background(), store.Account{
		Username: name, PasswordHash: string(hash), Credits: credits,
	}))
}

func (e *engine) credits(t *testing.T, name string) int {
	t.Helper()
	a, err := e.mem.Get(context.Background(), name)
	require.NoError(t, err)
	return a.Credits
}

// blackWhite orders two players by the colours of snap.
func blackWhite(snap game.Snapshot) (string, string) {
	return snap.Players[game.Black.String()], snap.Players[game.White.String()]
}

// nullTransport never delivers anything; clients built on it are only
// used through Dispatch.
type nullTransport struct {
	closed chan struct{}
	once   sync.Once
}

func newNullTransport() *nullTransport { return &nullTransport{closed: make(chan struct{})} }

func (n *nullTransport) ReadMessage() (network.Message, error) {
	<-n.closed
	return network.Message{}, io.EOF
}

func (n *nullTransport) WriteMessage(network.Message) error { return nil }

func (n *nullTransport) Close() error {
	n.once.Do(func() { close(n.closed) })
	return nil
}

func (n *nullTransport) RemoteAddr() string { return "test" }

func (e *engine) newClient() *network.Client {
	return network.NewClient(newNullTransport(), e.hub, zap.NewNop())
}

// recorder captures broadcasts made by the sweeper.
type recorder struct {
	mu   sync.Mutex
	sent []recorded
}

type recorded struct {
	to  []string
	msg network.Message
}

func (r *recorder) Broadcast(identities []string, msg network.Message) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, recorded{to: append([]string(nil), identities...), msg: msg})
	return len(identities)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, s := range r.sent {
		out = append(out, s.msg.Type)
	}
	return out
}
