package session

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"gomoku/internal/game"
)

// JoinResult is either a pairing or the queue size after joining.
type JoinResult struct {
	Paired    bool
	Game      game.Snapshot
	QueueSize int
}

// Matchmaker pairs players first come, first served.
type Matchmaker struct {
	mu       sync.Mutex
	queue    []string
	registry *Registry
	log      *zap.Logger
}

func NewMatchmaker(registry *Registry, log *zap.Logger) *Matchmaker {
	return &Matchmaker{registry: registry, log: log}
}

// Join queues identity and creates a game as soon as two players wait.
func (m *Matchmaker) Join(ctx context.Context, identity string) (JoinResult, error) {
	if _, busy := m.registry.InGame(identity); busy {
		return JoinResult{}, ErrAlreadyInGame
	}

	m.mu.Lock()
	if slices.Contains(m.queue, identity) {
		m.mu.Unlock()
		return JoinResult{}, ErrAlreadyQueued
	}
	m.queue = append(m.queue, identity)
	m.dropBusy()
	if len(m.queue) < 2 {
		size := len(m.queue)
		m.mu.Unlock()
		m.log.Debug("player queued", zap.String("player", identity), zap.Int("queue_size", size))
		return JoinResult{QueueSize: size}, nil
	}
	a, b := m.queue[0], m.queue[1]
	m.queue = m.queue[2:]
	m.mu.Unlock()

	snap, err := m.registry.Create(ctx, a, b)
	if err != nil {
		m.requeue(a, b)
		if size, waiting := m.position(identity); waiting {
			m.log.Warn("pairing failed, player waits again", zap.String("player", identity), zap.Error(err))
			return JoinResult{QueueSize: size}, nil
		}
		return JoinResult{}, err
	}
	m.log.Info("players paired", zap.String("game_id", snap.GameID), zap.String("first", a), zap.String("second", b))
	return JoinResult{Paired: true, Game: snap}, nil
}

// dropBusy removes queued players that started a game some other way.
// Callers hold m.mu.
func (m *Matchmaker) dropBusy() {
	m.queue = slices.DeleteFunc(m.queue, func(p string) bool {
		_, busy := m.registry.InGame(p)
		return busy
	})
}

// position reports the queue size if identity is queued.
func (m *Matchmaker) position(identity string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue), slices.Contains(m.queue, identity)
}

// requeue puts back at the front whoever of a and b is still free.
func (m *Matchmaker) requeue(a, b string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var back []string
	for _, p := range []string{a, b} {
		if _, busy := m.registry.InGame(p); !busy && !slices.Contains(m.queue, p) {
			back = append(back, p)
		}
	}
	m.queue = slices.Insert(m.queue, 0, back...)
}

// Leave removes identity from the queue. It reports whether it was queued.
func (m *Matchmaker) Leave(identity string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.Index(m.queue, identity)
	if i < 0 {
		return false
	}
	m.queue = slices.Delete(m.queue, i, i+1)
	return true
}

func (m *Matchmaker) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Matchmaker) Contains(identity string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.queue, identity)
}
