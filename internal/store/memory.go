package store

import (
	"context"
	"sort"
	"sync"

	"gomoku/internal/game"
)

// Memory implements every store in process memory.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]Account
	history  []HistoryRecord
	live     map[string]game.Snapshot
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]Account),
		live:     make(map[string]game.Snapshot),
	}
}

func (m *Memory) Get(_ context.Context, username string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[username]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) Put(_ context.Context, a Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.Username] = a
	return nil
}

func (m *Memory) Delete(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[username]; !ok {
		return ErrNotFound
	}
	delete(m.accounts, username)
	return nil
}

func (m *Memory) List(_ context.Context) ([]Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *Memory) Append(_ context.Context, rec HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, rec)
	return nil
}

func (m *Memory) ForPlayer(_ context.Context, username string) ([]HistoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []HistoryRecord
	for _, rec := range m.history {
		if involves(rec, username) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *Memory) RenamePlayer(_ context.Context, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.history {
		renameIn(&m.history[i], from, to)
	}
	return nil
}

// Live returns a view of m that satisfies LiveSessionStore. The account
// and live stores share method names, so they cannot both hang off *Memory.
func (m *Memory) Live() LiveSessionStore { return memoryLive{m} }

type memoryLive struct{ m *Memory }

func (l memoryLive) Put(_ context.Context, snap game.Snapshot) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	l.m.live[snap.GameID] = snap
	return nil
}

func (l memoryLive) Get(_ context.Context, gameID string) (game.Snapshot, error) {
	l.m.mu.RLock()
	defer l.m.mu.RUnlock()
	snap, ok := l.m.live[gameID]
	if !ok {
		return game.Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (l memoryLive) Delete(_ context.Context, gameID string) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	delete(l.m.live, gameID)
	return nil
}

func (l memoryLive) List(_ context.Context) ([]game.Snapshot, error) {
	l.m.mu.RLock()
	defer l.m.mu.RUnlock()
	out := make([]game.Snapshot, 0, len(l.m.live))
	for _, snap := range l.m.live {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
