package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"gomoku/internal/game"
)

// RetryPolicy bounds how often a failing store call is repeated.
type RetryPolicy struct {
	Attempts int
	Min      time.Duration
	Max      time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Min: 50 * time.Millisecond, Max: time.Second}

func (p RetryPolicy) do(ctx context.Context, log *zap.Logger, op string, fn func() error) error {
	b := &backoff.Backoff{Min: p.Min, Max: p.Max, Factor: 2, Jitter: true}
	attempts := max(p.Attempts, 1)
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || errors.Is(err, ErrNotFound) || attempt >= attempts {
			return err
		}
		wait := b.Duration()
		log.Warn("store call failed, retrying",
			zap.String("op", op), zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// lastGood remembers the latest successful read per key.
type lastGood[V any] struct {
	mu sync.Mutex
	m  map[string]V
}

func (c *lastGood[V]) set(k string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[string]V)
	}
	c.m[k] = v
}

func (c *lastGood[V]) get(k string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[k]
	return v, ok
}

func (c *lastGood[V]) drop(k string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, k)
}

// readThrough retries a keyed read and falls back to the last good value
// when every attempt failed.
func readThrough[V any](ctx context.Context, p RetryPolicy, log *zap.Logger, cache *lastGood[V], op, key string, fn func() (V, error)) (V, error) {
	var v V
	err := p.do(ctx, log, op, func() error {
		var err error
		v, err = fn()
		return err
	})
	switch {
	case err == nil:
		cache.set(key, v)
		return v, nil
	case errors.Is(err, ErrNotFound):
		cache.drop(key)
		return v, err
	}
	if old, ok := cache.get(key); ok {
		log.Error("store read exhausted retries, serving last good value",
			zap.String("op", op), zap.String("key", key), zap.Error(err))
		return old, nil
	}
	return v, err
}

// RetryingAccounts wraps an AccountStore with retries.
type RetryingAccounts struct {
	inner  AccountStore
	policy RetryPolicy
	log    *zap.Logger
	cache  lastGood[Account]
}

func NewRetryingAccounts(inner AccountStore, p RetryPolicy, log *zap.Logger) *RetryingAccounts {
	return &RetryingAccounts{inner: inner, policy: p, log: log}
}

func (r *RetryingAccounts) Get(ctx context.Context, username string) (Account, error) {
	return readThrough(ctx, r.policy, r.log, &r.cache, "account.get", username, func() (Account, error) {
		return r.inner.Get(ctx, username)
	})
}

func (r *RetryingAccounts) Put(ctx context.Context, a Account) error {
	err := r.policy.do(ctx, r.log, "account.put", func() error { return r.inner.Put(ctx, a) })
	if err == nil {
		r.cache.set(a.Username, a)
	}
	return err
}

func (r *RetryingAccounts) Delete(ctx context.Context, username string) error {
	r.cache.drop(username)
	return r.policy.do(ctx, r.log, "account.delete", func() error { return r.inner.Delete(ctx, username) })
}

func (r *RetryingAccounts) List(ctx context.Context) ([]Account, error) {
	var out []Account
	err := r.policy.do(ctx, r.log, "account.list", func() error {
		var err error
		out, err = r.inner.List(ctx)
		return err
	})
	return out, err
}

// RetryingHistory wraps a HistoryStore with retries.
type RetryingHistory struct {
	inner  HistoryStore
	policy RetryPolicy
	log    *zap.Logger
}

func NewRetryingHistory(inner HistoryStore, p RetryPolicy, log *zap.Logger) *RetryingHistory {
	return &RetryingHistory{inner: inner, policy: p, log: log}
}

func (r *RetryingHistory) Append(ctx context.Context, rec HistoryRecord) error {
	return r.policy.do(ctx, r.log, "history.append", func() error { return r.inner.Append(ctx, rec) })
}

func (r *RetryingHistory) ForPlayer(ctx context.Context, username string) ([]HistoryRecord, error) {
	var out []HistoryRecord
	err := r.policy.do(ctx, r.log, "history.for_player", func() error {
		var err error
		out, err = r.inner.ForPlayer(ctx, username)
		return err
	})
	return out, err
}

func (r *RetryingHistory) RenamePlayer(ctx context.Context, from, to string) error {
	return r.policy.do(ctx, r.log, "history.rename", func() error { return r.inner.RenamePlayer(ctx, from, to) })
}

// RetryingLive wraps a LiveSessionStore with retries.
type RetryingLive struct {
	inner  LiveSessionStore
	policy RetryPolicy
	log    *zap.Logger
	cache  lastGood[game.Snapshot]
}

func NewRetryingLive(inner LiveSessionStore, p RetryPolicy, log *zap.Logger) *RetryingLive {
	return &RetryingLive{inner: inner, policy: p, log: log}
}

func (r *RetryingLive) Put(ctx context.Context, snap game.Snapshot) error {
	err := r.policy.do(ctx, r.log, "live.put", func() error { return r.inner.Put(ctx, snap) })
	if err == nil {
		r.cache.set(snap.GameID, snap)
	}
	return err
}

func (r *RetryingLive) Get(ctx context.Context, gameID string) (game.Snapshot, error) {
	return readThrough(ctx, r.policy, r.log, &r.cache, "live.get", gameID, func() (game.Snapshot, error) {
		return r.inner.Get(ctx, gameID)
	})
}

func (r *RetryingLive) Delete(ctx context.Context, gameID string) error {
	r.cache.drop(gameID)
	return r.policy.do(ctx, r.log, "live.delete", func() error { return r.inner.Delete(ctx, gameID) })
}

func (r *RetryingLive) List(ctx context.Context) ([]game.Snapshot, error) {
	var out []game.Snapshot
	err := r.policy.do(ctx, r.log, "live.list", func() error {
		var err error
		out, err = r.inner.List(ctx)
		return err
	})
	return out, err
}
