package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"gomoku/internal/game"
)

const redisPrefix = "gomoku:live"

// RedisLive keeps live snapshots as JSON strings plus an index set of ids.
type RedisLive struct {
	rdb *redis.Client
}

func NewRedisLive(rdb *redis.Client) *RedisLive {
	return &RedisLive{rdb: rdb}
}

// OpenRedisLive parses a redis:// URL and checks the connection.
func OpenRedisLive(ctx context.Context, url string) (*RedisLive, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedisLive(rdb), nil
}

func redisKey(gameID string) string { return redisPrefix + ":" + gameID }

func (r *RedisLive) Put(ctx context.Context, snap game.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, redisKey(snap.GameID), data, 0)
		p.SAdd(ctx, redisPrefix, snap.GameID)
		return nil
	})
	return err
}

func (r *RedisLive) Get(ctx context.Context, gameID string) (game.Snapshot, error) {
	data, err := r.rdb.Get(ctx, redisKey(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return game.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return game.Snapshot{}, err
	}
	var snap game.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return game.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", gameID, err)
	}
	return snap, nil
}

func (r *RedisLive) Delete(ctx context.Context, gameID string) error {
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, redisKey(gameID))
		p.SRem(ctx, redisPrefix, gameID)
		return nil
	})
	return err
}

func (r *RedisLive) List(ctx context.Context) ([]game.Snapshot, error) {
	ids, err := r.rdb.SMembers(ctx, redisPrefix).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisKey(id)
	}
	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]game.Snapshot, 0, len(values))
	var stale []any
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var snap game.Snapshot
		if err := json.Unmarshal([]byte(s), &snap); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", ids[i], err)
		}
		out = append(out, snap)
	}
	if len(stale) > 0 {
		r.rdb.SRem(ctx, redisPrefix, stale...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *RedisLive) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

func (r *RedisLive) Close() error { return r.rdb.Close() }
