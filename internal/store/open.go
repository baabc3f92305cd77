package store

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Store modes for accounts and history.
const (
	ModeMemory   = "memory"
	ModeFile     = "file"
	ModePostgres = "postgres"
)

// Options selects the backends of a Set.
type Options struct {
	Mode        string
	DataDir     string
	PostgresDSN string
	// RedisURL moves live snapshots to Redis when set.
	RedisURL string
	// NATSURL enables finished-game events when set.
	NATSURL     string
	NATSSubject string
	Retry       RetryPolicy
}

// Set bundles the stores the server runs against.
type Set struct {
	Accounts AccountStore
	History  HistoryStore
	Live     LiveSessionStore
	Events   EventPublisher

	checks  map[string]func(context.Context) error
	closers []io.Closer
}

// Open builds a Set from opts. Every backend is wrapped with retries.
func Open(ctx context.Context, opts Options, log *zap.Logger) (*Set, error) {
	s := &Set{Events: NopPublisher{}, checks: map[string]func(context.Context) error{}}

	var (
		accounts AccountStore
		history  HistoryStore
		live     LiveSessionStore
	)
	switch opts.Mode {
	case ModeMemory, "":
		m := NewMemory()
		accounts, history, live = m, m, m.Live()
	case ModeFile:
		fs, err := NewFileStore(opts.DataDir)
		if err != nil {
			return nil, err
		}
		accounts, history, live = fs, fs, fs.Live()
	case ModePostgres:
		pg, err := OpenPostgres(opts.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pg)
		s.checks["postgres"] = pg.Ping
		accounts, history, live = pg, pg, NewMemory().Live()
	default:
		return nil, fmt.Errorf("unknown store mode %q", opts.Mode)
	}

	if opts.RedisURL != "" {
		rl, err := OpenRedisLive(ctx, opts.RedisURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, rl)
		s.checks["redis"] = rl.Ping
		live = rl
	}
	if opts.NATSURL != "" {
		np, err := NewNATSPublisher(opts.NATSURL, opts.NATSSubject)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, np)
		s.checks["nats"] = np.Ping
		s.Events = np
	}

	s.Accounts = NewRetryingAccounts(accounts, opts.Retry, log.Named("accounts"))
	s.History = NewRetryingHistory(history, opts.Retry, log.Named("history"))
	s.Live = NewRetryingLive(live, opts.Retry, log.Named("live"))
	log.Info("stores ready",
		zap.String("mode", opts.Mode),
		zap.Bool("redis", opts.RedisURL != ""),
		zap.Bool("nats", opts.NATSURL != ""))
	return s, nil
}

// Checks returns a health probe per external backend.
func (s *Set) Checks() map[string]func(context.Context) error { return s.checks }

// Close releases every backend and reports all failures.
func (s *Set) Close() error {
	var result *multierror.Error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
