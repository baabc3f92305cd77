package session

import (
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"

	"gomoku/internal/game"
)

const (
	DefaultTurnBudget   = 30 * time.Second
	DefaultInviteTTL    = 15 * time.Second
	DefaultMaxInviteTTL = 60 * time.Second
	DefaultSweepPeriod  = time.Second
	DefaultRequestWait  = 10 * time.Second
)

// Config tunes the engine. Zero fields take the defaults above.
type Config struct {
	BoardSize    int
	TurnBudget   time.Duration
	InviteTTL    time.Duration
	MaxInviteTTL time.Duration
	SweepPeriod  time.Duration
	// RequestTimeout bounds the store work done for one inbound message.
	RequestTimeout time.Duration

	Clock clockwork.Clock
	Rand  *rand.Rand
}

func (c Config) withDefaults() Config {
	if c.BoardSize <= 0 {
		c.BoardSize = game.BoardSize
	}
	if c.TurnBudget <= 0 {
		c.TurnBudget = DefaultTurnBudget
	}
	if c.InviteTTL <= 0 {
		c.InviteTTL = DefaultInviteTTL
	}
	if c.MaxInviteTTL <= 0 {
		c.MaxInviteTTL = DefaultMaxInviteTTL
	}
	if c.InviteTTL > c.MaxInviteTTL {
		c.InviteTTL = c.MaxInviteTTL
	}
	if c.SweepPeriod <= 0 {
		c.SweepPeriod = DefaultSweepPeriod
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestWait
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return c
}
