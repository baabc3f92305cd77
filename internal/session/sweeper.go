package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"gomoku/internal/game"
	"gomoku/internal/network"
	"gomoku/internal/session/message"
)

// Deliverer fans an envelope out to connected identities.
type Deliverer interface {
	Broadcast(identities []string, msg network.Message) int
}

// Sweeper forces moves for players who ran out of time and drops expired
// invitations.
type Sweeper struct {
	registry    *Registry
	invitations *Invitations
	out         Deliverer
	cfg         Config
	log         *zap.Logger

	sched gocron.Scheduler
}

func NewSweeper(cfg Config, registry *Registry, invitations *Invitations, out Deliverer, log *zap.Logger) *Sweeper {
	return &Sweeper{
		registry:    registry,
		invitations: invitations,
		out:         out,
		cfg:         cfg.withDefaults(),
		log:         log,
	}
}

// Start schedules Sweep every sweep period until ctx is done or Stop.
func (s *Sweeper) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler(gocron.WithClock(s.cfg.Clock))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.cfg.SweepPeriod),
		gocron.NewTask(func() { s.Sweep(ctx) }),
		gocron.WithName("deadline-sweeper"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule sweeper: %w", err)
	}
	s.sched = sched
	sched.Start()
	s.log.Info("deadline sweeper started", zap.Duration("period", s.cfg.SweepPeriod))
	return nil
}

func (s *Sweeper) Stop() error {
	if s.sched == nil {
		return nil
	}
	return s.sched.Shutdown()
}

// Sweep runs one pass and returns how many games it forced a move in.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := s.cfg.Clock.Now()
	forced := 0
	for _, id := range s.registry.Expired(now) {
		res, err := s.registry.Tick(ctx, id)
		switch {
		case errors.Is(err, errNotExpired), errors.Is(err, ErrGameNotFound):
			continue
		case err != nil:
			s.log.Error("forced move failed", zap.String("game_id", id), zap.Error(err))
			continue
		}
		forced++
		for _, msg := range resultMessages(res) {
			s.out.Broadcast(res.Players(), msg)
		}
	}
	if dropped := s.invitations.Sweep(now); len(dropped) > 0 {
		s.log.Debug("expired match requests dropped", zap.Int("count", len(dropped)))
	}
	return forced
}

// resultMessages is game_state, plus game_over when the game ended.
func resultMessages(res Result) []network.Message {
	msgs := []network.Message{
		message.New(message.GameState, message.State{GameID: res.Snapshot.GameID, State: res.Snapshot}),
	}
	if res.Outcome.Finished {
		msgs = append(msgs, gameOver(res))
	}
	return msgs
}

func gameOver(res Result) network.Message {
	p := message.Result{
		GameID:        res.Snapshot.GameID,
		Winner:        res.Outcome.Winner,
		Reason:        res.Outcome.Reason,
		CreditsChange: res.Deltas,
	}
	if res.Outcome.Reason == game.ReasonDisconnect {
		p.Disconnected = res.Outcome.Loser
	}
	return message.New(message.GameOver, p)
}
