package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"gomoku/internal/game"
	"gomoku/internal/store"
)

// Ledger settles the credits of a finished game.
type Ledger interface {
	Settle(ctx context.Context, winner, loser string, stones int) (map[string]int, error)
}

// Result is what a transition produced: the state after it and, for the
// transition that ended the game, the outcome and credit deltas.
type Result struct {
	Snapshot game.Snapshot
	Outcome  game.Outcome
	Deltas   map[string]int
	// Forced is the cell chosen for a timed-out player.
	Forced *game.Coord
}

// Players returns black then white.
func (r Result) Players() []string {
	return []string{r.Snapshot.Players[game.Black.String()], r.Snapshot.Players[game.White.String()]}
}

type entry struct {
	mu   sync.Mutex
	game *game.Session
}

// Registry owns every live session. The map is guarded by mu and each
// session by its entry lock; store calls run with neither held.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	players  map[string]string

	cfg   Config
	rngMu sync.Mutex
	rng   *rand.Rand

	ledger  Ledger
	history store.HistoryStore
	live    store.LiveSessionStore
	events  store.EventPublisher
	log     *zap.Logger
}

func NewRegistry(cfg Config, ledger Ledger, history store.HistoryStore, live store.LiveSessionStore, events store.EventPublisher, log *zap.Logger) *Registry {
	cfg = cfg.withDefaults()
	if events == nil {
		events = store.NopPublisher{}
	}
	return &Registry{
		sessions: make(map[string]*entry),
		players:  make(map[string]string),
		cfg:      cfg,
		rng:      cfg.Rand,
		ledger:   ledger,
		history:  history,
		live:     live,
		events:   events,
		log:      log,
	}
}

func (r *Registry) Clock() clockwork.Clock { return r.cfg.Clock }

func (r *Registry) coin() bool {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.rng.IntN(2) == 0
}

// Create starts a session between a and b with randomly assigned colours.
func (r *Registry) Create(ctx context.Context, a, b string) (game.Snapshot, error) {
	if a == "" || b == "" || a == b {
		return game.Snapshot{}, fmt.Errorf("%w: a game needs two distinct players", ErrBadRequest)
	}
	black, white := a, b
	if r.coin() {
		black, white = b, a
	}
	now := r.cfg.Clock.Now()
	s := game.New(uuid.NewString(), black, white, r.cfg.BoardSize, r.cfg.TurnBudget, now)
	snap := s.Snapshot(now)

	r.mu.Lock()
	for _, p := range []string{a, b} {
		if _, busy := r.players[p]; busy {
			r.mu.Unlock()
			return game.Snapshot{}, fmt.Errorf("%w: %s", ErrAlreadyInGame, p)
		}
	}
	r.sessions[s.ID] = &entry{game: s}
	r.players[a] = s.ID
	r.players[b] = s.ID
	r.mu.Unlock()

	r.log.Info("game created", zap.String("game_id", s.ID), zap.String("black", black), zap.String("white", white))
	r.persist(ctx, snap)
	return snap, nil
}

func (r *Registry) get(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	return e, ok
}

// InGame returns the live game of identity.
func (r *Registry) InGame(identity string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.players[identity]
	return id, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// transition is one locked mutation of a session.
type transition func(s *game.Session, now time.Time) (game.Outcome, error)

// apply is the single mutation path: user moves, forfeits and timeouts all
// go through it. The board change and win check happen under the session
// lock; removal, settlement and persistence happen after it is released.
func (r *Registry) apply(ctx context.Context, id string, t transition) (Result, error) {
	e, ok := r.get(id)
	if !ok {
		return Result{}, ErrGameNotFound
	}

	now := r.cfg.Clock.Now()
	e.mu.Lock()
	if e.game.Finished() {
		// Settled by a concurrent transition that has not removed it yet.
		// Moves still fail as invalid; anything else that would succeed
		// reports the game gone so it is never settled twice.
		_, err := t(e.game, now)
		e.mu.Unlock()
		if err == nil {
			err = ErrGameNotFound
		}
		return Result{}, err
	}
	out, err := t(e.game, now)
	snap := e.game.Snapshot(now)
	e.mu.Unlock()
	if err != nil {
		return Result{}, err
	}

	res := Result{Snapshot: snap, Outcome: out}
	if !out.Finished {
		r.persist(ctx, snap)
		return res, nil
	}

	r.remove(id)
	res.Deltas = r.settle(ctx, snap, out, now)
	return res, nil
}

// Move plays identity's stone at c.
func (r *Registry) Move(ctx context.Context, id, identity string, c game.Coord) (Result, error) {
	return r.apply(ctx, id, func(s *game.Session, now time.Time) (game.Outcome, error) {
		return s.Apply(identity, c, now)
	})
}

// Forfeit ends the game in favour of identity's opponent.
func (r *Registry) Forfeit(ctx context.Context, id, identity string) (Result, error) {
	return r.apply(ctx, id, func(s *game.Session, _ time.Time) (game.Outcome, error) {
		return s.Forfeit(identity)
	})
}

// ForfeitPlayer forfeits whatever live game identity is in.
func (r *Registry) ForfeitPlayer(ctx context.Context, identity string) (Result, bool, error) {
	id, ok := r.InGame(identity)
	if !ok {
		return Result{}, false, nil
	}
	res, err := r.Forfeit(ctx, id, identity)
	if errors.Is(err, ErrGameNotFound) {
		return Result{}, false, nil
	}
	return res, err == nil && res.Outcome.Finished, err
}

// Tick plays a random move for the side to move if its deadline passed.
// It returns errNotExpired when a move landed in the meantime.
func (r *Registry) Tick(ctx context.Context, id string) (Result, error) {
	var forced game.Coord
	res, err := r.apply(ctx, id, func(s *game.Session, now time.Time) (game.Outcome, error) {
		if !s.Expired(now) {
			return game.Outcome{}, errNotExpired
		}
		r.rngMu.Lock()
		defer r.rngMu.Unlock()
		c, out, err := s.TimeoutMove(now, r.rng)
		forced = c
		return out, err
	})
	if err != nil {
		return res, err
	}
	res.Forced = &forced
	r.log.Info("turn timed out, random move played",
		zap.String("game_id", id), zap.Int("row", forced.Row), zap.Int("col", forced.Col))
	return res, nil
}

// Expired lists games whose side to move is out of time.
func (r *Registry) Expired(now time.Time) []string {
	r.mu.RLock()
	entries := make(map[string]*entry, len(r.sessions))
	for id, e := range r.sessions {
		entries[id] = e
	}
	r.mu.RUnlock()

	var out []string
	for id, e := range entries {
		e.mu.Lock()
		if e.game.Expired(now) {
			out = append(out, id)
		}
		e.mu.Unlock()
	}
	return out
}

// State returns the live state of a game, from memory or the live store.
func (r *Registry) State(ctx context.Context, id string) (game.Snapshot, error) {
	now := r.cfg.Clock.Now()
	if e, ok := r.get(id); ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.game.Snapshot(now), nil
	}
	snap, err := r.live.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return game.Snapshot{}, ErrGameNotFound
	}
	if err != nil {
		return game.Snapshot{}, err
	}
	snap.TimeRemaining = remaining(snap.Deadline, now)
	return snap, nil
}

// LiveGames lists the snapshots in the live store.
func (r *Registry) LiveGames(ctx context.Context) ([]game.Snapshot, error) {
	return r.live.List(ctx)
}

// Restore re-registers games left in the live store by a previous run.
// Each one resumes with a fresh turn budget.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	snaps, err := r.live.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list live games: %w", err)
	}
	now := r.cfg.Clock.Now()
	restored := 0
	for _, snap := range snaps {
		s, err := game.Restore(snap, r.cfg.TurnBudget, now)
		if err != nil {
			r.log.Warn("dropping unrestorable game", zap.String("game_id", snap.GameID), zap.Error(err))
			if err := r.live.Delete(ctx, snap.GameID); err != nil {
				r.log.Error("delete live game", zap.String("game_id", snap.GameID), zap.Error(err))
			}
			continue
		}

		r.mu.Lock()
		_, busyB := r.players[s.Black]
		_, busyW := r.players[s.White]
		_, exists := r.sessions[s.ID]
		ok := !exists && !busyB && !busyW
		if ok {
			r.sessions[s.ID] = &entry{game: s}
			r.players[s.Black] = s.ID
			r.players[s.White] = s.ID
			restored++
		}
		r.mu.Unlock()

		switch {
		case ok:
			r.persist(ctx, s.Snapshot(now))
		case !exists:
			r.log.Warn("dropping live game of busy players", zap.String("game_id", snap.GameID))
			if err := r.live.Delete(ctx, snap.GameID); err != nil {
				r.log.Error("delete live game", zap.String("game_id", snap.GameID), zap.Error(err))
			}
		}
	}
	if restored > 0 {
		r.log.Info("restored live games", zap.Int("count", restored))
	}
	return restored, nil
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	for _, p := range []string{e.game.Black, e.game.White} {
		if r.players[p] == id {
			delete(r.players, p)
		}
	}
}

func (r *Registry) persist(ctx context.Context, snap game.Snapshot) {
	if err := r.live.Put(ctx, snap); err != nil {
		r.log.Error("live snapshot write failed", zap.String("game_id", snap.GameID), zap.Error(err))
	}
}

// settle runs once per game, from the transition that finished it.
func (r *Registry) settle(ctx context.Context, snap game.Snapshot, out game.Outcome, now time.Time) map[string]int {
	log := r.log.With(zap.String("game_id", snap.GameID))

	stones := snap.Stones(game.Black) + snap.Stones(game.White)
	deltas, err := r.ledger.Settle(ctx, out.Winner, out.Loser, stones)
	if err != nil {
		log.Error("settlement failed", zap.Error(err))
	}
	if deltas == nil {
		deltas = map[string]int{out.Winner: 0, out.Loser: 0}
	}

	rec := store.HistoryRecord{
		GameID:        snap.GameID,
		Player1:       snap.Players[game.Black.String()],
		Player2:       snap.Players[game.White.String()],
		Winner:        out.Winner,
		Reason:        out.Reason,
		EndTime:       now,
		Moves:         snap.Moves,
		CreditsChange: deltas,
	}
	if err := r.history.Append(ctx, rec); err != nil {
		log.Error("history write failed", zap.Error(err))
	}
	if err := r.live.Delete(ctx, snap.GameID); err != nil {
		log.Error("live snapshot delete failed", zap.Error(err))
	}
	if err := r.events.GameFinished(ctx, rec); err != nil {
		log.Warn("finished-game event not published", zap.Error(err))
	}

	log.Info("game finished",
		zap.String("winner", out.Winner), zap.String("reason", string(out.Reason)), zap.Any("credits", deltas))
	return deltas
}

func remaining(deadline, now time.Time) int {
	left := deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}
