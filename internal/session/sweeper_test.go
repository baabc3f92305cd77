package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gomoku/internal/game"
	"gomoku/internal/session/message"
)

func (e *engine) recordingSweeper() (*Sweeper, *recorder) {
	rec := &recorder{}
	cfg := Config{Clock: e.clock, TurnBudget: 30 * time.Second}
	return NewSweeper(cfg, e.registry, e.invitations, rec, zap.NewNop()), rec
}

func TestSweepForcesExpiredTurnsAndFansOut(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	sw, rec := e.recordingSweeper()
	id := restoreChecker(t, e)

	assert.Equal(t, 0, sw.Sweep(ctx))
	assert.Empty(t, rec.types())

	e.clock.Advance(30 * time.Second)
	assert.Equal(t, 1, sw.Sweep(ctx))
	assert.Equal(t, []string{message.GameState, message.GameOver}, rec.types())

	for _, s := range rec.sent {
		assert.Equal(t, []string{"alice", "bob"}, s.to)
	}
	var over message.Result
	require.NoError(t, json.Unmarshal(rec.sent[1].msg.Payload, &over))
	assert.Equal(t, id, over.GameID)
	assert.Equal(t, "bob", over.Winner)
	assert.Empty(t, over.Disconnected)

	assert.Equal(t, 0, sw.Sweep(ctx), "a finished game is never forced again")
}

func TestSweepOnlyMovesTheExpiredSide(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	sw, rec := e.recordingSweeper()
	snap, err := e.registry.Create(ctx, "alice", "bob")
	require.NoError(t, err)

	e.clock.Advance(29 * time.Second)
	assert.Equal(t, 0, sw.Sweep(ctx))

	e.clock.Advance(time.Second)
	assert.Equal(t, 1, sw.Sweep(ctx))
	assert.Equal(t, []string{message.GameState}, rec.types())

	state, err := e.registry.State(ctx, snap.GameID)
	require.NoError(t, err)
	assert.Equal(t, "white", state.CurrentPlayer)
	assert.Equal(t, 1, state.Stones(game.Black))
	assert.Equal(t, 30, state.TimeRemaining)
}

func TestSweepDropsExpiredInvitations(t *testing.T) {
	e := newEngine(t)
	sw, _ := e.recordingSweeper()
	e.enterRoom(t, "alice", "bob")
	_, err := e.invitations.Send("alice", "bob", 2*time.Second)
	require.NoError(t, err)

	sw.Sweep(context.Background())
	assert.Equal(t, 1, e.invitations.Len())

	e.clock.Advance(2 * time.Second)
	sw.Sweep(context.Background())
	assert.Equal(t, 0, e.invitations.Len())
}

func TestScheduledSweeper(t *testing.T) {
	e := newEngine(t)
	sw, rec := e.recordingSweeper()
	restoreChecker(t, e)

	require.NoError(t, sw.Start(context.Background()))
	t.Cleanup(func() { assert.NoError(t, sw.Stop()) })

	assert.Eventually(t, func() bool {
		e.clock.Advance(time.Second)
		return e.registry.Len() == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, rec.types(), message.GameOver)
}
