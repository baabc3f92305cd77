package main

import (
	"encoding/json"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gomoku/internal/game"
	"gomoku/internal/session/message"
)

func TestPickEmpty(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	board := [][]string{{"black", "white"}, {"", "black"}}
	r, c, ok := pickEmpty(board, rng)
	require.True(t, ok)
	assert.Equal(t, 1, r)
	assert.Equal(t, 0, c)

	_, _, ok = pickEmpty([][]string{{"black"}}, rng)
	assert.False(t, ok)
}

func TestBotPlaysOnlyOnItsTurn(t *testing.T) {
	b := newBot("alice", rand.New(rand.NewPCG(1, 2)), zap.NewNop())

	out, done := b.handle(message.New(message.MatchFound, message.Match{GameID: "g", Black: "bob", White: "alice"}))
	assert.Empty(t, out)
	assert.False(t, done)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := game.New("g", "bob", "alice", game.BoardSize, 30*time.Second, now)
	_, err := s.Apply("bob", game.Coord{Row: 9, Col: 9}, now)
	require.NoError(t, err)
	out, _ = b.handle(message.New(message.GameState, message.State{GameID: "g", State: s.Snapshot(now)}))
	require.Len(t, out, 1)
	assert.Equal(t, message.MakeMove, out[0].Type)
	var mv message.Move
	require.NoError(t, json.Unmarshal(out[0].Payload, &mv))
	require.NotNil(t, mv.Row)
	assert.NotEqual(t, [2]int{9, 9}, [2]int{*mv.Row, *mv.Col})

	out, done = b.handle(message.New(message.GameOver, message.Result{GameID: "g", Winner: "alice"}))
	assert.Empty(t, out)
	assert.True(t, done)
	assert.Equal(t, 1, b.played)
	assert.Equal(t, 1, b.won)
}

func TestBotResyncsAfterInvalidMove(t *testing.T) {
	b := newBot("alice", rand.New(rand.NewPCG(1, 2)), zap.NewNop())
	out, _ := b.handle(message.New(message.MatchFound, message.Match{GameID: "g", Black: "alice", White: "bob"}))
	require.Len(t, out, 1, "black opens immediately")

	out, _ = b.handle(message.NewError(message.CodeInvalidMove, "occupied"))
	require.Len(t, out, 1)
	assert.Equal(t, message.GetGameState, out[0].Type)
}
