package main

import (
	"encoding/json"
	"math/rand/v2"

	"go.uber.org/zap"

	"gomoku/internal/network"
	"gomoku/internal/session/message"
)

// bot is the decision side of a random-move player. It turns each server
// envelope into the envelopes to send back.
type bot struct {
	name   string
	rng    *rand.Rand
	log    *zap.Logger
	gameID string
	side   string

	played int
	won    int
}

func newBot(name string, rng *rand.Rand, log *zap.Logger) *bot {
	return &bot{name: name, rng: rng, log: log}
}

func (b *bot) join() network.Message {
	return message.New(message.QueueRequest, message.QueueCommand{Action: message.ActionJoin})
}

// handle reacts to one envelope. done is set once a game has ended.
func (b *bot) handle(msg network.Message) (out []network.Message, done bool) {
	switch msg.Type {
	case message.MatchFound:
		var m message.Match
		if json.Unmarshal(msg.Payload, &m) != nil {
			return nil, false
		}
		b.gameID = m.GameID
		b.side = "white"
		if m.Black == b.name {
			b.side = "black"
			return []network.Message{b.move(nil)}, false
		}

	case message.GameState:
		var s message.State
		if json.Unmarshal(msg.Payload, &s) != nil || s.GameID != b.gameID {
			return nil, false
		}
		if !s.State.GameOver && s.State.CurrentPlayer == b.side {
			return []network.Message{b.move(s.State.Board)}, false
		}

	case message.GameOver:
		var r message.Result
		if json.Unmarshal(msg.Payload, &r) != nil || r.GameID != b.gameID {
			return nil, false
		}
		b.played++
		if r.Winner == b.name {
			b.won++
		}
		b.log.Info("game over", zap.String("winner", r.Winner), zap.String("reason", string(r.Reason)),
			zap.Int("played", b.played), zap.Int("won", b.won))
		b.gameID, b.side = "", ""
		return nil, true

	case message.Error:
		var e message.ErrorPayload
		_ = json.Unmarshal(msg.Payload, &e)
		if e.Code == message.CodeInvalidMove && b.gameID != "" {
			return []network.Message{message.New(message.GetGameState, message.GameRef{GameID: b.gameID})}, false
		}
		b.log.Debug("server error", zap.String("code", e.Code), zap.String("message", e.Message))
	}
	return nil, false
}

// move plays a random empty cell, or the centre on an unknown board.
func (b *bot) move(board [][]string) network.Message {
	row, col := 9, 9
	if r, c, ok := pickEmpty(board, b.rng); ok {
		row, col = r, c
	}
	return message.New(message.MakeMove, message.Move{GameID: b.gameID, Row: &row, Col: &col})
}

func pickEmpty(board [][]string, rng *rand.Rand) (int, int, bool) {
	var free [][2]int
	for r, cells := range board {
		for c, v := range cells {
			if v == "" {
				free = append(free, [2]int{r, c})
			}
		}
	}
	if len(free) == 0 {
		return 0, 0, false
	}
	p := free[rng.IntN(len(free))]
	return p[0], p[1], true
}
