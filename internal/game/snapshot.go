package game

import (
	"fmt"
	"time"
)

// Snapshot is the serialisable form of a session. It is what clients see
// in game_state and what live stores persist.
type Snapshot struct {
	GameID        string            `json:"game_id"`
	Board         [][]string        `json:"board"`
	CurrentPlayer string            `json:"current_player"`
	Players       map[string]string `json:"players"`
	LastMove      *Coord            `json:"last_move,omitempty"`
	GameOver      bool              `json:"game_over"`
	Winner        string            `json:"winner,omitempty"`
	Reason        Reason            `json:"reason,omitempty"`
	TimeRemaining int               `json:"time_remaining"`
	Deadline      time.Time         `json:"deadline"`
	Moves         []Coord           `json:"moves"`
	Version       int               `json:"version"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Stones counts the stones of one side on the snapshot board.
func (s Snapshot) Stones(side Side) int {
	name := side.String()
	n := 0
	for _, row := range s.Board {
		for _, cell := range row {
			if cell == name {
				n++
			}
		}
	}
	return n
}

func (s *Session) Version() int { return s.version }

// Snapshot copies the session state. The board is deep-copied.
func (s *Session) Snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		GameID:        s.ID,
		Board:         s.board.Rows(),
		CurrentPlayer: s.turn.String(),
		Players:       map[string]string{Black.String(): s.Black, White.String(): s.White},
		GameOver:      s.finished,
		Winner:        s.winner,
		Reason:        s.reason,
		TimeRemaining: s.Remaining(now),
		Deadline:      s.deadline,
		Moves:         s.Moves(),
		Version:       s.version,
		CreatedAt:     s.CreatedAt,
	}
	if s.lastMove != nil {
		last := *s.lastMove
		snap.LastMove = &last
	}
	return snap
}

// Restore rebuilds a live session from a snapshot. The side to move gets a
// fresh turn budget from now.
func Restore(snap Snapshot, budget time.Duration, now time.Time) (*Session, error) {
	if snap.GameOver {
		return nil, fmt.Errorf("session %s is already finished", snap.GameID)
	}
	board, err := BoardFromRows(snap.Board)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", snap.GameID, err)
	}
	turn, err := ParseSide(snap.CurrentPlayer)
	if err != nil || turn == Empty {
		return nil, fmt.Errorf("restore %s: bad side to move %q", snap.GameID, snap.CurrentPlayer)
	}
	black, white := snap.Players[Black.String()], snap.Players[White.String()]
	if black == "" || white == "" {
		return nil, fmt.Errorf("restore %s: missing players", snap.GameID)
	}

	s := &Session{
		ID:        snap.GameID,
		Black:     black,
		White:     white,
		CreatedAt: snap.CreatedAt,
		board:     board,
		turn:      turn,
		moves:     append([]Coord(nil), snap.Moves...),
		budget:    budget,
		deadline:  now.Add(budget),
		version:   snap.Version,
	}
	if snap.LastMove != nil {
		last := *snap.LastMove
		s.lastMove = &last
	}
	return s, nil
}
