package game

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

var (
	// ErrInvalidMove covers a finished session, the wrong turn, an
	// out-of-bounds coordinate and an occupied cell.
	ErrInvalidMove = errors.New("invalid move")

	ErrNotParticipant = errors.New("identity is not a participant of this session")
)

// Phase of a session. AwaitingFirstMove and InProgress behave the same;
// the turn clock runs from creation.
type Phase string

const (
	AwaitingFirstMove Phase = "awaiting_first_move"
	InProgress        Phase = "in_progress"
	Finished          Phase = "finished"
)

// Reason explains how a session ended.
type Reason string

const (
	ReasonFive       Reason = "five_in_a_row"
	ReasonBoardFull  Reason = "board_full"
	ReasonDisconnect Reason = "disconnect"
)

// Outcome is the result of a transition. Finished is set only by the
// transition that ended the session.
type Outcome struct {
	Finished bool
	Winner   string
	Loser    string
	Reason   Reason
}

// Session is one game between two identities. It is not safe for
// concurrent use; the registry serialises access.
type Session struct {
	ID        string
	Black     string
	White     string
	CreatedAt time.Time

	board    *Board
	turn     Side
	lastMove *Coord
	moves    []Coord
	finished bool
	winner   string
	reason   Reason
	budget   time.Duration
	deadline time.Time
	version  int
}

// New creates a session with black to move and a full turn budget.
func New(id, black, white string, size int, budget time.Duration, now time.Time) *Session {
	return &Session{
		ID:        id,
		Black:     black,
		White:     white,
		CreatedAt: now,
		board:     NewBoard(size),
		turn:      Black,
		budget:    budget,
		deadline:  now.Add(budget),
	}
}

func (s *Session) Board() *Board { return s.board }
func (s *Session) Turn() Side { return s.turn }
func (s *Session) Moves() []Coord { return append([]Coord(nil), s.moves...) }
func (s *Session) Finished() bool { return s.finished }
func (s *Session) Winner() string { return s.winner }
func (s *Session) Reason() Reason { return s.reason }
func (s *Session) Deadline() time.Time { return s.deadline }

func (s *Session) Phase() Phase {
	switch {
	case s.finished:
		return Finished
	case len(s.moves) == 0:
		return AwaitingFirstMove
	default:
		return InProgress
	}
}

// PlayerOf returns the identity bound to a side.
func (s *Session) PlayerOf(side Side) string {
	switch side {
	case Black:
		return s.Black
	case White:
		return s.White
	default:
		return ""
	}
}

// SideOf returns the side of an identity, or Empty if it is not playing.
func (s *Session) SideOf(identity string) Side {
	switch identity {
	case s.Black:
		return Black
	case s.White:
		return White
	default:
		return Empty
	}
}

// Opponent returns the other participant.
func (s *Session) Opponent(identity string) string {
	return s.PlayerOf(s.SideOf(identity).Opponent())
}

// Players returns both identities, black first.
func (s *Session) Players() []string { return []string{s.Black, s.White} }

// Apply places a stone for identity at c. Win detection runs in the same
// call so no caller can observe a placed stone without its verdict.
func (s *Session) Apply(identity string, c Coord, now time.Time) (Outcome, error) {
	if s.finished {
		return Outcome{}, fmt.Errorf("%w: session %s is finished", ErrInvalidMove, s.ID)
	}
	side := s.SideOf(identity)
	if side == Empty || side != s.turn {
		return Outcome{}, fmt.Errorf("%w: not %s's turn", ErrInvalidMove, identity)
	}
	if !s.board.InBounds(c) {
		return Outcome{}, fmt.Errorf("%w: (%d,%d) is out of bounds", ErrInvalidMove, c.Row, c.Col)
	}
	if s.board.At(c) != Empty {
		return Outcome{}, fmt.Errorf("%w: (%d,%d) is occupied", ErrInvalidMove, c.Row, c.Col)
	}

	s.board.set(c, side)
	s.moves = append(s.moves, c)
	last := c
	s.lastMove = &last
	s.version++

	if s.board.FiveFrom(c) {
		return s.finish(identity, ReasonFive), nil
	}
	if s.board.Full() {
		// A full board without five is won by the second mover.
		return s.finish(s.White, ReasonBoardFull), nil
	}

	s.turn = s.turn.Opponent()
	s.deadline = now.Add(s.budget)
	return Outcome{}, nil
}

// Forfeit declares the opponent of identity the winner regardless of the
// board. It is a no-op on a finished session.
func (s *Session) Forfeit(identity string) (Outcome, error) {
	if s.finished {
		return Outcome{}, nil
	}
	if s.SideOf(identity) == Empty {
		return Outcome{}, ErrNotParticipant
	}
	s.version++
	return s.finish(s.Opponent(identity), ReasonDisconnect), nil
}

// Expired reports whether the side to move has run out of time.
func (s *Session) Expired(now time.Time) bool {
	return !s.finished && !now.Before(s.deadline)
}

// TimeoutMove plays a uniformly random empty cell for the side to move.
func (s *Session) TimeoutMove(now time.Time, rng *rand.Rand) (Coord, Outcome, error) {
	if s.finished {
		return Coord{}, Outcome{}, fmt.Errorf("%w: session %s is finished", ErrInvalidMove, s.ID)
	}
	free := s.board.EmptyCells()
	if len(free) == 0 {
		return Coord{}, Outcome{}, fmt.Errorf("%w: no empty cell left", ErrInvalidMove)
	}
	c := free[rng.IntN(len(free))]
	out, err := s.Apply(s.PlayerOf(s.turn), c, now)
	return c, out, err
}

// Remaining is the number of whole seconds left for the side to move.
func (s *Session) Remaining(now time.Time) int {
	if s.finished {
		return 0
	}
	left := s.deadline.Sub(now).Seconds()
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left))
}

func (s *Session) finish(winner string, reason Reason) Outcome {
	s.finished = true
	s.winner = winner
	s.reason = reason
	return Outcome{
		Finished: true,
		Winner:   winner,
		Loser:    s.Opponent(winner),
		Reason:   reason,
	}
}
