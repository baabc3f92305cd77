package game

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const budget = 30 * time.Second

func newTestSession() *Session {
	return New("g1", "alice", "bob", BoardSize, budget, epoch)
}

// checkerRows fills the board so that no line reaches five, leaving the
// given cells empty.
func checkerRows(size int, holes ...Coord) [][]string {
	rows := make([][]string, size)
	for r := range rows {
		rows[r] = make([]string, size)
		for c := range rows[r] {
			if ((c+2*r)/2)%2 == 0 {
				rows[r][c] = Black.String()
			} else {
				rows[r][c] = White.String()
			}
		}
	}
	for _, h := range holes {
		rows[h.Row][h.Col] = ""
	}
	return rows
}

func restoreWith(t *testing.T, rows [][]string, toMove Side) *Session {
	t.Helper()
	s, err := Restore(Snapshot{
		GameID:        "g1",
		Board:         rows,
		CurrentPlayer: toMove.String(),
		Players:       map[string]string{"black": "alice", "white": "bob"},
	}, budget, epoch)
	require.NoError(t, err)
	return s
}

func TestNewSessionStartsEmptyWithBlackToMove(t *testing.T) {
	s := newTestSession()

	assert.Equal(t, Black, s.Turn())
	assert.Equal(t, AwaitingFirstMove, s.Phase())
	assert.Len(t, s.Board().EmptyCells(), BoardSize*BoardSize)
	assert.Equal(t, epoch.Add(budget), s.Deadline())
	assert.Equal(t, 30, s.Remaining(epoch))
}

func TestApplyFlipsTurnAndResetsDeadline(t *testing.T) {
	s := newTestSession()
	later := epoch.Add(12 * time.Second)

	out, err := s.Apply("alice", Coord{Row: 9, Col: 9}, later)
	require.NoError(t, err)
	assert.False(t, out.Finished)
	assert.Equal(t, White, s.Turn())
	assert.Equal(t, InProgress, s.Phase())
	assert.Equal(t, later.Add(budget), s.Deadline())
	assert.Equal(t, []Coord{{Row: 9, Col: 9}}, s.Moves())
	assert.Equal(t, 1, s.Version())
}

func TestApplyRejectsWrongTurn(t *testing.T) {
	s := newTestSession()

	_, err := s.Apply("bob", Coord{Row: 0, Col: 0}, epoch)
	assert.ErrorIs(t, err, ErrInvalidMove)
	_, err = s.Apply("mallory", Coord{Row: 0, Col: 0}, epoch)
	assert.ErrorIs(t, err, ErrInvalidMove)
	assert.Empty(t, s.Moves())
	assert.Equal(t, Empty, s.Board().At(Coord{Row: 0, Col: 0}))
}

func TestApplyRejectsOutOfBounds(t *testing.T) {
	s := newTestSession()
	for _, c := range []Coord{{Row: -1, Col: 0}, {Row: 0, Col: BoardSize}, {Row: BoardSize, Col: 3}} {
		_, err := s.Apply("alice", c, epoch)
		assert.ErrorIs(t, err, ErrInvalidMove)
	}
	assert.Equal(t, Black, s.Turn())
}

func TestApplyOccupiedCellLeavesBoardUnchanged(t *testing.T) {
	s := newTestSession()
	_, err := s.Apply("alice", Coord{Row: 4, Col: 4}, epoch)
	require.NoError(t, err)
	_, err = s.Apply("bob", Coord{Row: 5, Col: 5}, epoch)
	require.NoError(t, err)

	before := s.Board().Rows()
	_, err = s.Apply("alice", Coord{Row: 4, Col: 4}, epoch)
	assert.ErrorIs(t, err, ErrInvalidMove)
	assert.Equal(t, before, s.Board().Rows())
	assert.Equal(t, Black, s.Turn())
	assert.Len(t, s.Moves(), 2)
}

func TestFiveInARowFinishesAndRejectsFurtherMoves(t *testing.T) {
	s := newTestSession()
	for i := 0; i < 4; i++ {
		_, err := s.Apply("alice", Coord{Row: 0, Col: i}, epoch)
		require.NoError(t, err)
		_, err = s.Apply("bob", Coord{Row: 10, Col: i}, epoch)
		require.NoError(t, err)
	}
	out, err := s.Apply("alice", Coord{Row: 0, Col: 4}, epoch)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Finished: true, Winner: "alice", Loser: "bob", Reason: ReasonFive}, out)
	assert.Equal(t, Finished, s.Phase())

	before := s.Board().Rows()
	for _, id := range []string{"alice", "bob"} {
		_, err = s.Apply(id, Coord{Row: 18, Col: 18}, epoch)
		assert.ErrorIs(t, err, ErrInvalidMove)
	}
	assert.Equal(t, before, s.Board().Rows())
	assert.Equal(t, 0, s.Remaining(epoch))
}

func TestFullBoardWithoutFiveGoesToSecondMover(t *testing.T) {
	for _, toMove := range []Side{Black, White} {
		t.Run(toMove.String(), func(t *testing.T) {
			s := restoreWith(t, checkerRows(BoardSize, Coord{}), toMove)

			out, err := s.Apply(s.PlayerOf(toMove), Coord{}, epoch)
			require.NoError(t, err)
			assert.True(t, out.Finished)
			assert.Equal(t, "bob", out.Winner)
			assert.Equal(t, ReasonBoardFull, out.Reason)
			assert.True(t, s.Board().Full())
		})
	}
}

func TestTimeoutMoveLandsOnTheOnlyEmptyCell(t *testing.T) {
	s := restoreWith(t, checkerRows(BoardSize, Coord{}), White)
	rng := rand.New(rand.NewPCG(1, 2))

	assert.False(t, s.Expired(epoch))
	assert.True(t, s.Expired(epoch.Add(budget)))

	c, out, err := s.TimeoutMove(epoch.Add(budget), rng)
	require.NoError(t, err)
	assert.Equal(t, Coord{Row: 0, Col: 0}, c)
	assert.Equal(t, White, s.Board().At(c))
	assert.True(t, out.Finished)
	assert.Equal(t, "bob", out.Winner)

	_, _, err = s.TimeoutMove(epoch.Add(budget), rng)
	assert.ErrorIs(t, err, ErrInvalidMove)
}

func TestTimeoutMovePicksAnEmptyCell(t *testing.T) {
	s := newTestSession()
	rng := rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 20; i++ {
		before := len(s.Board().EmptyCells())
		c, _, err := s.TimeoutMove(epoch, rng)
		require.NoError(t, err)
		assert.True(t, s.Board().InBounds(c))
		assert.Equal(t, before-1, len(s.Board().EmptyCells()))
	}
}

func TestForfeitAlwaysAwardsTheOtherPlayer(t *testing.T) {
	s := restoreWith(t, checkerRows(BoardSize, Coord{}, Coord{Row: 18, Col: 18}), Black)

	out, err := s.Forfeit("bob")
	require.NoError(t, err)
	assert.Equal(t, Outcome{Finished: true, Winner: "alice", Loser: "bob", Reason: ReasonDisconnect}, out)

	again, err := s.Forfeit("alice")
	require.NoError(t, err)
	assert.False(t, again.Finished)
	assert.Equal(t, "alice", s.Winner())
}

func TestForfeitByStranger(t *testing.T) {
	s := newTestSession()
	_, err := s.Forfeit("mallory")
	assert.ErrorIs(t, err, ErrNotParticipant)
	assert.False(t, s.Finished())
}

func TestSnapshotRestore(t *testing.T) {
	s := newTestSession()
	_, err := s.Apply("alice", Coord{Row: 3, Col: 4}, epoch)
	require.NoError(t, err)

	snap := s.Snapshot(epoch.Add(10 * time.Second))
	assert.Equal(t, "white", snap.CurrentPlayer)
	assert.Equal(t, 20, snap.TimeRemaining)
	assert.Equal(t, 1, snap.Stones(Black))
	assert.Equal(t, &Coord{Row: 3, Col: 4}, snap.LastMove)

	restartedAt := epoch.Add(time.Hour)
	back, err := Restore(snap, budget, restartedAt)
	require.NoError(t, err)
	assert.Equal(t, White, back.Turn())
	assert.Equal(t, s.Board().Rows(), back.Board().Rows())
	assert.Equal(t, restartedAt.Add(budget), back.Deadline())
	assert.Equal(t, s.Moves(), back.Moves())

	snap.GameOver = true
	_, err = Restore(snap, budget, restartedAt)
	assert.Error(t, err)
}
