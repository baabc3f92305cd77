package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomoku/internal/game"
)

func TestCreateAssignsOppositeSidesOnAnEmptyBoard(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	snap, err := e.registry.Create(ctx, "alice", "bob")
	require.NoError(t, err)

	black, white := blackWhite(snap)
	assert.ElementsMatch(t, []string{"alice", "bob"}, []string{black, white})
	assert.Equal(t, "black", snap.CurrentPlayer)
	assert.Equal(t, 0, snap.Stones(game.Black)+snap.Stones(game.White))
	assert.Len(t, snap.Board, game.BoardSize)
	assert.Equal(t, 30, snap.TimeRemaining)

	for _, p := range []string{"alice", "bob"} {
		id, ok := e.registry.InGame(p)
		assert.True(t, ok)
		assert.Equal(t, snap.GameID, id)
	}
	stored, err := e.live.Get(ctx, snap.GameID)
	require.NoError(t, err)
	assert.Equal(t, snap.GameID, stored.GameID)
}

func TestCreateRejectsSelfPlayAndBusyPlayers(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.registry.Create(ctx, "alice", "alice")
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = e.registry.Create(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = e.registry.Create(ctx, "carol", "bob")
	assert.ErrorIs(t, err, ErrAlreadyInGame)
	assert.Equal(t, 1, e.registry.Len())
}

func TestMoveOnOccupiedCellLeavesStateUnchanged(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	snap, err := e.registry.Create(ctx, "alice", "bob")
	require.NoError(t, err)
	black, white := blackWhite(snap)

	_, err = e.registry.Move(ctx, snap.GameID, black, game.Coord{Row: 4, Col: 4})
	require.NoError(t, err)
	_, err = e.registry.Move(ctx, snap.GameID, white, game.Coord{Row: 5, Col: 5})
	require.NoError(t, err)
	before, err := e.registry.State(ctx, snap.GameID)
	require.NoError(t, err)

	_, err = e.registry.Move(ctx, snap.GameID, black, game.Coord{Row: 4, Col: 4})
	assert.ErrorIs(t, err, game.ErrInvalidMove)

	after, err := e.registry.State(ctx, snap.GameID)
	require.NoError(t, err)
	assert.Equal(t, before.Board, after.Board)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, "black", after.CurrentPlayer)
}

func TestMoveOutOfTurnIsInvalid(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	snap, err := e.registry.Create(ctx, "alice", "bob")
	require.NoError(t, err)
	_, white := blackWhite(snap)

	_, err = e.registry.Move(ctx, snap.GameID, white, game.Coord{Row: 0, Col: 0})
	assert.ErrorIs(t, err, game.ErrInvalidMove)
	_, err = e.registry.Move(ctx, snap.GameID, "mallory", game.Coord{Row: 0, Col: 0})
	assert.ErrorIs(t, err, game.ErrInvalidMove)
	_, err = e.registry.Move(ctx, "nope", white, game.Coord{Row: 0, Col: 0})
	assert.ErrorIs(t, err, ErrGameNotFound)
}

// playFive has black complete row 0 while white plays along row 10.
func playFive(t *testing.T, e *engine, snap game.Snapshot) Result {
	t.Helper()
	ctx := context.Background()
	black, white := blackWhite(snap)
	var res Result
	for i := 0; i < 5; i++ {
		var err error
		res, err = e.registry.Move(ctx, snap.GameID, black, game.Coord{Row: 0, Col: i})
		require.NoError(t, err)
		if i < 4 {
			_, err = e.registry.Move(ctx, snap.GameID, white, game.Coord{Row: 10, Col: i})
			require.NoError(t, err)
		}
	}
	return res
}

func TestFiveInARowSettlesOnce(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.addAccount(t, "alice", 0)
	e.addAccount(t, "bob", 0)
	snap, err := e.registry.Create(ctx, "alice", "bob")
	require.NoError(t, err)
	black, white := blackWhite(snap)

	res := playFive(t, e, snap)

	require.True(t, res.Outcome.Finished)
	assert.Equal(t, black, res.Outcome.Winner)
	assert.Equal(t, game.ReasonFive, res.Outcome.Reason)
	assert.True(t, res.Snapshot.GameOver)
	assert.Equal(t, map[string]int{black: 8, white: 0}, res.Deltas)
	assert.Equal(t, 8, e.credits(t, black))
	assert.Equal(t, 0, e.credits(t, white))

	assert.Equal(t, 0, e.registry.Len())
	_, busy := e.registry.InGame(black)
	assert.False(t, busy)
	_, err = e.live.Get(ctx, snap.GameID)
	assert.Error(t, err)

	recs, err := e.mem.ForPlayer(ctx, black)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, black, recs[0].Player1)
	assert.Equal(t, white, recs[0].Player2)
	assert.Equal(t, black, recs[0].Winner)
	assert.Len(t, recs[0].Moves, 9)

	_, err = e.registry.Move(ctx, snap.GameID, white, game.Coord{Row: 10, Col: 4})
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestForfeitAwardsOpponent(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	snap, err := e.registry.Create(ctx, "alice", "bob")
	require.NoError(t, err)

	res, finished, err := e.registry.ForfeitPlayer(ctx, "alice")
	require.NoError(t, err)
	require.True(t, finished)
	assert.Equal(t, "bob", res.Outcome.Winner)
	assert.Equal(t, "alice", res.Outcome.Loser)
	assert.Equal(t, game.ReasonDisconnect, res.Outcome.Reason)

	_, finished, err = e.registry.ForfeitPlayer(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, finished)

	_, err = e.registry.Forfeit(ctx, snap.GameID, "bob")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestConcurrentTransitionsSettleExactlyOnce(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	snap, err := e.registry.Create(ctx, "alice", "bob")
	require.NoError(t, err)
	black, _ := blackWhite(snap)

	var wg sync.WaitGroup
	var mu sync.Mutex
	moved, finished := 0, 0
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := e.registry.Move(ctx, snap.GameID, black, game.Coord{Row: 9, Col: 9}); err == nil {
				mu.Lock()
				moved++
				mu.Unlock()
			}
		}()
		go func(p string) {
			defer wg.Done()
			if _, ok, _ := e.registry.ForfeitPlayer(ctx, p); ok {
				mu.Lock()
				finished++
				mu.Unlock()
			}
		}([]string{"alice", "bob"}[i%2])
	}
	wg.Wait()

	assert.LessOrEqual(t, moved, 1)
	assert.Equal(t, 1, finished)
	recs, err := e.mem.ForPlayer(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

// restoreChecker puts a full, five-free board with one hole at (0,0) and
// white to move into the live store and restores it.
func restoreChecker(t *testing.T, e *engine) string {
	t.Helper()
	ctx := context.Background()
	rows := make([][]string, game.BoardSize)
	for r := range rows {
		rows[r] = make([]string, game.BoardSize)
		for c := range rows[r] {
			if ((c+2*r)/2)%2 == 0 {
				rows[r][c] = "black"
			} else {
				rows[r][c] = "white"
			}
		}
	}
	rows[0][0] = ""
	require.NoError(t, e.live.Put(ctx, game.Snapshot{
		GameID:        "g-full",
		Board:         rows,
		CurrentPlayer: "white",
		Players:       map[string]string{"black": "alice", "white": "bob"},
		CreatedAt:     epoch,
	}))
	n, err := e.registry.Restore(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	return "g-full"
}

func TestTickForcesTheOnlyEmptyCell(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	id := restoreChecker(t, e)

	_, err := e.registry.Tick(ctx, id)
	assert.ErrorIs(t, err, errNotExpired)
	assert.Empty(t, e.registry.Expired(e.clock.Now()))

	e.clock.Advance(30 * time.Second)
	assert.Equal(t, []string{id}, e.registry.Expired(e.clock.Now()))

	res, err := e.registry.Tick(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, res.Forced)
	assert.Equal(t, game.Coord{Row: 0, Col: 0}, *res.Forced)
	assert.True(t, res.Outcome.Finished)
	assert.Equal(t, "bob", res.Outcome.Winner)
	assert.Equal(t, game.ReasonBoardFull, res.Outcome.Reason)
}

func TestRestoreGivesAFreshBudgetAndDropsFinishedGames(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.live.Put(ctx, game.Snapshot{GameID: "done", GameOver: true}))
	id := restoreChecker(t, e)

	_, err := e.live.Get(ctx, "done")
	assert.Error(t, err)

	snap, err := e.registry.State(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 30, snap.TimeRemaining)
	assert.Equal(t, epoch.Add(30*time.Second), snap.Deadline)
	gid, ok := e.registry.InGame("bob")
	assert.True(t, ok)
	assert.Equal(t, id, gid)
}

func TestStateFallsBackToLiveStore(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.live.Put(ctx, game.Snapshot{
		GameID:   "elsewhere",
		Deadline: epoch.Add(12*time.Second + time.Millisecond),
	}))

	snap, err := e.registry.State(ctx, "elsewhere")
	require.NoError(t, err)
	assert.Equal(t, 13, snap.TimeRemaining)

	_, err = e.registry.State(ctx, "missing")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestRestoreDropsGamesOfBusyPlayers(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	running, err := e.registry.Create(ctx, "alice", "carol")
	require.NoError(t, err)
	stale := game.New("g-stale", "alice", "bob", game.BoardSize, 30*time.Second, epoch).Snapshot(epoch)
	require.NoError(t, e.live.Put(ctx, stale))

	n, err := e.registry.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = e.live.Get(ctx, "g-stale")
	assert.Error(t, err)
	_, err = e.live.Get(ctx, running.GameID)
	assert.NoError(t, err, "the running game keeps its snapshot")
	games, err := e.registry.LiveGames(ctx)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, running.GameID, games[0].GameID)
}

func TestMoveOnAFinishedGameNotYetRemovedIsInvalid(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	snap, err := e.registry.Create(ctx, "alice", "bob")
	require.NoError(t, err)
	black, white := blackWhite(snap)

	// Finish the game in place, as a concurrent transition would just
	// before it removes the session.
	en, ok := e.registry.get(snap.GameID)
	require.True(t, ok)
	en.mu.Lock()
	_, err = en.game.Forfeit(white)
	en.mu.Unlock()
	require.NoError(t, err)

	_, err = e.registry.Move(ctx, snap.GameID, black, game.Coord{Row: 9, Col: 9})
	assert.ErrorIs(t, err, game.ErrInvalidMove)
	_, err = e.registry.Forfeit(ctx, snap.GameID, black)
	assert.ErrorIs(t, err, ErrGameNotFound)
	_, err = e.registry.Tick(ctx, snap.GameID)
	assert.ErrorIs(t, err, errNotExpired)

	recs, err := e.mem.ForPlayer(ctx, black)
	require.NoError(t, err)
	assert.Empty(t, recs, "nothing settles a second time")
}
