package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *engine) enterRoom(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, e.hub.Bind(n, e.newClient()))
		require.True(t, e.hub.EnterRoom(n))
	}
}

func TestSendValidatesParticipantsAndCapsTTL(t *testing.T) {
	e := newEngine(t)
	e.enterRoom(t, "alice", "bob")

	_, err := e.invitations.Send("alice", "alice", 0)
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = e.invitations.Send("alice", "carol", 0)
	assert.ErrorIs(t, err, ErrNotInRoom)

	inv, err := e.invitations.Send("alice", "bob", 0)
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(DefaultInviteTTL), inv.Expiry)

	inv, err = e.invitations.Send("alice", "bob", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(DefaultMaxInviteTTL), inv.Expiry)

	assert.Len(t, e.invitations.Pending("bob"), 2)
}

func TestAcceptStartsAGameAndEmptiesTheRoom(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.enterRoom(t, "alice", "bob")
	inv, err := e.invitations.Send("alice", "bob", 0)
	require.NoError(t, err)

	_, _, err = e.invitations.Respond(ctx, inv.ID, "alice", true)
	assert.ErrorIs(t, err, ErrInviteNotFound, "only the recipient may answer")

	got, snap, err := e.invitations.Respond(ctx, inv.ID, "bob", true)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, inv.ID, got.ID)
	black, white := blackWhite(*snap)
	assert.ElementsMatch(t, []string{"alice", "bob"}, []string{black, white})
	assert.False(t, e.hub.InRoom("alice"))
	assert.False(t, e.hub.InRoom("bob"))

	_, _, err = e.invitations.Respond(ctx, inv.ID, "bob", true)
	assert.ErrorIs(t, err, ErrInviteNotFound)
	assert.Equal(t, 1, e.registry.Len())
}

func TestDeclineCreatesNothing(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.enterRoom(t, "alice", "bob")
	inv, err := e.invitations.Send("alice", "bob", 0)
	require.NoError(t, err)

	_, snap, err := e.invitations.Respond(ctx, inv.ID, "bob", false)
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Equal(t, 0, e.registry.Len())
	assert.True(t, e.hub.InRoom("alice"))
	assert.Equal(t, 0, e.invitations.Len())
}

func TestLateResponseFails(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.enterRoom(t, "alice", "bob")
	inv, err := e.invitations.Send("alice", "bob", 5*time.Second)
	require.NoError(t, err)

	e.clock.Advance(5 * time.Second)
	_, _, err = e.invitations.Respond(ctx, inv.ID, "bob", true)
	assert.ErrorIs(t, err, ErrInviteNotFound)
	assert.Equal(t, 0, e.registry.Len())
	assert.Equal(t, 0, e.invitations.Len())
}

func TestCancelAndSweep(t *testing.T) {
	e := newEngine(t)
	e.enterRoom(t, "alice", "bob", "carol")

	a, err := e.invitations.Send("alice", "bob", 5*time.Second)
	require.NoError(t, err)
	_, err = e.invitations.Send("carol", "alice", 30*time.Second)
	require.NoError(t, err)
	_, err = e.invitations.Send("bob", "carol", 30*time.Second)
	require.NoError(t, err)

	assert.Empty(t, e.invitations.Cancel("alice", "carol"))
	removed := e.invitations.Cancel("alice", "bob")
	require.Len(t, removed, 1)
	assert.Equal(t, a.ID, removed[0].ID)

	sent, received := e.invitations.CancelFor("alice")
	assert.Empty(t, sent)
	require.Len(t, received, 1)
	assert.Equal(t, "carol", received[0].From)

	e.clock.Advance(time.Minute)
	dropped := e.invitations.Sweep(e.clock.Now())
	require.Len(t, dropped, 1)
	assert.Equal(t, "bob", dropped[0].From)
	assert.Equal(t, 0, e.invitations.Len())
}

func TestConcurrentResponsesResolveOnce(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.enterRoom(t, "alice", "bob")
	inv, err := e.invitations.Send("alice", "bob", 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := e.invitations.Respond(ctx, inv.ID, "bob", true); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, e.registry.Len())
}
