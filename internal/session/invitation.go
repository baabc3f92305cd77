package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gomoku/internal/game"
)

// Presence is the matching room membership.
type Presence interface {
	InRoom(identity string) bool
	LeaveRoom(identity string) bool
}

// Invitation is a directed, time-boxed offer to play.
type Invitation struct {
	ID      string
	From    string
	To      string
	Created time.Time
	Expiry  time.Time
}

func (inv Invitation) expired(now time.Time) bool { return !now.Before(inv.Expiry) }

// Invitations holds pending offers. Each one is resolved at most once:
// accept, decline, cancel and expiry all remove it under the same lock.
type Invitations struct {
	mu       sync.Mutex
	pending  map[string]Invitation
	cfg      Config
	presence Presence
	registry *Registry
	log      *zap.Logger
}

func NewInvitations(cfg Config, presence Presence, registry *Registry, log *zap.Logger) *Invitations {
	return &Invitations{
		pending:  make(map[string]Invitation),
		cfg:      cfg.withDefaults(),
		presence: presence,
		registry: registry,
		log:      log,
	}
}

// Send creates an invitation from from to to. A ttl of zero takes the
// default; longer ones are capped.
func (iv *Invitations) Send(from, to string, ttl time.Duration) (Invitation, error) {
	if to == "" || from == to {
		return Invitation{}, fmt.Errorf("%w: cannot invite %q", ErrBadRequest, to)
	}
	for _, p := range []string{from, to} {
		if !iv.presence.InRoom(p) {
			return Invitation{}, fmt.Errorf("%w: %s", ErrNotInRoom, p)
		}
	}
	if ttl <= 0 {
		ttl = iv.cfg.InviteTTL
	}
	ttl = min(ttl, iv.cfg.MaxInviteTTL)

	now := iv.cfg.Clock.Now()
	inv := Invitation{ID: uuid.NewString(), From: from, To: to, Created: now, Expiry: now.Add(ttl)}

	iv.mu.Lock()
	iv.pending[inv.ID] = inv
	iv.mu.Unlock()

	iv.log.Debug("match request sent", zap.String("request_id", inv.ID), zap.String("from", from), zap.String("to", to))
	return inv, nil
}

// Respond resolves invitation id on behalf of responder. Accepting starts a
// game and takes both players out of the room.
func (iv *Invitations) Respond(ctx context.Context, id, responder string, accepted bool) (Invitation, *game.Snapshot, error) {
	now := iv.cfg.Clock.Now()

	iv.mu.Lock()
	inv, ok := iv.pending[id]
	switch {
	case !ok:
		iv.mu.Unlock()
		return Invitation{}, nil, ErrInviteNotFound
	case inv.To != responder:
		iv.mu.Unlock()
		return Invitation{}, nil, ErrInviteNotFound
	case inv.expired(now):
		delete(iv.pending, id)
		iv.mu.Unlock()
		return Invitation{}, nil, ErrInviteNotFound
	}
	delete(iv.pending, id)
	iv.mu.Unlock()

	if !accepted {
		iv.log.Debug("match request declined", zap.String("request_id", id))
		return inv, nil, nil
	}

	snap, err := iv.registry.Create(ctx, inv.From, inv.To)
	if err != nil {
		return inv, nil, err
	}
	iv.presence.LeaveRoom(inv.From)
	iv.presence.LeaveRoom(inv.To)
	return inv, &snap, nil
}

// Cancel removes the pending invitations from from to to.
func (iv *Invitations) Cancel(from, to string) []Invitation {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	var out []Invitation
	for id, inv := range iv.pending {
		if inv.From == from && inv.To == to {
			delete(iv.pending, id)
			out = append(out, inv)
		}
	}
	sortInvitations(out)
	return out
}

// CancelFor removes every invitation sent by or addressed to identity.
func (iv *Invitations) CancelFor(identity string) (sent, received []Invitation) {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	for id, inv := range iv.pending {
		switch identity {
		case inv.From:
			sent = append(sent, inv)
		case inv.To:
			received = append(received, inv)
		default:
			continue
		}
		delete(iv.pending, id)
	}
	sortInvitations(sent)
	sortInvitations(received)
	return sent, received
}

// Sweep drops expired invitations.
func (iv *Invitations) Sweep(now time.Time) []Invitation {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	var out []Invitation
	for id, inv := range iv.pending {
		if inv.expired(now) {
			delete(iv.pending, id)
			out = append(out, inv)
		}
	}
	sortInvitations(out)
	return out
}

// Pending returns the live invitations addressed to identity.
func (iv *Invitations) Pending(identity string) []Invitation {
	now := iv.cfg.Clock.Now()
	iv.mu.Lock()
	defer iv.mu.Unlock()
	var out []Invitation
	for _, inv := range iv.pending {
		if inv.To == identity && !inv.expired(now) {
			out = append(out, inv)
		}
	}
	sortInvitations(out)
	return out
}

func (iv *Invitations) Len() int {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return len(iv.pending)
}

func sortInvitations(invs []Invitation) {
	sort.Slice(invs, func(i, j int) bool {
		if invs[i].Created.Equal(invs[j].Created) {
			return invs[i].ID < invs[j].ID
		}
		return invs[i].Created.Before(invs[j].Created)
	})
}
