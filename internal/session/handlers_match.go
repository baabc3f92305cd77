package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gomoku/internal/network"
	"gomoku/internal/session/message"
)

func (h *Handler) registerMatchHandlers() {
	h.handle(message.MatchingRoomJoin, handleRoomJoin)
	h.handle(message.MatchingRoomLeave, handleRoomLeave)
	h.handle(message.GetMatchingRoomUsers, handleRoomUsers)
	h.handle(message.MatchRequest, handleMatchRequest)
	h.handle(message.MatchResponse, handleMatchResponse)
	h.handle(message.MatchCancel, handleMatchCancel)
}

func handleRoomJoin(ctx context.Context, h *Handler, c *network.Client, _ json.RawMessage) ([]Outbound, error) {
	identity := c.Identity()
	if _, busy := h.registry.InGame(identity); busy {
		return nil, ErrAlreadyInGame
	}
	if !h.hub.EnterRoom(identity) {
		return nil, fmt.Errorf("%w: %s is not connected", ErrNotFound, identity)
	}
	return []Outbound{reply(h.roomUsers(ctx, identity))}, nil
}

func handleRoomLeave(_ context.Context, h *Handler, c *network.Client, _ json.RawMessage) ([]Outbound, error) {
	identity := c.Identity()
	h.hub.LeaveRoom(identity)
	return h.cancelInvitations(identity), nil
}

func handleRoomUsers(ctx context.Context, h *Handler, c *network.Client, _ json.RawMessage) ([]Outbound, error) {
	return []Outbound{reply(h.roomUsers(ctx, c.Identity()))}, nil
}

// roomUsers lists the other members of the matching room with their credits.
func (h *Handler) roomUsers(ctx context.Context, self string) network.Message {
	users := make([]message.RoomUser, 0)
	for _, name := range h.hub.RoomMembers() {
		if name == self {
			continue
		}
		u := message.RoomUser{Username: name}
		if acct, err := h.accounts.Stats(ctx, name); err == nil {
			u.Credits = acct.Credits
		} else {
			h.log.Debug("room member without account", zap.String("player", name), zap.Error(err))
		}
		users = append(users, u)
	}
	return message.New(message.MatchingRoomUsers, message.RoomUsers{Users: users})
}

func handleMatchRequest(ctx context.Context, h *Handler, c *network.Client, payload json.RawMessage) ([]Outbound, error) {
	var req message.Invite
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	from := c.Identity()
	for _, p := range []string{from, req.To} {
		if _, busy := h.registry.InGame(p); busy {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyInGame, p)
		}
	}
	inv, err := h.invitations.Send(from, req.To, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		return nil, err
	}

	offer := message.Offer{ID: inv.ID, From: from, Expiry: inv.Expiry}
	if acct, err := h.accounts.Stats(ctx, from); err == nil {
		offer.Credits = acct.Credits
	}
	return []Outbound{
		push(message.New(message.MatchRequestsResponse, message.Offers{Requests: []message.Offer{offer}}), inv.To),
		reply(message.New(message.MatchRequestSent, message.OfferSent{RequestID: inv.ID, To: inv.To, Expiry: inv.Expiry})),
	}, nil
}

func handleMatchResponse(ctx context.Context, h *Handler, c *network.Client, payload json.RawMessage) ([]Outbound, error) {
	var req message.InviteAnswer
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if req.RequestID == "" {
		return nil, fmt.Errorf("%w: request_id is required", ErrBadRequest)
	}
	inv, snap, err := h.invitations.Respond(ctx, req.RequestID, c.Identity(), req.Accepted)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return []Outbound{push(message.New(message.MatchDeclined, message.Declined{To: inv.To}), inv.From)}, nil
	}
	return h.paired(*snap), nil
}

func handleMatchCancel(_ context.Context, h *Handler, c *network.Client, payload json.RawMessage) ([]Outbound, error) {
	var req message.InviteCancel
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if req.To == "" {
		return nil, fmt.Errorf("%w: to is required", ErrBadRequest)
	}
	removed := h.invitations.Cancel(c.Identity(), req.To)
	if !req.Notify {
		return nil, nil
	}
	out := make([]Outbound, 0, len(removed))
	for _, inv := range removed {
		out = append(out, push(message.New(message.MatchCancel, message.Cancelled{RequestID: inv.ID}), inv.To))
	}
	return out, nil
}
