package session

import (
	"context"
	"encoding/json"
	"fmt"

	"gomoku/internal/game"
	"gomoku/internal/network"
	"gomoku/internal/session/message"
)

func (h *Handler) registerGameHandlers() {
	h.handle(message.QueueRequest, handleQueue)
	h.handle(message.MakeMove, handleMove)
	h.handle(message.GetGameState, handleGameState)
	h.handle(message.PlayerDisconnected, handlePlayerDisconnected)
	h.handle(message.GetLiveGamesRequest, handleLiveGames)
}

func matchFound(snap game.Snapshot) Outbound {
	black, white := snap.Players[game.Black.String()], snap.Players[game.White.String()]
	return push(message.New(message.MatchFound, message.Match{GameID: snap.GameID, Black: black, White: white}), black, white)
}

// paired runs for every new game, whichever path created it: both players
// leave the queue and the matching room, their pending offers are void.
func (h *Handler) paired(snap game.Snapshot) []Outbound {
	var out []Outbound
	for _, p := range []string{snap.Players[game.Black.String()], snap.Players[game.White.String()]} {
		h.matchmaker.Leave(p)
		h.hub.LeaveRoom(p)
		out = append(out, h.cancelInvitations(p)...)
	}
	return append(out, matchFound(snap))
}

func handleQueue(ctx context.Context, h *Handler, c *network.Client, payload json.RawMessage) ([]Outbound, error) {
	var req message.QueueCommand
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	identity := c.Identity()

	switch req.Action {
	case message.ActionJoin:
		res, err := h.matchmaker.Join(ctx, identity)
		if err != nil {
			return nil, err
		}
		if res.Paired {
			return h.paired(res.Game), nil
		}
		status := message.QueueStatus{Status: message.StatusWaiting, QueueSize: res.QueueSize}
		return []Outbound{reply(message.New(message.QueueResponse, status))}, nil

	case message.ActionLeave:
		h.matchmaker.Leave(identity)
		status := message.QueueStatus{Status: message.StatusLeft, QueueSize: h.matchmaker.Size()}
		return []Outbound{reply(message.New(message.QueueResponse, status))}, nil

	default:
		return nil, fmt.Errorf("%w: unknown queue action %q", ErrBadRequest, req.Action)
	}
}

func handleMove(ctx context.Context, h *Handler, c *network.Client, payload json.RawMessage) ([]Outbound, error) {
	var req message.Move
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if req.GameID == "" || req.Row == nil || req.Col == nil {
		return nil, fmt.Errorf("%w: game_id, row and col are required", ErrBadRequest)
	}
	res, err := h.registry.Move(ctx, req.GameID, c.Identity(), game.Coord{Row: *req.Row, Col: *req.Col})
	if err != nil {
		return nil, err
	}
	return fanOut(res), nil
}

func fanOut(res Result) []Outbound {
	msgs := resultMessages(res)
	out := make([]Outbound, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, push(msg, res.Players()...))
	}
	return out
}

func handleGameState(ctx context.Context, h *Handler, _ *network.Client, payload json.RawMessage) ([]Outbound, error) {
	var req message.GameRef
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if req.GameID == "" {
		return nil, fmt.Errorf("%w: game_id is required", ErrBadRequest)
	}
	snap, err := h.registry.State(ctx, req.GameID)
	if err != nil {
		return nil, err
	}
	return []Outbound{reply(message.New(message.GameState, message.State{GameID: snap.GameID, State: snap}))}, nil
}

// handlePlayerDisconnected is a voluntary forfeit by the caller.
func handlePlayerDisconnected(ctx context.Context, h *Handler, c *network.Client, payload json.RawMessage) ([]Outbound, error) {
	var req message.GameRef
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	id := req.GameID
	if id == "" {
		var ok bool
		if id, ok = h.registry.InGame(c.Identity()); !ok {
			return nil, ErrGameNotFound
		}
	}
	res, err := h.registry.Forfeit(ctx, id, c.Identity())
	if err != nil {
		return nil, err
	}
	if !res.Outcome.Finished {
		return nil, nil
	}
	return []Outbound{push(gameOver(res), res.Players()...)}, nil
}

func handleLiveGames(ctx context.Context, h *Handler, _ *network.Client, _ json.RawMessage) ([]Outbound, error) {
	snaps, err := h.registry.LiveGames(ctx)
	if err != nil {
		return nil, err
	}
	games := message.LiveGames{LiveGames: make([]message.LiveGame, 0, len(snaps))}
	for _, s := range snaps {
		games.LiveGames = append(games.LiveGames, message.LiveGameOf(s))
	}
	return []Outbound{reply(message.New(message.GetLiveGamesResponse, games))}, nil
}
