package session

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"gomoku/internal/account"
	"gomoku/internal/network"
	"gomoku/internal/session/message"
	"gomoku/internal/store"
)

func (h *Handler) registerAccountHandlers() {
	h.handlePublic(message.SignupRequest, handleSignup)
	h.handlePublic(message.LoginRequest, handleLogin)
	h.handlePublic(message.Heartbeat, handleHeartbeat)
	h.handle(message.Logout, handleLogout)
	h.handle(message.AccountDeleteRequest, handleAccountDelete)
	h.handle(message.GetStatsRequest, handleStats)
	h.handle(message.GetLeaderboard, handleLeaderboard)
	h.handle(message.GetHistoryRequest, handleHistory)
}

func handleSignup(ctx context.Context, h *Handler, _ *network.Client, payload json.RawMessage) ([]Outbound, error) {
	var req message.Credentials
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if err := h.accounts.Signup(ctx, req.Username, req.Password); err != nil {
		return nil, err
	}
	return []Outbound{reply(message.New(message.SignupResponse, message.SignupResult{Success: true, Username: req.Username}))}, nil
}

func handleLogin(ctx context.Context, h *Handler, c *network.Client, payload json.RawMessage) ([]Outbound, error) {
	if c.Identity() != "" {
		return nil, account.ErrAlreadyLoggedIn
	}
	var req message.Credentials
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	acct, err := h.accounts.Login(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	if err := h.hub.Bind(acct.Username, c); err != nil {
		_ = h.accounts.Logout(acct.Username)
		return nil, err
	}
	h.log.Info("player logged in", zap.String("player", acct.Username), zap.String("remote", c.RemoteAddr()))
	return []Outbound{reply(message.New(message.LoginResponse, message.ProfileOf(acct)))}, nil
}

func handleHeartbeat(context.Context, *Handler, *network.Client, json.RawMessage) ([]Outbound, error) {
	return []Outbound{reply(message.New(message.Heartbeat, nil))}, nil
}

func handleLogout(ctx context.Context, h *Handler, c *network.Client, _ json.RawMessage) ([]Outbound, error) {
	identity := c.Identity()
	out := h.release(ctx, identity)
	h.hub.Unbind(c)
	h.log.Info("player logged out", zap.String("player", identity))
	return append(out, reply(message.New(message.Logout, message.Success{Success: true}))), nil
}

func handleAccountDelete(ctx context.Context, h *Handler, c *network.Client, _ json.RawMessage) ([]Outbound, error) {
	identity := c.Identity()
	out := h.release(ctx, identity)
	h.hub.Unbind(c)
	if err := h.accounts.Delete(ctx, identity); err != nil {
		return out, err
	}
	return append(out, reply(message.New(message.AccountDeleteResponse, message.Success{Success: true}))), nil
}

func handleStats(ctx context.Context, h *Handler, c *network.Client, _ json.RawMessage) ([]Outbound, error) {
	acct, err := h.accounts.Stats(ctx, c.Identity())
	if err != nil {
		return nil, err
	}
	stats := message.Stats{Profile: message.ProfileOf(acct), OnlinePlayers: h.accounts.Online()}
	return []Outbound{reply(message.New(message.GetStatsResponse, stats))}, nil
}

func handleLeaderboard(ctx context.Context, h *Handler, _ *network.Client, _ json.RawMessage) ([]Outbound, error) {
	accts, err := h.accounts.Leaderboard(ctx, account.LeaderboardSize)
	if err != nil {
		return nil, err
	}
	board := message.Leaderboard{Leaderboard: make([]message.Profile, 0, len(accts))}
	for _, a := range accts {
		board.Leaderboard = append(board.Leaderboard, message.ProfileOf(a))
	}
	return []Outbound{reply(message.New(message.LeaderboardResponse, board))}, nil
}

// handleHistory defaults to the caller's own games.
func handleHistory(ctx context.Context, h *Handler, c *network.Client, payload json.RawMessage) ([]Outbound, error) {
	var req message.HistoryQuery
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	who := req.Username
	if who == "" {
		who = c.Identity()
	}
	recs, err := h.accounts.History(ctx, who)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []store.HistoryRecord{}
	}
	return []Outbound{reply(message.New(message.GetHistoryResponse, message.Histories{Histories: recs}))}, nil
}
