// Package session is the game engine behind the connections: the live
// session registry, matchmaking, invitations, the deadline sweeper and the
// dispatcher that routes client envelopes to them.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"gomoku/internal/account"
	"gomoku/internal/network"
	"gomoku/internal/session/message"
)

// Outbound is one envelope produced by a command. A nil To means the
// connection that sent the command.
type Outbound struct {
	To  []string
	Msg network.Message
}

func reply(msg network.Message) Outbound { return Outbound{Msg: msg} }

func push(msg network.Message, to ...string) Outbound { return Outbound{To: to, Msg: msg} }

// CommandHandlerFunc handles one request type for an authenticated or
// public caller.
type CommandHandlerFunc func(ctx context.Context, h *Handler, c *network.Client, payload json.RawMessage) ([]Outbound, error)

// Handler implements network.EventHandler.
type Handler struct {
	accounts    *account.Gateway
	registry    *Registry
	matchmaker  *Matchmaker
	invitations *Invitations
	hub         *network.Hub
	cfg         Config
	log         *zap.Logger

	router map[string]CommandHandlerFunc
	public map[string]bool
}

func NewHandler(cfg Config, accounts *account.Gateway, registry *Registry, matchmaker *Matchmaker, invitations *Invitations, hub *network.Hub, log *zap.Logger) *Handler {
	h := &Handler{
		accounts:    accounts,
		registry:    registry,
		matchmaker:  matchmaker,
		invitations: invitations,
		hub:         hub,
		cfg:         cfg.withDefaults(),
		log:         log,
		router:      make(map[string]CommandHandlerFunc),
		public:      make(map[string]bool),
	}
	h.registerAccountHandlers()
	h.registerGameHandlers()
	h.registerMatchHandlers()
	return h
}

func (h *Handler) handle(typ string, fn CommandHandlerFunc) { h.router[typ] = fn }

func (h *Handler) handlePublic(typ string, fn CommandHandlerFunc) {
	h.router[typ] = fn
	h.public[typ] = true
}

func (h *Handler) OnConnect(c *network.Client) {
	h.log.Debug("client connected", zap.String("remote", c.RemoteAddr()))
}

// OnDisconnect releases everything the identity held and tells the people
// affected.
func (h *Handler) OnDisconnect(c *network.Client) {
	identity := c.Identity()
	h.log.Debug("client disconnected", zap.String("remote", c.RemoteAddr()), zap.String("player", identity))
	if identity == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.RequestTimeout)
	defer cancel()
	h.deliver(c, h.release(ctx, identity))
	h.hub.Unbind(c)
}

func (h *Handler) OnMessage(c *network.Client, msg network.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.RequestTimeout)
	defer cancel()
	out, err := h.Dispatch(ctx, c, msg)
	h.deliver(c, out)
	return err
}

// Dispatch routes msg and returns the envelopes to send, in order. Command
// errors become error envelopes for the caller; only a protocol violation
// is returned, which drops the connection.
func (h *Handler) Dispatch(ctx context.Context, c *network.Client, msg network.Message) ([]Outbound, error) {
	out, err := h.route(ctx, c, msg)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, network.ErrProtocol) {
		return out, err
	}

	code := codeOf(err)
	text := err.Error()
	if code == message.CodeInternal {
		h.log.Error("command failed", zap.String("type", msg.Type), zap.String("player", c.Identity()), zap.Error(err))
		text = "internal error"
	} else {
		h.log.Debug("command rejected", zap.String("type", msg.Type), zap.String("code", code), zap.Error(err))
	}
	return append(out, reply(message.NewError(code, text))), nil
}

func (h *Handler) route(ctx context.Context, c *network.Client, msg network.Message) ([]Outbound, error) {
	fn, ok := h.router[msg.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
	if !h.public[msg.Type] && c.Identity() == "" {
		return nil, account.ErrNotAuthenticated
	}
	return fn(ctx, h, c, msg.Payload)
}

func (h *Handler) deliver(c *network.Client, out []Outbound) {
	for _, o := range out {
		if o.To == nil {
			c.Deliver(o.Msg)
			continue
		}
		h.hub.Broadcast(o.To, o.Msg)
	}
}

// decode unmarshals payload into v; malformed payloads are bad requests.
func decode(payload json.RawMessage, v any) error {
	if err := message.Decode(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

// release frees identity from the queue, the room, its invitations, the
// account's online set and any live game. It backs logout, account
// deletion and disconnects.
func (h *Handler) release(ctx context.Context, identity string) []Outbound {
	var out []Outbound
	log := h.log.With(zap.String("player", identity))

	if h.matchmaker.Leave(identity) {
		log.Debug("left queue on release")
	}
	h.hub.LeaveRoom(identity)
	out = append(out, h.cancelInvitations(identity)...)

	if err := h.accounts.Logout(identity); err != nil && !errors.Is(err, account.ErrNotAuthenticated) {
		log.Warn("logout failed", zap.Error(err))
	}

	res, finished, err := h.registry.ForfeitPlayer(ctx, identity)
	if err != nil {
		log.Error("forfeit on release failed", zap.Error(err))
	}
	if finished {
		out = append(out, push(gameOver(res), res.Players()...))
	}
	return out
}

// cancelInvitations drops every invitation involving identity and tells
// the recipients of the ones it sent.
func (h *Handler) cancelInvitations(identity string) []Outbound {
	sent, _ := h.invitations.CancelFor(identity)
	out := make([]Outbound, 0, len(sent))
	for _, inv := range sent {
		out = append(out, push(message.New(message.MatchCancel, message.Cancelled{RequestID: inv.ID}), inv.To))
	}
	return out
}
