package session

import (
	"errors"
	"fmt"

	"gomoku/internal/account"
	"gomoku/internal/game"
	"gomoku/internal/network"
	"gomoku/internal/session/message"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrBadRequest = errors.New("bad request")

	ErrGameNotFound   = fmt.Errorf("game %w", ErrNotFound)
	ErrInviteNotFound = fmt.Errorf("match request %w", ErrNotFound)
	ErrNotInRoom      = fmt.Errorf("player not in matching room: %w", ErrNotFound)
	ErrAlreadyQueued  = fmt.Errorf("%w: already in queue", ErrConflict)
	ErrAlreadyInGame  = fmt.Errorf("%w: already in a game", ErrConflict)

	// ErrUnknownType is answered with a protocol error but keeps the
	// connection; only undecodable envelopes drop it.
	ErrUnknownType = errors.New("unknown message type")

	errNotExpired = errors.New("turn has not expired")
)

// codeOf maps an error to the code sent to the client.
func codeOf(err error) string {
	switch {
	case errors.Is(err, account.ErrNotAuthenticated),
		errors.Is(err, account.ErrAlreadyLoggedIn),
		errors.Is(err, account.ErrBadCredentials),
		errors.Is(err, network.ErrIdentityBound):
		return message.CodeAuth
	case errors.Is(err, game.ErrInvalidMove):
		return message.CodeInvalidMove
	case errors.Is(err, ErrGameNotFound):
		return message.CodeGameNotFound
	case errors.Is(err, ErrNotFound),
		errors.Is(err, account.ErrUnknownUser),
		errors.Is(err, game.ErrNotParticipant):
		return message.CodeNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, account.ErrUsernameTaken):
		return message.CodeConflict
	case errors.Is(err, ErrBadRequest), errors.Is(err, account.ErrInvalidInput):
		return message.CodeBadRequest
	case errors.Is(err, network.ErrProtocol), errors.Is(err, ErrUnknownType):
		return message.CodeProtocol
	default:
		return message.CodeInternal
	}
}
