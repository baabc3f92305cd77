// Package store holds the persistence collaborators of the game server:
// accounts, finished-game history, live session snapshots and
// finished-game events.
package store

import (
	"context"
	"errors"
	"time"

	"gomoku/internal/game"
)

// ErrNotFound is returned by every store when a key does not exist.
var ErrNotFound = errors.New("store: not found")

// DeletedAccount replaces the name of a deleted account in history.
const DeletedAccount = "account deleted"

// Account is a registered player.
type Account struct {
	Username     string `json:"username" gorm:"primaryKey"`
	PasswordHash string `json:"password_hash" gorm:"not null"`
	Credits      int    `json:"credits"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

// HistoryRecord is written once per finished game. Player1 is black.
type HistoryRecord struct {
	GameID        string         `json:"game_id"`
	Player1       string         `json:"player1"`
	Player2       string         `json:"player2"`
	Winner        string         `json:"winner"`
	Reason        game.Reason    `json:"reason,omitempty"`
	EndTime       time.Time      `json:"end_time"`
	Moves         []game.Coord   `json:"moves"`
	CreditsChange map[string]int `json:"credits_change"`
}

type AccountStore interface {
	Get(ctx context.Context, username string) (Account, error)
	Put(ctx context.Context, a Account) error
	Delete(ctx context.Context, username string) error
	List(ctx context.Context) ([]Account, error)
}

type HistoryStore interface {
	Append(ctx context.Context, rec HistoryRecord) error
	ForPlayer(ctx context.Context, username string) ([]HistoryRecord, error)
	// RenamePlayer rewrites player and winner fields naming from.
	RenamePlayer(ctx context.Context, from, to string) error
}

// LiveSessionStore keeps snapshots of games in progress so they survive a
// restart and can be listed without touching the registry.
type LiveSessionStore interface {
	Put(ctx context.Context, snap game.Snapshot) error
	Get(ctx context.Context, gameID string) (game.Snapshot, error)
	Delete(ctx context.Context, gameID string) error
	List(ctx context.Context) ([]game.Snapshot, error)
}

// EventPublisher announces finished games to other systems.
type EventPublisher interface {
	GameFinished(ctx context.Context, rec HistoryRecord) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) GameFinished(context.Context, HistoryRecord) error { return nil }

func renameIn(rec *HistoryRecord, from, to string) bool {
	changed := false
	for _, f := range []*string{&rec.Player1, &rec.Player2, &rec.Winner} {
		if *f == from {
			*f = to
			changed = true
		}
	}
	return changed
}

func involves(rec HistoryRecord, username string) bool {
	return rec.Player1 == username || rec.Player2 == username
}
