// Package api serves the HTTP side of the server: the WebSocket upgrade,
// the health check and read-only JSON views for spectators.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"gomoku/internal/account"
	"gomoku/internal/game"
	"gomoku/internal/session"
	"gomoku/internal/session/message"
	"gomoku/internal/store"
)

type Games interface {
	LiveGames(ctx context.Context) ([]game.Snapshot, error)
	State(ctx context.Context, id string) (game.Snapshot, error)
}

type Rankings interface {
	Leaderboard(ctx context.Context, limit int) ([]store.Account, error)
}

// Deps is what the router serves from.
type Deps struct {
	Health   http.Handler
	WS       http.HandlerFunc
	Games    Games
	Rankings Rankings
	Log      *zap.Logger
}

// NewRouter builds the HTTP handler, CORS included.
func NewRouter(d Deps) http.Handler {
	r := mux.NewRouter()
	r.Handle("/health", d.Health).Methods(http.MethodGet)
	r.HandleFunc("/ws", d.WS).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/live-games", liveGames(d)).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}", gameState(d)).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard", leaderboard(d)).Methods(http.MethodGet)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)
}

func liveGames(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snaps, err := d.Games.LiveGames(r.Context())
		if err != nil {
			fail(w, d.Log, err)
			return
		}
		out := message.LiveGames{LiveGames: make([]message.LiveGame, 0, len(snaps))}
		for _, s := range snaps {
			out.LiveGames = append(out.LiveGames, message.LiveGameOf(s))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func gameState(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		snap, err := d.Games.State(r.Context(), id)
		if err != nil {
			fail(w, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, message.State{GameID: snap.GameID, State: snap})
	}
}

func leaderboard(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accts, err := d.Rankings.Leaderboard(r.Context(), account.LeaderboardSize)
		if err != nil {
			fail(w, d.Log, err)
			return
		}
		out := message.Leaderboard{Leaderboard: make([]message.Profile, 0, len(accts))}
		for _, a := range accts {
			out.Leaderboard = append(out.Leaderboard, message.ProfileOf(a))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func fail(w http.ResponseWriter, log *zap.Logger, err error) {
	if errors.Is(err, session.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, message.ErrorPayload{Message: err.Error(), Code: message.CodeGameNotFound})
		return
	}
	log.Error("http request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, message.ErrorPayload{Message: "internal error", Code: message.CodeInternal})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
