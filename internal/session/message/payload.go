package message

import (
	"time"

	"gomoku/internal/game"
	"gomoku/internal/store"
)

// Requests.

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type HistoryQuery struct {
	Username string `json:"username,omitempty"`
}

type QueueCommand struct {
	Action string `json:"action"`
}

// Move uses pointers so a missing coordinate is distinguishable from 0.
type Move struct {
	GameID string `json:"game_id"`
	Row    *int   `json:"row"`
	Col    *int   `json:"col"`
}

type GameRef struct {
	GameID string `json:"game_id"`
}

type Invite struct {
	To         string `json:"to"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

type InviteAnswer struct {
	RequestID string `json:"request_id"`
	Accepted  bool   `json:"accepted"`
}

type InviteCancel struct {
	To     string `json:"to"`
	Notify bool   `json:"notify"`
}

// Responses and pushes.

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type SignupResult struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
}

type Success struct {
	Success bool `json:"success"`
}

type Profile struct {
	Username string `json:"username"`
	Credits  int    `json:"credits"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
}

func ProfileOf(a store.Account) Profile {
	return Profile{Username: a.Username, Credits: a.Credits, Wins: a.Wins, Losses: a.Losses}
}

type Stats struct {
	Profile
	OnlinePlayers int `json:"online_players"`
}

type Leaderboard struct {
	Leaderboard []Profile `json:"leaderboard"`
}

type Histories struct {
	Histories []store.HistoryRecord `json:"histories"`
}

type LiveGame struct {
	GameID        string `json:"game_id"`
	Player1       string `json:"player1"`
	Player2       string `json:"player2"`
	BlackStones   int    `json:"black_stones"`
	WhiteStones   int    `json:"white_stones"`
	CurrentPlayer string `json:"current_player"`
}

func LiveGameOf(s game.Snapshot) LiveGame {
	return LiveGame{
		GameID:        s.GameID,
		Player1:       s.Players[game.Black.String()],
		Player2:       s.Players[game.White.String()],
		BlackStones:   s.Stones(game.Black),
		WhiteStones:   s.Stones(game.White),
		CurrentPlayer: s.CurrentPlayer,
	}
}

type LiveGames struct {
	LiveGames []LiveGame `json:"live_games"`
}

type QueueStatus struct {
	Status    string `json:"status"`
	QueueSize int    `json:"queue_size"`
}

type Match struct {
	GameID string `json:"game_id"`
	Black  string `json:"black"`
	White  string `json:"white"`
}

type State struct {
	GameID string        `json:"game_id"`
	State  game.Snapshot `json:"state"`
}

type Result struct {
	GameID        string         `json:"game_id"`
	Winner        string         `json:"winner"`
	Reason        game.Reason    `json:"reason"`
	Disconnected  string         `json:"disconnected,omitempty"`
	CreditsChange map[string]int `json:"credits_change"`
}

type RoomUser struct {
	Username string `json:"username"`
	Credits  int    `json:"credits"`
}

type RoomUsers struct {
	Users []RoomUser `json:"users"`
}

type Offer struct {
	ID      string    `json:"id"`
	From    string    `json:"from"`
	Credits int       `json:"credits"`
	Expiry  time.Time `json:"expiry"`
}

type Offers struct {
	Requests []Offer `json:"requests"`
}

type OfferSent struct {
	RequestID string    `json:"request_id"`
	To        string    `json:"to"`
	Expiry    time.Time `json:"expiry"`
}

type Declined struct {
	To string `json:"to"`
}

type Cancelled struct {
	RequestID string `json:"request_id"`
}
