// Package message defines the envelope types and payloads exchanged with
// clients, and helpers to build outbound envelopes.
package message

// Client to server.
const (
	SignupRequest        = "signup_request"
	LoginRequest         = "login_request"
	Logout               = "logout"
	AccountDeleteRequest = "account_delete_request"
	GetStatsRequest      = "get_stats_request"
	GetLeaderboard       = "get_leaderboard_request"
	GetHistoryRequest    = "get_history_request"
	GetLiveGamesRequest  = "get_live_games_request"
	QueueRequest         = "queue_request"
	MakeMove             = "make_move"
	GetGameState         = "get_game_state"
	PlayerDisconnected   = "player_disconnected"
	MatchingRoomJoin     = "matching_room_join"
	MatchingRoomLeave    = "matching_room_leave"
	GetMatchingRoomUsers = "get_matching_room_users"
	MatchRequest         = "match_request"
	MatchResponse        = "match_response"
	MatchCancel          = "match_cancel"
	Heartbeat            = "heartbeat"
)

// Server to client. Logout, MatchCancel and Heartbeat reuse the request
// type for their reply.
const (
	SignupResponse        = "signup_response"
	LoginResponse         = "login_response"
	AccountDeleteResponse = "account_delete_response"
	GetStatsResponse      = "get_stats_response"
	LeaderboardResponse   = "get_leaderboard_response"
	GetHistoryResponse    = "get_history_response"
	GetLiveGamesResponse  = "get_live_games_response"
	QueueResponse         = "queue_response"
	MatchFound            = "match_found"
	GameState             = "game_state"
	GameOver              = "game_over"
	MatchingRoomUsers     = "matching_room_users"
	MatchRequestsResponse = "match_requests_response"
	MatchRequestSent      = "match_request_sent"
	MatchDeclined         = "match_declined"
	Error                 = "error"
)

// Error codes carried by Error envelopes. Clients suppress InvalidMove
// and GameNotFound.
const (
	CodeProtocol     = "protocol"
	CodeAuth         = "auth"
	CodeInvalidMove  = "invalid_move"
	CodeNotFound     = "not_found"
	CodeGameNotFound = "game_not_found"
	CodeConflict     = "conflict"
	CodeBadRequest   = "bad_request"
	CodeInternal     = "internal"
)

// Queue actions and statuses.
const (
	ActionJoin    = "join"
	ActionLeave   = "leave"
	StatusWaiting = "waiting"
	StatusLeft    = "left_queue"
)
