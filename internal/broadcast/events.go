// Package broadcast fans session events out to websocket connections.
// Every connection owns a buffered FIFO queue; events enqueued under
// the hub lock are observed by each recipient in emission order, which
// carries the session's version ordering to every client. A consumer
// whose queue overflows is dropped rather than allowed to stall the
// emitter.
package broadcast

import "github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"

// Type names a hub event.
type Type string

const (
	GameStarted     Type = "game_started"
	DiceRolled      Type = "dice_rolled"
	MovePlayed      Type = "move_played"
	MoveUndone      Type = "move_undone"
	TurnEnded       Type = "turn_ended"
	DoubleOffered   Type = "double_offered"
	DoubleAccepted  Type = "double_accepted"
	DoubleDeclined  Type = "double_declined"
	GameOver        Type = "game_over"
	MatchOver       Type = "match_over"
	GameUpdate      Type = "game_update"
	TimeUpdate      Type = "time_update"
	ChatMessage     Type = "chat_message"
	PlayerJoined    Type = "player_joined"
	PlayerLeft      Type = "player_left"
	SpectatorJoined Type = "spectator_joined"
	AnalysisChanged Type = "analysis_changed"
	SessionEvicted  Type = "session_evicted"
)

// Event is one unit of session fan-out. Version is the session's
// monotonic event counter at emission.
type Event struct {
	Type      Type   `json:"type"`
	SessionID string `json:"sessionId"`
	Version   uint64 `json:"version"`
	Payload   any    `json:"payload,omitempty"`
}

// Registration describes one connection's membership in a session
// audience.
type Registration struct {
	ConnID    string
	PlayerID  string
	Seat      board.Color
	Spectator bool
}
