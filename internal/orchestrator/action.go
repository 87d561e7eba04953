package orchestrator

import (
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/session"
)

// Op names an orchestrator action.
type Op string

const (
	OpCreateMatch   Op = "createMatch"
	OpJoinMatch     Op = "joinMatch"
	OpWatchGame     Op = "watchGame"
	OpGetState      Op = "getState"
	OpRollDice      Op = "rollDice"
	OpMakeMove      Op = "makeMove"
	OpUndoMove      Op = "undoMove"
	OpEndTurn       Op = "endTurn"
	OpOfferDouble   Op = "offerDouble"
	OpAcceptDouble  Op = "acceptDouble"
	OpDeclineDouble Op = "declineDouble"
	OpLeaveGame     Op = "leaveGame"
	OpAbandonGame   Op = "abandonGame"
	OpSendChat      Op = "sendChat"
	OpEnterAnalysis Op = "enterAnalysis"
	OpExitAnalysis  Op = "exitAnalysis"
	OpSetDice       Op = "setDice"

	// Internal producers only; Submit rejects them from outside.
	opTimeout   Op = "timeoutOccurred"
	opBotFinish Op = "botFinish"
	opBotDone   Op = "botDone"
	opEvict     Op = "evictSession"
)

// MoveArg is one checker move on the wire: from/to as board positions
// (0 bar and bear-off, 1..24 points) and the die consumed.
type MoveArg struct {
	From int   `json:"from"`
	To   int   `json:"to"`
	Die  uint8 `json:"die"`
}

// Action is one request bound for a session's actor. PlayerID and
// ConnID come from the authenticated transport; the Seat override is
// reserved for internal producers (bot runner, clock expiry) and must
// never be set from a wire request.
type Action struct {
	Op        Op
	SessionID string
	PlayerID  string
	ConnID    string

	// createMatch
	Target   int
	Opponent string
	BotID    string

	// makeMove
	Move MoveArg

	// sendChat
	Text string

	// setDice
	Dice []uint8

	// Admin marks requests arriving through the guarded admin API.
	Admin bool

	// Reason annotates evictions.
	Reason string

	// Internal seat override.
	Seat    board.Color
	HasSeat bool
}

// actor returns the color the action acts as, resolving the player's
// seat unless an internal producer pinned one.
func (a Action) actor(seatOf func(string) (board.Color, bool)) (board.Color, error) {
	if a.HasSeat {
		return a.Seat, nil
	}
	c, ok := seatOf(a.PlayerID)
	if !ok {
		return 0, session.ErrNotSeated
	}
	return c, nil
}

// Result is the reply to a submitted action.
type Result struct {
	SessionID string     `json:"sessionId"`
	Seat      string     `json:"seat,omitempty"`
	State     *StateView `json:"state,omitempty"`
}
