// Package transport is the HTTP and websocket gateway: it
// authenticates connections, translates wire frames into orchestrator
// actions and streams session events back out. One read pump and one
// write pump per socket; the write pump is the only goroutine that
// touches the connection for output.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/broadcast"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/orchestrator"
)

// ClientFrame is one request from the socket. RequestID is echoed on
// the matching ack or error frame so clients can correlate replies.
type ClientFrame struct {
	RequestID string          `json:"requestId,omitempty"`
	Action    string          `json:"action"`
	SessionID string          `json:"sessionId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ServerFrame is anything the gateway writes. Session events pass
// through with their own type and version; "ack" and "error" frames
// answer a specific request.
type ServerFrame struct {
	Type      string     `json:"type"`
	RequestID string     `json:"requestId,omitempty"`
	SessionID string     `json:"sessionId,omitempty"`
	Version   uint64     `json:"version,omitempty"`
	Payload   any        `json:"payload,omitempty"`
	Error     *WireError `json:"error,omitempty"`
}

// WireError names the rejection kind alongside the message so clients
// can branch without matching strings.
type WireError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ackPayload is the body of an ack frame.
type ackPayload struct {
	Seat  string                  `json:"seat,omitempty"`
	State *orchestrator.StateView `json:"state,omitempty"`
}

type createPayload struct {
	Target   int    `json:"target"`
	Opponent string `json:"opponent"`
	BotID    string `json:"botId"`
}

type chatPayload struct {
	Text string `json:"text"`
}

type dicePayload struct {
	Dice []uint8 `json:"dice"`
}

// ErrUnknownAction rejects frames naming no public operation.
var ErrUnknownAction = errors.New("unknown action")

// wireOps is the set of actions a socket may submit. Internal
// producers (timeouts, bot completion, eviction) never arrive here.
var wireOps = map[orchestrator.Op]bool{
	orchestrator.OpCreateMatch:   true,
	orchestrator.OpJoinMatch:     true,
	orchestrator.OpWatchGame:     true,
	orchestrator.OpGetState:      true,
	orchestrator.OpRollDice:      true,
	orchestrator.OpMakeMove:      true,
	orchestrator.OpUndoMove:      true,
	orchestrator.OpEndTurn:       true,
	orchestrator.OpOfferDouble:   true,
	orchestrator.OpAcceptDouble:  true,
	orchestrator.OpDeclineDouble: true,
	orchestrator.OpLeaveGame:     true,
	orchestrator.OpAbandonGame:   true,
	orchestrator.OpSendChat:      true,
	orchestrator.OpEnterAnalysis: true,
	orchestrator.OpExitAnalysis:  true,
	orchestrator.OpSetDice:       true,
}

// decodeAction translates a client frame into an action bound to the
// connection's authenticated identity. The wire never sets seats or
// admin rights.
func decodeAction(playerID, connID string, f ClientFrame) (orchestrator.Action, error) {
	op := orchestrator.Op(f.Action)
	if !wireOps[op] {
		return orchestrator.Action{}, fmt.Errorf("%w %q", ErrUnknownAction, f.Action)
	}
	act := orchestrator.Action{
		Op:        op,
		SessionID: f.SessionID,
		PlayerID:  playerID,
		ConnID:    connID,
	}
	switch op {
	case orchestrator.OpCreateMatch:
		var p createPayload
		if err := unmarshalPayload(f.Payload, &p); err != nil {
			return orchestrator.Action{}, err
		}
		act.Target = p.Target
		act.Opponent = p.Opponent
		act.BotID = p.BotID
	case orchestrator.OpMakeMove:
		var p orchestrator.MoveArg
		if err := unmarshalPayload(f.Payload, &p); err != nil {
			return orchestrator.Action{}, err
		}
		act.Move = p
	case orchestrator.OpSendChat:
		var p chatPayload
		if err := unmarshalPayload(f.Payload, &p); err != nil {
			return orchestrator.Action{}, err
		}
		act.Text = p.Text
	case orchestrator.OpSetDice:
		var p dicePayload
		if err := unmarshalPayload(f.Payload, &p); err != nil {
			return orchestrator.Action{}, err
		}
		act.Dice = p.Dice
	}
	return act, nil
}

func unmarshalPayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("bad payload: %w", err)
	}
	return nil
}

func eventFrame(ev broadcast.Event) ServerFrame {
	return ServerFrame{
		Type:      string(ev.Type),
		SessionID: ev.SessionID,
		Version:   ev.Version,
		Payload:   ev.Payload,
	}
}

func ackFrame(requestID string, res orchestrator.Result) ServerFrame {
	return ServerFrame{
		Type:      "ack",
		RequestID: requestID,
		SessionID: res.SessionID,
		Payload:   ackPayload{Seat: res.Seat, State: res.State},
	}
}

func errorFrame(requestID string, err error) ServerFrame {
	return ServerFrame{
		Type:      "error",
		RequestID: requestID,
		Error: &WireError{
			Kind:    orchestrator.KindOf(err).String(),
			Message: err.Error(),
		},
	}
}

func rejectFrame(requestID string, k orchestrator.Kind, msg string) ServerFrame {
	return ServerFrame{
		Type:      "error",
		RequestID: requestID,
		Error:     &WireError{Kind: k.String(), Message: msg},
	}
}
