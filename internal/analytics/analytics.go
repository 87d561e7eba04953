// Package analytics publishes game telemetry to external systems:
// settled results to Kafka and per-action event rows to ClickHouse.
// Everything is fire-and-forget behind the Recorder port so the game
// flow never blocks on a broker or a warehouse.
package analytics

import "time"

// GameEvent is one settled game.
type GameEvent struct {
	SessionID      string    `json:"session_id"`
	GameNumber     int       `json:"game_number"`
	Winner         string    `json:"winner"`
	Classification string    `json:"classification"`
	CubeValue      int       `json:"cube_value"`
	Stakes         int       `json:"stakes"`
	Reason         string    `json:"reason"`
	WhiteScore     int       `json:"white_score"`
	RedScore       int       `json:"red_score"`
	EndedAt        time.Time `json:"ended_at"`
}

// MatchEvent is one completed match.
type MatchEvent struct {
	SessionID   string    `json:"session_id"`
	Target      int       `json:"target"`
	Winner      string    `json:"winner"`
	WhiteScore  int       `json:"white_score"`
	RedScore    int       `json:"red_score"`
	GamesPlayed int       `json:"games_played"`
	EndedAt     time.Time `json:"ended_at"`
}

// MoveEvent is one gameplay action row. Kind is the action name
// (roll, move, undo, end_turn, double_offer, ...) and Detail its
// short human-readable argument.
type MoveEvent struct {
	SessionID  string    `json:"session_id"`
	GameNumber int       `json:"game_number"`
	Version    uint64    `json:"version"`
	Color      string    `json:"color"`
	Kind       string    `json:"kind"`
	Detail     string    `json:"detail"`
	PositionID string    `json:"position_id"`
	At         time.Time `json:"at"`
}

// Recorder accepts telemetry. Implementations must return quickly and
// must not fail the caller; delivery problems are logged and dropped.
type Recorder interface {
	RecordMove(ev MoveEvent)
	RecordGame(ev GameEvent)
	RecordMatch(ev MatchEvent)
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordMove(MoveEvent)   {}
func (Nop) RecordGame(GameEvent)   {}
func (Nop) RecordMatch(MatchEvent) {}
func (Nop) Close() error           { return nil }

// Multi fans out to several recorders.
type Multi []Recorder

// NewMulti combines recorders, skipping nils. An empty result still
// satisfies Recorder.
func NewMulti(rs ...Recorder) Multi {
	out := make(Multi, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m Multi) RecordMove(ev MoveEvent) {
	for _, r := range m {
		r.RecordMove(ev)
	}
}

func (m Multi) RecordGame(ev GameEvent) {
	for _, r := range m {
		r.RecordGame(ev)
	}
}

func (m Multi) RecordMatch(ev MatchEvent) {
	for _, r := range m {
		r.RecordMatch(ev)
	}
}

// Close closes every recorder and returns the first failure.
func (m Multi) Close() error {
	var first error
	for _, r := range m {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
