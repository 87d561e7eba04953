// Package store is the persistence gateway: narrow checkpoint
// snapshots of match and game state keyed by session. Writes are
// idempotent per (id, version) so a retried checkpoint is harmless,
// and a stale writer can never clobber a newer snapshot. Backends:
// badger (embedded, the default), postgres, and an in-memory gateway
// for tests.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports a missing snapshot.
var ErrNotFound = errors.New("store: not found")

// GameSnapshot is one game checkpoint. PositionID is the compact board
// codec; the rest restores the turn context around it.
type GameSnapshot struct {
	SessionID      string    `json:"session_id"`
	GameNumber     int       `json:"game_number"`
	Version        uint64    `json:"version"`
	PositionID     string    `json:"position_id"`
	Turn           string    `json:"turn"`
	Dice           []uint8   `json:"dice,omitempty"`
	CubeValue      int       `json:"cube_value"`
	CubeOwner      string    `json:"cube_owner"`
	Crawford       bool      `json:"crawford"`
	Over           bool      `json:"over"`
	Winner         string    `json:"winner,omitempty"`
	Classification string    `json:"classification,omitempty"`
	Stakes         int       `json:"stakes,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	SavedAt        time.Time `json:"saved_at"`
}

// MatchSnapshot is the series-level checkpoint.
type MatchSnapshot struct {
	SessionID    string    `json:"session_id"`
	Target       int       `json:"target"`
	WhiteScore   int       `json:"white_score"`
	RedScore     int       `json:"red_score"`
	GamesPlayed  int       `json:"games_played"`
	Crawford     bool      `json:"crawford"`
	CrawfordDone bool      `json:"crawford_done"`
	Complete     bool      `json:"complete"`
	Winner       string    `json:"winner,omitempty"`
	White        string    `json:"white"`
	Red          string    `json:"red"`
	Version      uint64    `json:"version"`
	SavedAt      time.Time `json:"saved_at"`
}

// ResultRecord is one settled game appended to the match history.
type ResultRecord struct {
	SessionID      string    `json:"session_id"`
	GameNumber     int       `json:"game_number"`
	Winner         string    `json:"winner"`
	Classification string    `json:"classification"`
	CubeValue      int       `json:"cube_value"`
	Stakes         int       `json:"stakes"`
	Reason         string    `json:"reason"`
	EndedAt        time.Time `json:"ended_at"`
}

// Gateway persists checkpoints. Implementations must tolerate repeated
// writes of the same snapshot and ignore writes older than what they
// hold.
type Gateway interface {
	SaveGame(ctx context.Context, snap GameSnapshot) error
	SaveMatch(ctx context.Context, snap MatchSnapshot) error
	LoadGame(ctx context.Context, sessionID string, gameNumber int) (GameSnapshot, error)
	LoadMatch(ctx context.Context, sessionID string) (MatchSnapshot, error)
	AppendResult(ctx context.Context, rec ResultRecord) error
	Results(ctx context.Context, sessionID string) ([]ResultRecord, error)
	Close() error
}
