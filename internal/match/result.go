package match

import (
	"fmt"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
)

// Classification grades a won game by how far behind the loser was.
type Classification uint8

const (
	// Normal: the loser has borne off at least one checker.
	Normal Classification = iota
	// Gammon: the loser has borne off nothing.
	Gammon
	// Backgammon: the loser has borne off nothing and still has a
	// checker on the bar or in the winner's home board.
	Backgammon
)

// String returns the classification name.
func (c Classification) String() string {
	switch c {
	case Normal:
		return "Normal"
	case Gammon:
		return "Gammon"
	case Backgammon:
		return "Backgammon"
	default:
		return fmt.Sprintf("Classification(%d)", uint8(c))
	}
}

// Multiplier returns the stake multiplier: 1, 2 or 3.
func (c Classification) Multiplier() int {
	switch c {
	case Gammon:
		return 2
	case Backgammon:
		return 3
	default:
		return 1
	}
}

// EndReason records how a game reached its terminal state.
type EndReason uint8

const (
	ReasonBorneOff EndReason = iota
	ReasonDeclined
	ReasonAbandoned
	ReasonTimeout
)

// String returns the end reason name.
func (r EndReason) String() string {
	switch r {
	case ReasonBorneOff:
		return "borne-off"
	case ReasonDeclined:
		return "declined"
	case ReasonAbandoned:
		return "abandoned"
	case ReasonTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("EndReason(%d)", uint8(r))
	}
}

// Classify grades a finished game from the final board. winner is the
// color that bore off all fifteen checkers.
func Classify(b *board.Board, winner board.Color) Classification {
	loser := winner.Other()
	if b.Off[loser] > 0 {
		return Normal
	}
	if b.Bar[loser] > 0 || b.HasAnyInHomeOf(loser, winner) {
		return Backgammon
	}
	return Gammon
}

// GameResult is the settled outcome of a single game.
type GameResult struct {
	Winner         board.Color
	Classification Classification
	CubeValue      int
	Stakes         int
	Reason         EndReason
}

// NewResult builds a result for a game won on the board: stakes are
// the classification multiplier times the cube value.
func NewResult(winner board.Color, cls Classification, cubeValue int) GameResult {
	return GameResult{
		Winner:         winner,
		Classification: cls,
		CubeValue:      cubeValue,
		Stakes:         cls.Multiplier() * cubeValue,
		Reason:         ReasonBorneOff,
	}
}

// ForfeitResult builds a result for a game lost by abandonment or
// timeout. The forfeiting player's opponent wins a Normal game at the
// current cube value; the match layer then awards the match itself.
func ForfeitResult(loser board.Color, cubeValue int, reason EndReason) GameResult {
	return GameResult{
		Winner:         loser.Other(),
		Classification: Normal,
		CubeValue:      cubeValue,
		Stakes:         cubeValue,
		Reason:         reason,
	}
}
