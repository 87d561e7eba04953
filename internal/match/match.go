package match

import (
	"errors"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
)

// DefaultTargetScore is the standard match length.
const DefaultTargetScore = 5

// ErrMatchOver rejects play against a completed match.
var ErrMatchOver = errors.New("match is already decided")

// ErrBadTarget rejects invalid match lengths.
var ErrBadTarget = errors.New("target score must be a positive odd number")

// Match tracks a first-to-N points series of games between the two
// colors, including Crawford bookkeeping. The Crawford rule freezes
// the cube for exactly one game: the first game after either score
// reaches target-1.
type Match struct {
	Target      int
	Score       [2]int
	GamesPlayed int

	// Crawford is true while the current game is the Crawford game.
	Crawford bool
	// CrawfordDone is set once the Crawford game has been played.
	CrawfordDone bool

	Complete bool
	Winner   board.Color
}

// NewMatch creates a match to the given target score.
func NewMatch(target int) (*Match, error) {
	if target <= 0 || target%2 == 0 {
		return nil, ErrBadTarget
	}
	m := &Match{Target: target}
	// In a one-point match both players start at match point, so the
	// single game is played Crawford.
	if target == 1 {
		m.Crawford = true
	}
	return m, nil
}

// ApplyResult settles a finished game into the match score and rolls
// the Crawford state forward. Forfeit reasons (abandonment, timeout)
// decide the whole match regardless of score.
func (m *Match) ApplyResult(r GameResult) error {
	if m.Complete {
		return ErrMatchOver
	}

	m.Score[r.Winner] += r.Stakes
	m.GamesPlayed++

	if m.Crawford {
		m.Crawford = false
		m.CrawfordDone = true
	}

	forfeit := r.Reason == ReasonAbandoned || r.Reason == ReasonTimeout
	if forfeit || m.Score[r.Winner] >= m.Target {
		m.Complete = true
		m.Winner = r.Winner
		return nil
	}

	// The first game after either player reaches match point is the
	// Crawford game.
	if !m.CrawfordDone && (m.Score[board.White] == m.Target-1 || m.Score[board.Red] == m.Target-1) {
		m.Crawford = true
	}
	return nil
}

// Leader returns the color currently ahead, or NoColor when tied.
func (m *Match) Leader() board.Color {
	switch {
	case m.Score[board.White] > m.Score[board.Red]:
		return board.White
	case m.Score[board.Red] > m.Score[board.White]:
		return board.Red
	default:
		return board.NoColor
	}
}

// AwayScores returns how many points each color still needs.
func (m *Match) AwayScores() (white, red int) {
	return m.Target - m.Score[board.White], m.Target - m.Score[board.Red]
}

// Copy returns a copy of the match state.
func (m *Match) Copy() *Match {
	nm := *m
	return &nm
}
