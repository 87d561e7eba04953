// Package book holds the opening plays for the fifteen distinct
// opening rolls. Tied opening rolls are redrawn, so doubles never
// open and the table is complete. Plays are stored in White's frame
// and mirrored for Red; the starting position is mirror-symmetric.
package book

import (
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
)

// play is one checker movement in White's numbering.
type play struct {
	from int
	die  uint8
}

// start is the reference position; the book only answers from here.
var start = board.NewBoard()

// openings maps hi-lo rolls to long-settled match play: made points
// where the roll offers one, otherwise the back-checker run or split.
var openings = map[[2]uint8][]play{
	{2, 1}: {{13, 2}, {24, 1}},
	{3, 1}: {{8, 3}, {6, 1}},
	{3, 2}: {{24, 3}, {13, 2}},
	{4, 1}: {{13, 4}, {24, 1}},
	{4, 2}: {{8, 4}, {6, 2}},
	{4, 3}: {{13, 4}, {13, 3}},
	{5, 1}: {{13, 5}, {24, 1}},
	{5, 2}: {{13, 5}, {13, 2}},
	{5, 3}: {{8, 5}, {6, 3}},
	{5, 4}: {{24, 4}, {13, 5}},
	{6, 1}: {{13, 6}, {8, 1}},
	{6, 2}: {{24, 6}, {13, 2}},
	{6, 3}: {{24, 6}, {13, 3}},
	{6, 4}: {{24, 6}, {13, 4}},
	{6, 5}: {{24, 6}, {18, 5}},
}

// Opening returns the book play for the roll, in the mover's absolute
// frame and in apply order. It returns nil when the position is not
// the start or the roll is not covered; the caller falls back to its
// own planning.
func Opening(b *board.Board, c board.Color, dice []uint8) []board.Move {
	if len(dice) != 2 || !b.Equal(start) {
		return nil
	}
	hi, lo := dice[0], dice[1]
	if lo > hi {
		hi, lo = lo, hi
	}
	plays, ok := openings[[2]uint8{hi, lo}]
	if !ok {
		return nil
	}
	out := make([]board.Move, len(plays))
	for i, p := range plays {
		from := p.from
		to := from - int(p.die)
		if c == board.Red {
			from = 25 - from
			to = 25 - to
		}
		out[i] = board.NewMove(from, to, p.die)
	}
	return out
}
