package engine

import "github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"

// movesForDie appends every legal single move for one die value. With
// checkers on the bar only the entry move is considered. Bear-offs
// allow the exact die, or a larger die from the furthest-back checker
// once all fifteen are home.
func movesForDie(b *board.Board, c board.Color, die uint8, ml *board.MoveList) {
	if b.Bar[c] > 0 {
		to := b.EntryPoint(c, die)
		if b.CanLand(to, c) {
			ml.Add(board.NewMove(board.BarPos, to, die))
		}
		return
	}

	home := b.AllInHome(c)
	furthest := 0
	if home {
		furthest = b.FurthestFromHome(c)
	}

	for from := 1; from <= 24; from++ {
		pt := b.At(from)
		if pt.Color != c || pt.Count == 0 {
			continue
		}

		to := from + int(die)*c.Direction()
		if to >= 1 && to <= 24 {
			if b.CanLand(to, c) {
				ml.Add(board.NewMove(from, to, die))
			}
			continue
		}

		// Off the end of the board: a bear-off candidate.
		if !home {
			continue
		}
		need := board.BearOffDistance(from, c)
		if int(die) == need || (int(die) > need && from == furthest) {
			off := board.OffWhite
			if c == board.Red {
				off = board.OffRed
			}
			ml.Add(board.NewMove(from, off, die))
		}
	}
}

// generateMoves appends the legal moves for every distinct die value.
func generateMoves(b *board.Board, c board.Color, dice []uint8, ml *board.MoveList) {
	var seen [7]bool
	for _, d := range dice {
		if seen[d] {
			continue
		}
		seen[d] = true
		movesForDie(b, c, d, ml)
	}
}

// canUseDie reports whether at least one legal move exists for the die.
func canUseDie(b *board.Board, c board.Color, die uint8) bool {
	ml := board.NewMoveList()
	movesForDie(b, c, die, ml)
	return ml.Len() > 0
}

// withoutDie returns dice minus one instance of d.
func withoutDie(dice []uint8, d uint8) []uint8 {
	out := make([]uint8, 0, len(dice))
	removed := false
	for _, v := range dice {
		if !removed && v == d {
			removed = true
			continue
		}
		out = append(out, v)
	}
	return out
}

// maxUsableDice searches every move sequence from this state and returns
// the largest number of dice any of them consumes. The board is mutated
// during the search and restored before returning. Depth is bounded by
// the dice count (at most four), so the search stays small.
func maxUsableDice(b *board.Board, c board.Color, dice []uint8) int {
	if len(dice) == 0 {
		return 0
	}
	best := 0
	var seen [7]bool
	ml := board.NewMoveList()
	for _, d := range dice {
		if seen[d] {
			continue
		}
		seen[d] = true
		ml.Clear()
		movesForDie(b, c, d, ml)
		rest := withoutDie(dice, d)
		for i := 0; i < ml.Len(); i++ {
			u := b.Apply(ml.Get(i), c)
			n := 1 + maxUsableDice(b, c, rest)
			b.Revert(u, c)
			if n > best {
				best = n
				if best == len(dice) {
					return best
				}
			}
		}
	}
	return best
}

// LegalMoves returns every legal single-die move for color c on b with
// the given remaining dice. Pure helper for planners that search ahead
// on their own board copies; Engine.ValidMoves serves live games.
func LegalMoves(b *board.Board, c board.Color, dice []uint8) []board.Move {
	ml := board.NewMoveList()
	generateMoves(b, c, dice, ml)
	out := make([]board.Move, ml.Len())
	copy(out, ml.Slice())
	return out
}

// MaxUsableDice returns the largest number of the given dice that any
// legal sequence from this position can consume. The board is left
// unchanged.
func MaxUsableDice(b *board.Board, c board.Color, dice []uint8) int {
	return maxUsableDice(b, c, dice)
}
