// Package race evaluates pure races: positions with no remaining
// contact, where the game is a footrace to bear off. Cube decisions
// in a race reduce to comparing effective pip counts, so the bots
// lean on this instead of their positional heuristics once the sides
// disengage.
package race

import (
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
)

// Disengaged reports whether the sides can no longer interact: both
// bars empty and every White checker already past every Red checker.
func Disengaged(b *board.Board) bool {
	if b.Bar[board.White] > 0 || b.Bar[board.Red] > 0 {
		return false
	}
	maxWhite, minRed := 0, 25
	for p := 1; p <= 24; p++ {
		pt := b.At(p)
		if pt.Empty() {
			continue
		}
		if pt.Color == board.White && p > maxWhite {
			maxWhite = p
		}
		if pt.Color == board.Red && p < minRed {
			minRed = p
		}
	}
	return maxWhite < minRed
}

// Adjusted returns c's pip count with bear-off wastage added: two per
// spare checker on the ace point, one per spare on the two and three
// points, and one for each empty home point from four to six. Deep
// anchors waste rolls at the end of a race; raw pips understate them.
func Adjusted(b *board.Board, c board.Color) int {
	count := b.PipCount(c)
	for dist := 1; dist <= 6; dist++ {
		p := homePoint(c, dist)
		pt := b.At(p)
		n := 0
		if pt.Color == c {
			n = int(pt.Count)
		}
		switch {
		case dist == 1 && n > 1:
			count += 2 * (n - 1)
		case (dist == 2 || dist == 3) && n > 1:
			count += n - 1
		case dist >= 4 && n == 0:
			count++
		}
	}
	return count
}

// Take reports whether taker should accept a double in a pure race.
// The doubler is on roll; the trailer can take while within twelve
// percent of the doubler's effective count.
func Take(b *board.Board, taker board.Color) bool {
	t := Adjusted(b, taker)
	d := Adjusted(b, taker.Other())
	return 100*t <= 112*d
}

// ShouldDouble reports whether the side on roll has a big enough race
// lead to offer: eight percent up on effective counts.
func ShouldDouble(b *board.Board, onRoll board.Color) bool {
	self := Adjusted(b, onRoll)
	opp := Adjusted(b, onRoll.Other())
	return 100*opp >= 108*self
}

// homePoint maps a bear-off distance (1..6) to the absolute point for
// c: White bears off toward 1, Red toward 24.
func homePoint(c board.Color, dist int) int {
	if c == board.White {
		return dist
	}
	return 25 - dist
}
