package engine

import (
	"testing"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
)

func TestMaxUsableDiceFromStart(t *testing.T) {
	b := board.NewBoard()

	if got := MaxUsableDice(b, board.White, []uint8{6, 5}); got != 2 {
		t.Errorf("opening 6-5 = %d usable, want 2", got)
	}
	if got := MaxUsableDice(b, board.Red, []uint8{3, 1}); got != 2 {
		t.Errorf("opening 3-1 = %d usable, want 2", got)
	}
	if got := MaxUsableDice(b, board.White, []uint8{4, 4, 4, 4}); got != 4 {
		t.Errorf("opening 4-4 = %d usable, want 4", got)
	}

	after := b.Copy()
	if !after.Equal(b) {
		t.Error("search mutated the board")
	}
}

func TestMaxUsableDiceForcedSingle(t *testing.T) {
	// Either die moves the runner off 24, but walls on 13 stop the
	// second die in both orders.
	b := &board.Board{}
	b.Points[24] = board.Point{Color: board.White, Count: 1}
	b.Points[1] = board.Point{Color: board.White, Count: 14}
	b.Points[13] = board.Point{Color: board.Red, Count: 2}
	b.Points[2] = board.Point{Color: board.Red, Count: 13}

	if got := MaxUsableDice(b, board.White, []uint8{6, 5}); got != 1 {
		t.Errorf("max usable = %d, want 1", got)
	}
	if !canUseDie(b, board.White, 6) || !canUseDie(b, board.White, 5) {
		t.Error("both dice should be individually playable")
	}
}

func TestMaxUsableDiceDance(t *testing.T) {
	// White on the bar with both entry points walled off.
	b := &board.Board{}
	b.Bar[board.White] = 1
	b.Points[13] = board.Point{Color: board.White, Count: 14}
	b.Points[22] = board.Point{Color: board.Red, Count: 2}
	b.Points[20] = board.Point{Color: board.Red, Count: 2}
	b.Points[12] = board.Point{Color: board.Red, Count: 11}

	if got := MaxUsableDice(b, board.White, []uint8{3, 5}); got != 0 {
		t.Errorf("max usable = %d, want 0 on a dance", got)
	}
}

func TestMaxUsableDicePartialDoubles(t *testing.T) {
	// Two checkers left: double 6s bear both off and then run dry.
	b := &board.Board{}
	b.Points[2] = board.Point{Color: board.White, Count: 1}
	b.Points[1] = board.Point{Color: board.White, Count: 1}
	b.Off[board.White] = 13
	b.Points[13] = board.Point{Color: board.Red, Count: 15}

	if got := MaxUsableDice(b, board.White, []uint8{6, 6, 6, 6}); got != 2 {
		t.Errorf("max usable = %d, want 2", got)
	}
}

func TestLegalMovesBarEntryOnly(t *testing.T) {
	b := &board.Board{}
	b.Bar[board.White] = 1
	b.Points[13] = board.Point{Color: board.White, Count: 14}
	b.Points[20] = board.Point{Color: board.Red, Count: 2}
	b.Points[12] = board.Point{Color: board.Red, Count: 13}

	// Die 3 enters on 22, die 5 is walled off on 20.
	moves := LegalMoves(b, board.White, []uint8{3, 5})
	if len(moves) != 1 {
		t.Fatalf("moves = %v, want the single entry", moves)
	}
	if !moves[0].IsBarEntry() || moves[0].To() != 22 || moves[0].Die() != 3 {
		t.Errorf("move = %v, want bar/22 with die 3", moves[0])
	}
}

func TestLegalMovesDeduplicatesDoubles(t *testing.T) {
	b := board.NewBoard()

	single := LegalMoves(b, board.White, []uint8{4})
	doubles := LegalMoves(b, board.White, []uint8{4, 4, 4, 4})
	if len(single) != len(doubles) {
		t.Errorf("doubles list %d moves, single die lists %d", len(doubles), len(single))
	}
}
