package bot

import (
	"context"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/book"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/engine"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/race"
)

// Greedy plays the highest-scoring single move at each step: hits
// first, then bear-offs, then point-making, then raw pip progress. It
// never offers the cube and takes doubles unless clearly losing the
// race.
type Greedy struct{}

// NewGreedy creates the greedy opponent.
func NewGreedy() *Greedy {
	return &Greedy{}
}

func (g *Greedy) ID() string   { return "greedy" }
func (g *Greedy) Name() string { return "Greedy" }

// ChooseMoves plans a maximal turn on the bot's board copy. When the
// bot wins the opening roll it plays straight from the book.
func (g *Greedy) ChooseMoves(ctx context.Context, v View) []board.Move {
	if ctx.Err() != nil {
		return nil
	}
	if plan := book.Opening(v.Board, v.Color, v.Dice); plan != nil {
		return plan
	}
	b := v.Board
	dice := append([]uint8(nil), v.Dice...)
	var plan []board.Move

	for len(dice) > 0 {
		if ctx.Err() != nil {
			return plan
		}
		rem := engine.MaxUsableDice(b, v.Color, dice)
		if rem == 0 {
			break
		}
		candidates := largerDiePreferred(preservingMoves(b, v.Color, dice, rem), dice, rem)
		if len(candidates) == 0 {
			break
		}

		best := candidates[0]
		bestScore := g.score(b, v.Color, best)
		for _, m := range candidates[1:] {
			if s := g.score(b, v.Color, m); s > bestScore {
				best, bestScore = m, s
			}
		}

		b.Apply(best, v.Color)
		dice = withoutDie(dice, best.Die())
		plan = append(plan, best)
	}
	return plan
}

// score ranks one move on the current board.
func (g *Greedy) score(b *board.Board, c board.Color, m board.Move) int {
	s := int(m.Die())
	switch {
	case m.IsBearOff():
		s += 80
	case b.IsBlot(m.To(), c.Other()):
		s += 100
	case b.At(m.To()).Color == c && b.At(m.To()).Count == 1:
		// Covering an own blot makes a point.
		s += 40
	case b.At(m.To()).Color == c:
		s += 10
	}
	if m.IsBarEntry() {
		s += 60
	}
	return s
}

// AcceptDouble takes on effective-count terms once contact is broken,
// otherwise takes unless trailing the raw race by more than a quarter.
func (g *Greedy) AcceptDouble(ctx context.Context, v View) bool {
	if race.Disengaged(v.Board) {
		return race.Take(v.Board, v.Color)
	}
	self := v.Board.PipCount(v.Color)
	opp := v.Board.PipCount(v.Color.Other())
	return self*4 <= opp*5
}
