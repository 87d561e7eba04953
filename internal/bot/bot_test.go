package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/engine"
)

// replayPlan feeds a planned turn through a live engine; every move
// must be accepted and the turn must close without a maximality
// rejection.
func replayPlan(t *testing.T, b *board.Board, c board.Color, dice []uint8, plan []board.Move) {
	t.Helper()
	e := engine.NewGame(board.NewScriptRoller(), false)
	require.NoError(t, e.SetForAnalysis(b, c, dice))
	for _, m := range plan {
		require.NoError(t, e.Apply(m, c), "replaying %s", m)
	}
	require.NoError(t, e.EndTurn(c))
}

func TestGreedyPlansMaximalTurn(t *testing.T) {
	g := NewGreedy()
	b := board.NewBoard()

	plan := g.ChooseMoves(context.Background(), View{
		Board: b.Copy(),
		Color: board.White,
		Dice:  []uint8{6, 5},
	})
	require.Len(t, plan, 2)
	replayPlan(t, b, board.White, []uint8{6, 5}, plan)
}

func TestGreedyOpensFromBook(t *testing.T) {
	g := NewGreedy()
	plan := g.ChooseMoves(context.Background(), View{
		Board: board.NewBoard(),
		Color: board.White,
		Dice:  []uint8{6, 5},
	})
	require.Len(t, plan, 2)
	assert.Equal(t, board.NewMove(24, 18, 6), plan[0])
	assert.Equal(t, board.NewMove(18, 13, 5), plan[1])
}

func TestGreedyPlaysDoubles(t *testing.T) {
	g := NewGreedy()
	b := board.NewBoard()

	plan := g.ChooseMoves(context.Background(), View{
		Board: b.Copy(),
		Color: board.Red,
		Dice:  []uint8{3, 3, 3, 3},
	})
	require.Len(t, plan, 4)
	replayPlan(t, b, board.Red, []uint8{3, 3, 3, 3}, plan)
}

func TestGreedyPrefersHit(t *testing.T) {
	b := board.NewBoard()
	b.Points[1] = board.Point{Color: board.Red, Count: 1}
	b.Points[5] = board.Point{Color: board.Red, Count: 1}

	g := NewGreedy()
	plan := g.ChooseMoves(context.Background(), View{
		Board: b.Copy(),
		Color: board.White,
		Dice:  []uint8{3},
	})
	require.Len(t, plan, 1)

	hit, err := board.ParseMove("8/5", board.White)
	require.NoError(t, err)
	assert.Equal(t, hit, plan[0])
}

func TestGreedyPrefersBearOff(t *testing.T) {
	b := &board.Board{}
	b.Points[6] = board.Point{Color: board.White, Count: 2}
	b.Points[5] = board.Point{Color: board.White, Count: 2}
	b.Points[4] = board.Point{Color: board.White, Count: 2}
	b.Points[3] = board.Point{Color: board.White, Count: 3}
	b.Points[2] = board.Point{Color: board.White, Count: 3}
	b.Points[1] = board.Point{Color: board.White, Count: 3}
	b.Points[13] = board.Point{Color: board.Red, Count: 15}

	g := NewGreedy()
	plan := g.ChooseMoves(context.Background(), View{
		Board: b.Copy(),
		Color: board.White,
		Dice:  []uint8{6, 5},
	})
	require.Len(t, plan, 2)
	assert.True(t, plan[0].IsBearOff(), "first move %s should bear off", plan[0])
	assert.True(t, plan[1].IsBearOff(), "second move %s should bear off", plan[1])
	replayPlan(t, b, board.White, []uint8{6, 5}, plan)
}

func TestGreedyForcedLargerDie(t *testing.T) {
	// Only one die is playable and the two differ: the plan must spend
	// the larger one.
	b := &board.Board{}
	b.Points[24] = board.Point{Color: board.White, Count: 1}
	b.Points[1] = board.Point{Color: board.White, Count: 14}
	b.Points[13] = board.Point{Color: board.Red, Count: 2}
	b.Points[2] = board.Point{Color: board.Red, Count: 13}

	g := NewGreedy()
	plan := g.ChooseMoves(context.Background(), View{
		Board: b.Copy(),
		Color: board.White,
		Dice:  []uint8{6, 5},
	})
	require.Len(t, plan, 1)
	assert.Equal(t, uint8(6), plan[0].Die())
	replayPlan(t, b, board.White, []uint8{6, 5}, plan)
}

func TestGreedyDance(t *testing.T) {
	b := &board.Board{}
	b.Bar[board.White] = 1
	b.Points[13] = board.Point{Color: board.White, Count: 14}
	b.Points[22] = board.Point{Color: board.Red, Count: 2}
	b.Points[20] = board.Point{Color: board.Red, Count: 2}
	b.Points[12] = board.Point{Color: board.Red, Count: 11}

	g := NewGreedy()
	plan := g.ChooseMoves(context.Background(), View{
		Board: b.Copy(),
		Color: board.White,
		Dice:  []uint8{3, 5},
	})
	assert.Empty(t, plan)
}

func TestGreedyAcceptDouble(t *testing.T) {
	// Even race from the starting position: take.
	even := View{Board: board.NewBoard(), Color: board.White}
	assert.True(t, NewGreedy().AcceptDouble(context.Background(), even))

	// Hopelessly behind in the race: pass.
	b := &board.Board{}
	b.Points[24] = board.Point{Color: board.White, Count: 15}
	b.Points[23] = board.Point{Color: board.Red, Count: 15}
	behind := View{Board: b, Color: board.White}
	assert.False(t, NewGreedy().AcceptDouble(context.Background(), behind))
}

func TestGreedyRaceCubeDecisions(t *testing.T) {
	// Disengaged races decide on effective counts: 82 against 75 is a
	// take, 87 against 75 is a pass.
	mk := func(extra int) *board.Board {
		b := &board.Board{}
		b.Points[19] = board.Point{Color: board.Red, Count: 5}
		b.Points[20] = board.Point{Color: board.Red, Count: 5}
		b.Points[21] = board.Point{Color: board.Red, Count: 5}
		b.Points[6] = board.Point{Color: board.White, Count: 5}
		b.Points[5] = board.Point{Color: board.White, Count: 5}
		b.Points[4] = board.Point{Color: board.White, Count: 4}
		b.Points[extra] = board.Point{Color: board.White, Count: 1}
		return b
	}
	g := NewGreedy()
	assert.True(t, g.AcceptDouble(context.Background(), View{Board: mk(11), Color: board.White}))
	assert.False(t, g.AcceptDouble(context.Background(), View{Board: mk(16), Color: board.White}))
}

func TestRandomPlansReplayCleanly(t *testing.T) {
	rolls := [][]uint8{{6, 5}, {3, 1}, {4, 4, 4, 4}, {2, 6}}
	for seed := int64(1); seed <= 5; seed++ {
		r := NewRandom(seed)
		for _, dice := range rolls {
			b := board.NewBoard()
			plan := r.ChooseMoves(context.Background(), View{
				Board: b.Copy(),
				Color: board.White,
				Dice:  append([]uint8(nil), dice...),
			})
			require.Len(t, plan, len(dice), "seed %d dice %v", seed, dice)
			replayPlan(t, b, board.White, dice, plan)
		}
	}
}

func TestChooseMovesHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := NewGreedy().ChooseMoves(ctx, View{
		Board: board.NewBoard(),
		Color: board.White,
		Dice:  []uint8{6, 5},
	})
	assert.Empty(t, plan)
}

func TestRegistry(t *testing.T) {
	r := Builtin()

	g, ok := r.Get("greedy")
	require.True(t, ok)
	assert.Equal(t, "Greedy", g.Name())

	_, ok = r.Get("random")
	assert.True(t, ok)
	_, ok = r.Get("stockfish")
	assert.False(t, ok)

	assert.Equal(t, []string{"greedy", "random"}, r.IDs())

	d, ok := r.Get(DefaultID)
	require.True(t, ok)
	assert.Equal(t, "greedy", d.ID())
}
