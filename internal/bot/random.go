package bot

import (
	"context"
	"math/rand"
	"sync"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/engine"
)

// Random plays a uniformly chosen legal move at each step, staying
// within maximal sequences. Mostly useful as a sparring partner and in
// tests.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates the random opponent with a fixed seed.
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) ID() string   { return "random" }
func (r *Random) Name() string { return "Random" }

func (r *Random) intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

// ChooseMoves plans a maximal turn with uniformly random picks.
func (r *Random) ChooseMoves(ctx context.Context, v View) []board.Move {
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
		m := candidates[r.intn(len(candidates))]
		b.Apply(m, v.Color)
		dice = withoutDie(dice, m.Die())
		plan = append(plan, m)
	}
	return plan
}

// AcceptDouble takes three out of four offers.
func (r *Random) AcceptDouble(ctx context.Context, v View) bool {
	return r.intn(4) != 0
}
