package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/engine"
)

// Every covered roll must produce a turn the rules engine accepts end
// to end, for both seats.
func TestOpeningPlaysAreLegal(t *testing.T) {
	for hi := uint8(2); hi <= 6; hi++ {
		for lo := uint8(1); lo < hi; lo++ {
			for _, c := range []board.Color{board.White, board.Red} {
				plan := Opening(board.NewBoard(), c, []uint8{hi, lo})
				require.Len(t, plan, 2, "roll %d-%d for %s", hi, lo, c)

				e := engine.NewGame(board.NewScriptRoller(), false)
				require.NoError(t, e.SetForAnalysis(board.NewBoard(), c, []uint8{hi, lo}))
				for _, m := range plan {
					require.NoError(t, e.Apply(m, c), "roll %d-%d for %s: %s", hi, lo, c, m)
				}
				require.NoError(t, e.EndTurn(c), "roll %d-%d for %s", hi, lo, c)
			}
		}
	}
}

func TestLoversLeap(t *testing.T) {
	plan := Opening(board.NewBoard(), board.White, []uint8{6, 5})
	require.Len(t, plan, 2)
	assert.Equal(t, board.NewMove(24, 18, 6), plan[0])
	assert.Equal(t, board.NewMove(18, 13, 5), plan[1])
}

func TestPointMakersMirrorForRed(t *testing.T) {
	// Red's 3-1 makes its own five point, the 20.
	plan := Opening(board.NewBoard(), board.Red, []uint8{1, 3})
	require.Len(t, plan, 2)
	assert.Equal(t, board.NewMove(17, 20, 3), plan[0])
	assert.Equal(t, board.NewMove(19, 20, 1), plan[1])
}

func TestOffBookReturnsNil(t *testing.T) {
	b := board.NewBoard()

	mid := b.Copy()
	mid.Apply(board.NewMove(24, 18, 6), board.White)
	assert.Nil(t, Opening(mid, board.Red, []uint8{3, 1}))

	assert.Nil(t, Opening(b, board.White, []uint8{4, 4, 4, 4}))
	assert.Nil(t, Opening(b, board.White, []uint8{4, 4}))
}
