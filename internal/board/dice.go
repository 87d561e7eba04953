package board

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
)

// Roll is one throw of two dice.
type Roll struct {
	D1 uint8
	D2 uint8
}

// IsDoubles returns true if both dice show the same value.
func (r Roll) IsDoubles() bool {
	return r.D1 == r.D2
}

// Dice returns the die values the roll grants: four copies for
// doubles, otherwise the two values.
func (r Roll) Dice() []uint8 {
	if r.IsDoubles() {
		return []uint8{r.D1, r.D1, r.D1, r.D1}
	}
	return []uint8{r.D1, r.D2}
}

// Higher returns the larger of the two die values.
func (r Roll) Higher() uint8 {
	if r.D1 >= r.D2 {
		return r.D1
	}
	return r.D2
}

// String renders the roll as "6-5".
func (r Roll) String() string {
	return fmt.Sprintf("%d-%d", r.D1, r.D2)
}

// Roller produces single die values.
type Roller interface {
	Die() uint8
}

// RandRoller rolls dice from a seeded PRNG. Safe for concurrent use.
type RandRoller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRoller creates a roller with an explicit seed, for reproducible
// sequences.
func NewRoller(seed int64) *RandRoller {
	return &RandRoller{rng: rand.New(rand.NewSource(seed))}
}

// NewCryptoSeededRoller creates a roller seeded from the OS entropy
// source. This is the production roller.
func NewCryptoSeededRoller() *RandRoller {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		// Entropy read failure leaves us with a zero seed rather than
		// no roller at all.
		return NewRoller(0)
	}
	return NewRoller(int64(binary.LittleEndian.Uint64(buf[:])))
}

// Die returns a uniform value in 1-6.
func (r *RandRoller) Die() uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint8(r.rng.Intn(6)) + 1
}

// ScriptRoller replays a fixed sequence of die values, cycling when
// exhausted. For tests and analysis sessions.
type ScriptRoller struct {
	mu    sync.Mutex
	dice  []uint8
	index int
}

// NewScriptRoller creates a roller that replays the given values.
func NewScriptRoller(dice ...uint8) *ScriptRoller {
	return &ScriptRoller{dice: dice}
}

// Push appends values to the script.
func (s *ScriptRoller) Push(dice ...uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dice = append(s.dice, dice...)
}

// Die returns the next scripted value.
func (s *ScriptRoller) Die() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dice) == 0 {
		return 1
	}
	d := s.dice[s.index%len(s.dice)]
	s.index++
	return d
}

// RollDice throws two dice.
func RollDice(r Roller) Roll {
	return Roll{D1: r.Die(), D2: r.Die()}
}

// OpeningRoll draws one die per color, redrawing doubles until the
// values differ. The color with the higher die moves first and plays
// both values as its opening roll.
func OpeningRoll(r Roller) (Roll, Color) {
	for {
		white, red := r.Die(), r.Die()
		if white == red {
			continue
		}
		roll := Roll{D1: white, D2: red}
		if white > red {
			return roll, White
		}
		return roll, Red
	}
}
