package board

import (
	"fmt"
	"strconv"
	"strings"
)

// Move encodes a single-die checker move in 16 bits:
// bits 0-4:   from position (0=bar, 1-24)
// bits 5-9:   to position (0=White off, 1-24, 25=Red off)
// bits 10-12: die value (1-6)
// A real move always carries a nonzero die, so the zero value is free
// to mean "no move".
type Move uint16

// NoMove represents the absence of a move.
const NoMove Move = 0

// NewMove creates a move of a checker from from to to using die.
func NewMove(from, to int, die uint8) Move {
	return Move(from) | Move(to)<<5 | Move(die)<<10
}

// From returns the origin position (0 means the bar).
func (m Move) From() int {
	return int(m & 0x1F)
}

// To returns the destination position (0 or 25 mean borne off).
func (m Move) To() int {
	return int((m >> 5) & 0x1F)
}

// Die returns the die value the move consumes.
func (m Move) Die() uint8 {
	return uint8((m >> 10) & 0x7)
}

// IsBarEntry returns true if the move enters a checker from the bar.
func (m Move) IsBarEntry() bool {
	return m != NoMove && m.From() == BarPos
}

// IsBearOff returns true if the move bears a checker off the board.
func (m Move) IsBearOff() bool {
	if m == NoMove {
		return false
	}
	to := m.To()
	return (to == OffWhite && m.From() != BarPos) || to == OffRed
}

// String renders the move in standard notation: "24/18", "bar/20",
// "6/off". Hits are not marked; use Format with a board for that.
func (m Move) String() string {
	if m == NoMove {
		return "-"
	}
	from := strconv.Itoa(m.From())
	if m.IsBarEntry() {
		from = "bar"
	}
	to := strconv.Itoa(m.To())
	if m.IsBearOff() {
		to = "off"
	}
	return from + "/" + to
}

// Format renders the move with a hit marker ("13/7*") when the
// destination holds an opposing blot on b.
func (m Move) Format(b *Board, c Color) string {
	s := m.String()
	if m == NoMove || m.IsBearOff() {
		return s
	}
	if b.IsBlot(m.To(), c.Other()) {
		s += "*"
	}
	return s
}

// ParseMove parses standard notation for color c: "24/18", "bar/20",
// "6/off". The die is inferred from the pip distance, so overshoot
// bear-offs need an explicit die suffix such as "2/off(5)".
func ParseMove(s string, c Color) (Move, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "*")

	var explicit uint8
	if i := strings.IndexByte(s, '('); i >= 0 {
		j := strings.IndexByte(s, ')')
		if j < i {
			return NoMove, fmt.Errorf("invalid move string: %s", s)
		}
		d, err := strconv.Atoi(s[i+1 : j])
		if err != nil || d < 1 || d > 6 {
			return NoMove, fmt.Errorf("invalid die in move string: %s", s)
		}
		explicit = uint8(d)
		s = s[:i]
	}

	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return NoMove, fmt.Errorf("invalid move string: %s", s)
	}

	var from int
	if parts[0] == "bar" {
		from = BarPos
	} else {
		v, err := strconv.Atoi(parts[0])
		if err != nil || v < 1 || v > 24 {
			return NoMove, fmt.Errorf("invalid origin: %s", parts[0])
		}
		from = v
	}

	var to int
	if parts[1] == "off" {
		if c == White {
			to = OffWhite
		} else {
			to = OffRed
		}
	} else {
		v, err := strconv.Atoi(parts[1])
		if err != nil || v < 1 || v > 24 {
			return NoMove, fmt.Errorf("invalid destination: %s", parts[1])
		}
		to = v
	}

	die := explicit
	if die == 0 {
		switch {
		case from == BarPos:
			if c == White {
				die = uint8(25 - to)
			} else {
				die = uint8(to)
			}
		case parts[1] == "off":
			die = uint8(BearOffDistance(from, c))
		default:
			d := from - to
			if d < 0 {
				d = -d
			}
			die = uint8(d)
		}
	}
	if die < 1 || die > 6 {
		return NoMove, fmt.Errorf("move %s implies die %d", s, die)
	}
	return NewMove(from, to, die), nil
}

// MoveList is a fixed-size list of moves to avoid allocations.
type MoveList struct {
	moves [64]Move
	count int
}

// NewMoveList creates an empty move list.
func NewMoveList() *MoveList {
	return &MoveList{}
}

// Add adds a move to the list.
func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

// Len returns the number of moves in the list.
func (ml *MoveList) Len() int {
	return ml.count
}

// Get returns the move at index i.
func (ml *MoveList) Get(i int) Move {
	return ml.moves[i]
}

// Clear clears the list.
func (ml *MoveList) Clear() {
	ml.count = 0
}

// Contains returns true if the list contains the move.
func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i] == m {
			return true
		}
	}
	return false
}

// Slice returns the moves as a slice backed by the list.
func (ml *MoveList) Slice() []Move {
	return ml.moves[:ml.count]
}

// UndoInfo stores what is needed to revert an applied move.
type UndoInfo struct {
	Move Move
	Hit  bool
}
