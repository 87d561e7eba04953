package board

import (
	"fmt"
	"strings"
)

// Board position labels. Points are numbered 1-24. Position 0 doubles as
// the bar label on the from side and White's bear-off target on the to
// side; 25 is Red's bear-off target.
const (
	BarPos   = 0
	OffWhite = 0
	OffRed   = 25
)

// CheckersPerColor is the number of checkers each color owns.
const CheckersPerColor = 15

// Point is the occupancy of a single board point.
type Point struct {
	Color Color
	Count uint8
}

// Empty returns true if no checker sits on the point.
func (p Point) Empty() bool {
	return p.Count == 0
}

// Board represents a complete backgammon board: 24 points plus the bar
// and borne-off trays for both colors. Points is indexed 1-24; index 0
// is unused. White travels 24 toward 1, Red travels 1 toward 24.
type Board struct {
	Points [25]Point
	Bar    [2]uint8
	Off    [2]uint8
}

// NewBoard creates the standard starting position.
func NewBoard() *Board {
	b := &Board{}
	b.Setup()
	return b
}

// Setup resets the board to the standard starting position:
// White 24(2) 13(5) 8(3) 6(5), Red 1(2) 12(5) 17(3) 19(5).
func (b *Board) Setup() {
	*b = Board{}
	b.Points[24] = Point{White, 2}
	b.Points[13] = Point{White, 5}
	b.Points[8] = Point{White, 3}
	b.Points[6] = Point{White, 5}
	b.Points[1] = Point{Red, 2}
	b.Points[12] = Point{Red, 5}
	b.Points[17] = Point{Red, 3}
	b.Points[19] = Point{Red, 5}
}

// Copy creates a deep copy of the board.
func (b *Board) Copy() *Board {
	nb := *b
	return &nb
}

// Equal reports whether two boards hold the same position.
func (b *Board) Equal(other *Board) bool {
	return *b == *other
}

// At returns the occupancy of point p (1-24).
func (b *Board) At(p int) Point {
	return b.Points[p]
}

// CanLand returns true if color c may land on point p: the point is
// empty, owned by c, or holds a single opposing blot.
func (b *Board) CanLand(p int, c Color) bool {
	pt := b.Points[p]
	return pt.Count == 0 || pt.Color == c || pt.Count == 1
}

// IsBlot returns true if point p holds exactly one checker of color c.
func (b *Board) IsBlot(p int, c Color) bool {
	pt := b.Points[p]
	return pt.Count == 1 && pt.Color == c
}

// EntryPoint returns the point color c enters on from the bar with die d:
// 25-d for White, d for Red.
func (b *Board) EntryPoint(c Color, die uint8) int {
	if c == White {
		return 25 - int(die)
	}
	return int(die)
}

// homeRange bounds the home board of a color.
// White's home is points 1-6, Red's is 19-24.
func homeRange(c Color) (int, int) {
	if c == White {
		return 1, 6
	}
	return 19, 24
}

// InHome returns true if point p lies inside c's home board.
func InHome(p int, c Color) bool {
	lo, hi := homeRange(c)
	return p >= lo && p <= hi
}

// AllInHome returns true if every checker of color c still on the board
// sits inside c's home board and none are on the bar.
func (b *Board) AllInHome(c Color) bool {
	if b.Bar[c] > 0 {
		return false
	}
	lo, hi := homeRange(c)
	for p := 1; p <= 24; p++ {
		if p >= lo && p <= hi {
			continue
		}
		if b.Points[p].Color == c && b.Points[p].Count > 0 {
			return false
		}
	}
	return true
}

// FurthestFromHome returns the occupied point of color c that is
// furthest from its bear-off target, or 0 if c has no checkers on any
// point. The bar is not considered; callers check it directly.
func (b *Board) FurthestFromHome(c Color) int {
	if c == White {
		for p := 24; p >= 1; p-- {
			if b.Points[p].Color == White && b.Points[p].Count > 0 {
				return p
			}
		}
		return 0
	}
	for p := 1; p <= 24; p++ {
		if b.Points[p].Color == Red && b.Points[p].Count > 0 {
			return p
		}
	}
	return 0
}

// BearOffDistance returns the exact die value that bears off a checker
// of color c from point p.
func BearOffDistance(p int, c Color) int {
	if c == White {
		return p
	}
	return 25 - p
}

// PipCount returns the total pip distance color c must travel to bear
// off all checkers. Checkers on the bar count the full 25 pips.
func (b *Board) PipCount(c Color) int {
	pips := int(b.Bar[c]) * 25
	for p := 1; p <= 24; p++ {
		if b.Points[p].Color == c && b.Points[p].Count > 0 {
			pips += int(b.Points[p].Count) * BearOffDistance(p, c)
		}
	}
	return pips
}

// CheckerCount returns the number of checkers of color c across the
// points, the bar and the off tray.
func (b *Board) CheckerCount(c Color) int {
	n := int(b.Bar[c]) + int(b.Off[c])
	for p := 1; p <= 24; p++ {
		if b.Points[p].Color == c {
			n += int(b.Points[p].Count)
		}
	}
	return n
}

// Conserved returns true if both colors hold exactly fifteen checkers
// across points, bar and off.
func (b *Board) Conserved() bool {
	return b.CheckerCount(White) == CheckersPerColor && b.CheckerCount(Red) == CheckersPerColor
}

// HasAnyInHomeOf returns true if color c has a checker inside the home
// board of color home. Used for backgammon classification.
func (b *Board) HasAnyInHomeOf(c, home Color) bool {
	lo, hi := homeRange(home)
	for p := lo; p <= hi; p++ {
		if b.Points[p].Color == c && b.Points[p].Count > 0 {
			return true
		}
	}
	return false
}

// Apply executes the move mechanics for color c without legality
// checks: lifts the checker, lands it (hitting a blot to the bar) or
// bears it off. Returns the undo record. Callers validate first.
func (b *Board) Apply(m Move, c Color) UndoInfo {
	u := UndoInfo{Move: m}

	if m.IsBarEntry() {
		b.Bar[c]--
	} else {
		from := m.From()
		b.Points[from].Count--
		if b.Points[from].Count == 0 {
			b.Points[from].Color = NoColor
		}
	}

	if m.IsBearOff() {
		b.Off[c]++
		return u
	}

	to := m.To()
	pt := b.Points[to]
	if pt.Count == 1 && pt.Color == c.Other() {
		b.Bar[c.Other()]++
		b.Points[to] = Point{c, 1}
		u.Hit = true
		return u
	}
	b.Points[to] = Point{c, pt.Count + 1}
	return u
}

// Revert undoes a move previously applied for color c.
func (b *Board) Revert(u UndoInfo, c Color) {
	m := u.Move

	if m.IsBearOff() {
		b.Off[c]--
	} else {
		to := m.To()
		b.Points[to].Count--
		if b.Points[to].Count == 0 {
			b.Points[to].Color = NoColor
		}
		if u.Hit {
			b.Bar[c.Other()]--
			b.Points[to] = Point{c.Other(), 1}
		}
	}

	if m.IsBarEntry() {
		b.Bar[c]++
		return
	}
	from := m.From()
	b.Points[from].Color = c
	b.Points[from].Count++
}

// String renders the board as two rows of point counts plus bar and off
// trays, for logs and test failures.
func (b *Board) String() string {
	var sb strings.Builder
	cell := func(p int) string {
		pt := b.Points[p]
		if pt.Count == 0 {
			return " . "
		}
		ch := "W"
		if pt.Color == Red {
			ch = "R"
		}
		return fmt.Sprintf("%s%-2d", ch, pt.Count)
	}
	sb.WriteString("13 14 15 16 17 18 | 19 20 21 22 23 24\n")
	for p := 13; p <= 24; p++ {
		sb.WriteString(cell(p))
		if p == 18 {
			sb.WriteString("| ")
		} else {
			sb.WriteString(" ")
		}
	}
	sb.WriteString(fmt.Sprintf("\n12 11 10  9  8  7 |  6  5  4  3  2  1   bar W%d R%d off W%d R%d\n", b.Bar[White], b.Bar[Red], b.Off[White], b.Off[Red]))
	for p := 12; p >= 1; p-- {
		sb.WriteString(cell(p))
		if p == 7 {
			sb.WriteString("| ")
		} else {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("\n")
	return sb.String()
}
