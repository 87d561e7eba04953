package board

// Color represents the color of a checker or player.
type Color uint8

const (
	White Color = iota
	Red
	NoColor Color = 2
)

// Other returns the opposite color.
func (c Color) Other() Color {
	return c ^ 1
}

// String returns the color name.
func (c Color) String() string {
	switch c {
	case White:
		return "White"
	case Red:
		return "Red"
	default:
		return "NoColor"
	}
}

// ParseColor converts a color name to a Color.
func ParseColor(s string) Color {
	switch s {
	case "White", "white", "W", "w":
		return White
	case "Red", "red", "R", "r":
		return Red
	default:
		return NoColor
	}
}

// Direction returns the movement direction along the point numbering:
// -1 for White (24 toward 1) and +1 for Red (1 toward 24).
func (c Color) Direction() int {
	if c == White {
		return -1
	}
	return 1
}
