package board

import (
	"encoding/base64"
	"fmt"
)

// The position identifier serializes a board as 52 bytes, base64
// encoded: for White then Red, the bar count, the 24 point counts seen
// from that color's perspective (1 = nearest the bear-off target), and
// the borne-off count. It carries no turn or dice state, so the same
// checker configuration always yields the same identifier.

const posIDRawLen = 2 * (1 + 24 + 1)

var posIDEncoding = base64.RawURLEncoding

// perspectivePoint maps a color's perspective index (1-24) to the
// actual board point.
func perspectivePoint(c Color, i int) int {
	if c == White {
		return i
	}
	return 25 - i
}

// PositionID encodes the board as a compact, turn-independent string.
func PositionID(b *Board) string {
	raw := make([]byte, 0, posIDRawLen)
	for _, c := range []Color{White, Red} {
		raw = append(raw, b.Bar[c])
		for i := 1; i <= 24; i++ {
			p := b.Points[perspectivePoint(c, i)]
			if p.Color == c {
				raw = append(raw, p.Count)
			} else {
				raw = append(raw, 0)
			}
		}
		raw = append(raw, b.Off[c])
	}
	return posIDEncoding.EncodeToString(raw)
}

// ParsePositionID decodes a position identifier back into a board,
// rejecting identifiers that violate checker conservation or stack two
// colors on one point.
func ParsePositionID(s string) (*Board, error) {
	raw, err := posIDEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid position id: %w", err)
	}
	if len(raw) != posIDRawLen {
		return nil, fmt.Errorf("invalid position id length: %d", len(raw))
	}

	b := &Board{}
	off := 0
	for _, c := range []Color{White, Red} {
		b.Bar[c] = raw[off]
		off++
		for i := 1; i <= 24; i++ {
			n := raw[off]
			off++
			if n == 0 {
				continue
			}
			p := perspectivePoint(c, i)
			if b.Points[p].Count > 0 {
				return nil, fmt.Errorf("position id stacks both colors on point %d", p)
			}
			b.Points[p] = Point{c, n}
		}
		b.Off[c] = raw[off]
		off++
	}

	for _, c := range []Color{White, Red} {
		if n := b.CheckerCount(c); n != CheckersPerColor {
			return nil, fmt.Errorf("position id holds %d %s checkers, want %d", n, c, CheckersPerColor)
		}
	}
	return b, nil
}
