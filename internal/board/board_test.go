package board

import "testing"

func TestSetupPosition(t *testing.T) {
	b := NewBoard()

	tests := []struct {
		point int
		color Color
		count uint8
	}{
		{24, White, 2},
		{13, White, 5},
		{8, White, 3},
		{6, White, 5},
		{1, Red, 2},
		{12, Red, 5},
		{17, Red, 3},
		{19, Red, 5},
	}

	for _, tt := range tests {
		p := b.At(tt.point)
		if p.Color != tt.color || p.Count != tt.count {
			t.Errorf("point %d = %v %d, want %v %d", tt.point, p.Color, p.Count, tt.color, tt.count)
		}
	}

	if !b.Conserved() {
		t.Error("starting position violates checker conservation")
	}
	if b.Bar[White] != 0 || b.Bar[Red] != 0 || b.Off[White] != 0 || b.Off[Red] != 0 {
		t.Error("starting position has checkers on bar or off")
	}
}

func TestPipCount(t *testing.T) {
	b := NewBoard()

	if got := b.PipCount(White); got != 167 {
		t.Errorf("White pip count = %d, want 167", got)
	}
	if got := b.PipCount(Red); got != 167 {
		t.Errorf("Red pip count = %d, want 167", got)
	}

	// A checker on the bar counts the full 25 pips.
	b = &Board{}
	b.Bar[White] = 1
	if got := b.PipCount(White); got != 25 {
		t.Errorf("bar pip count = %d, want 25", got)
	}
}

func TestCanLand(t *testing.T) {
	b := NewBoard()

	tests := []struct {
		name  string
		point int
		color Color
		want  bool
	}{
		{"empty point", 3, White, true},
		{"own point", 6, White, true},
		{"opposing wall", 19, White, false},
		{"opposing wall red", 6, Red, false},
		{"own point red", 19, Red, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.CanLand(tt.point, tt.color); got != tt.want {
				t.Errorf("CanLand(%d, %v) = %v, want %v", tt.point, tt.color, got, tt.want)
			}
		})
	}

	// A lone opposing blot can be landed on.
	b.Points[3] = Point{Red, 1}
	if !b.CanLand(3, White) {
		t.Error("CanLand on opposing blot = false, want true")
	}
}

func TestApplyAndRevert(t *testing.T) {
	t.Run("plain move", func(t *testing.T) {
		b := NewBoard()
		orig := b.Copy()

		m := NewMove(24, 18, 6)
		u := b.Apply(m, White)
		if u.Hit {
			t.Error("plain move reported a hit")
		}
		if b.At(24).Count != 1 || b.At(18).Color != White || b.At(18).Count != 1 {
			t.Errorf("after 24/18: point 24 = %v, point 18 = %v", b.At(24), b.At(18))
		}
		b.Revert(u, White)
		if !b.Equal(orig) {
			t.Error("revert did not restore the position")
		}
	})

	t.Run("hit sends blot to bar", func(t *testing.T) {
		b := NewBoard()
		b.Points[18] = Point{Red, 1}
		b.Points[19] = Point{Red, 4} // keep conservation
		orig := b.Copy()

		u := b.Apply(NewMove(24, 18, 6), White)
		if !u.Hit {
			t.Fatal("landing on a blot did not report a hit")
		}
		if b.Bar[Red] != 1 {
			t.Errorf("Bar[Red] = %d, want 1", b.Bar[Red])
		}
		if b.At(18).Color != White || b.At(18).Count != 1 {
			t.Errorf("point 18 = %v after hit", b.At(18))
		}
		b.Revert(u, White)
		if !b.Equal(orig) {
			t.Error("revert did not restore the hit position")
		}
	})

	t.Run("bar entry", func(t *testing.T) {
		b := NewBoard()
		b.Points[24] = Point{White, 1}
		b.Bar[White] = 1
		orig := b.Copy()

		u := b.Apply(NewMove(BarPos, 21, 4), White)
		if b.Bar[White] != 0 || b.At(21).Color != White {
			t.Errorf("after bar/21: bar = %d, point 21 = %v", b.Bar[White], b.At(21))
		}
		b.Revert(u, White)
		if !b.Equal(orig) {
			t.Error("revert did not restore the bar entry")
		}
	})

	t.Run("bear off", func(t *testing.T) {
		b := &Board{}
		b.Points[6] = Point{White, 15}
		b.Points[19] = Point{Red, 15}
		orig := b.Copy()

		u := b.Apply(NewMove(6, OffWhite, 6), White)
		if b.Off[White] != 1 || b.At(6).Count != 14 {
			t.Errorf("after 6/off: off = %d, point 6 = %v", b.Off[White], b.At(6))
		}
		b.Revert(u, White)
		if !b.Equal(orig) {
			t.Error("revert did not restore the bear-off")
		}
	})

	t.Run("conservation across sequences", func(t *testing.T) {
		b := NewBoard()
		moves := []Move{
			NewMove(24, 18, 6),
			NewMove(18, 13, 5),
			NewMove(13, 9, 4),
		}
		for _, m := range moves {
			b.Apply(m, White)
			if !b.Conserved() {
				t.Fatalf("conservation broken after %v", m)
			}
		}
	})
}

func TestAllInHome(t *testing.T) {
	b := &Board{}
	b.Points[6] = Point{White, 10}
	b.Points[1] = Point{White, 5}
	b.Points[19] = Point{Red, 15}

	if !b.AllInHome(White) {
		t.Error("AllInHome(White) = false with all checkers on 1-6")
	}
	if !b.AllInHome(Red) {
		t.Error("AllInHome(Red) = false with all checkers on 19")
	}

	b.Points[7] = Point{White, 1}
	b.Points[6].Count--
	if b.AllInHome(White) {
		t.Error("AllInHome(White) = true with a checker on 7")
	}

	b.Points[7] = Point{}
	b.Points[6].Count++
	b.Bar[White] = 1
	b.Points[6].Count--
	if b.AllInHome(White) {
		t.Error("AllInHome(White) = true with a checker on the bar")
	}
}

func TestFurthestFromHome(t *testing.T) {
	b := &Board{}
	b.Points[5] = Point{White, 2}
	b.Points[3] = Point{White, 13}
	b.Points[20] = Point{Red, 1}
	b.Points[19] = Point{Red, 14}

	if got := b.FurthestFromHome(White); got != 5 {
		t.Errorf("FurthestFromHome(White) = %d, want 5", got)
	}
	if got := b.FurthestFromHome(Red); got != 19 {
		t.Errorf("FurthestFromHome(Red) = %d, want 19", got)
	}
}

func TestEntryPoint(t *testing.T) {
	b := NewBoard()
	for d := uint8(1); d <= 6; d++ {
		if got, want := b.EntryPoint(White, d), 25-int(d); got != want {
			t.Errorf("White entry with %d = %d, want %d", d, got, want)
		}
		if got, want := b.EntryPoint(Red, d), int(d); got != want {
			t.Errorf("Red entry with %d = %d, want %d", d, got, want)
		}
	}
}

func TestHasAnyInHomeOf(t *testing.T) {
	b := NewBoard()

	// Red's anchor on 1 sits inside White's home board.
	if !b.HasAnyInHomeOf(Red, White) {
		t.Error("Red checkers on point 1 not seen in White's home")
	}
	// White's back checkers on 24 sit inside Red's home board.
	if !b.HasAnyInHomeOf(White, Red) {
		t.Error("White checkers on point 24 not seen in Red's home")
	}

	b = &Board{}
	b.Points[12] = Point{White, 15}
	b.Points[13] = Point{Red, 15}
	if b.HasAnyInHomeOf(White, Red) || b.HasAnyInHomeOf(Red, White) {
		t.Error("midfield checkers reported inside a home board")
	}
}
