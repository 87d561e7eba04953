package match

import (
	"errors"
	"testing"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
)

func TestCubeOfferAccept(t *testing.T) {
	cu := NewCube()
	if cu.Value != 1 || cu.Owner != OwnerCenter {
		t.Fatalf("new cube = %d owned by %v, want 1 center", cu.Value, cu.Owner)
	}

	if err := cu.Offer(board.White, false); err != nil {
		t.Fatalf("Offer from center: %v", err)
	}
	if !cu.Pending || cu.PendingBy != board.White {
		t.Fatal("offer did not enter pending state")
	}

	if err := cu.Accept(); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if cu.Value != 2 {
		t.Errorf("value after accept = %d, want 2", cu.Value)
	}
	if cu.Owner != OwnerRed {
		t.Errorf("owner after accept = %v, want Red", cu.Owner)
	}
	if cu.Pending {
		t.Error("cube still pending after accept")
	}
}

func TestCubeOwnershipGate(t *testing.T) {
	cu := NewCube()
	cu.Owner = OwnerRed

	if err := cu.Offer(board.White, false); !errors.Is(err, ErrNotCubeOwner) {
		t.Errorf("non-owner offer error = %v, want ErrNotCubeOwner", err)
	}
	if err := cu.Offer(board.Red, false); err != nil {
		t.Errorf("owner offer error = %v", err)
	}
}

func TestCubeDecline(t *testing.T) {
	cu := NewCube()
	cu.Value = 4
	cu.Owner = OwnerWhite

	if err := cu.Offer(board.White, false); err != nil {
		t.Fatalf("Offer: %v", err)
	}
	r, err := cu.Decline()
	if err != nil {
		t.Fatalf("Decline: %v", err)
	}
	// Declining scores the pre-offer value as a Normal win.
	if r.Winner != board.White || r.Stakes != 4 || r.Classification != Normal {
		t.Errorf("decline result = %+v, want White Normal 4", r)
	}
	if r.Reason != ReasonDeclined {
		t.Errorf("decline reason = %v", r.Reason)
	}
	if cu.Value != 4 {
		t.Errorf("declined cube value changed to %d", cu.Value)
	}
}

func TestCubePendingBlocksOffer(t *testing.T) {
	cu := NewCube()
	if err := cu.Offer(board.White, false); err != nil {
		t.Fatal(err)
	}
	if err := cu.Offer(board.Red, false); !errors.Is(err, ErrDoublePending) {
		t.Errorf("offer over pending error = %v, want ErrDoublePending", err)
	}
}

func TestCubeMaxValue(t *testing.T) {
	cu := NewCube()
	cu.Value = MaxCubeValue
	cu.Owner = OwnerWhite
	if err := cu.Offer(board.White, false); !errors.Is(err, ErrCubeMaxed) {
		t.Errorf("offer at 64 error = %v, want ErrCubeMaxed", err)
	}
}

func TestCubeCrawfordRejected(t *testing.T) {
	cu := NewCube()
	if err := cu.Offer(board.White, true); !errors.Is(err, ErrCrawfordNoDouble) {
		t.Errorf("Crawford offer error = %v, want ErrCrawfordNoDouble", err)
	}
	if err := cu.Offer(board.Red, true); !errors.Is(err, ErrCrawfordNoDouble) {
		t.Errorf("Crawford offer error = %v, want ErrCrawfordNoDouble", err)
	}
}

func TestCubeResolveWithoutOffer(t *testing.T) {
	cu := NewCube()
	if err := cu.Accept(); !errors.Is(err, ErrNoDoublePending) {
		t.Errorf("Accept without offer = %v, want ErrNoDoublePending", err)
	}
	if _, err := cu.Decline(); !errors.Is(err, ErrNoDoublePending) {
		t.Errorf("Decline without offer = %v, want ErrNoDoublePending", err)
	}
}

func TestCubeRedoubleSequence(t *testing.T) {
	cu := NewCube()

	steps := []struct {
		offerer   board.Color
		wantValue int
		wantOwner CubeOwner
	}{
		{board.White, 2, OwnerRed},
		{board.Red, 4, OwnerWhite},
		{board.White, 8, OwnerRed},
	}

	for _, s := range steps {
		if err := cu.Offer(s.offerer, false); err != nil {
			t.Fatalf("Offer by %v at %d: %v", s.offerer, cu.Value, err)
		}
		if err := cu.Accept(); err != nil {
			t.Fatalf("Accept: %v", err)
		}
		if cu.Value != s.wantValue || cu.Owner != s.wantOwner {
			t.Fatalf("after %v doubles: cube %d %v, want %d %v",
				s.offerer, cu.Value, cu.Owner, s.wantValue, s.wantOwner)
		}
	}
}
