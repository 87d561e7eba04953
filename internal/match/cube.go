package match

import (
	"errors"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
)

// MaxCubeValue caps the doubling cube.
const MaxCubeValue = 64

// Cube offer failure modes.
var (
	ErrDoublePending    = errors.New("a double is already pending")
	ErrNoDoublePending  = errors.New("no double is pending")
	ErrCubeMaxed        = errors.New("cube is already at its maximum value")
	ErrNotCubeOwner     = errors.New("only the cube owner may double")
	ErrCrawfordNoDouble = errors.New("no doubling in the Crawford game")
)

// CubeOwner identifies who holds the doubling cube.
type CubeOwner uint8

const (
	OwnerCenter CubeOwner = iota
	OwnerWhite
	OwnerRed
)

// String returns the owner name.
func (o CubeOwner) String() string {
	switch o {
	case OwnerWhite:
		return "White"
	case OwnerRed:
		return "Red"
	default:
		return "Center"
	}
}

// OwnerOf returns the cube owner value for a color.
func OwnerOf(c board.Color) CubeOwner {
	if c == board.White {
		return OwnerWhite
	}
	return OwnerRed
}

// Cube is the doubling cube state machine. A centered cube may be
// offered by either player; once owned, only the owner may re-offer.
// Offers double the stakes only when accepted; a decline ends the game
// at the pre-offer value.
type Cube struct {
	Value     int
	Owner     CubeOwner
	Pending   bool
	PendingBy board.Color
}

// NewCube creates a centered cube at value 1.
func NewCube() *Cube {
	return &Cube{Value: 1, Owner: OwnerCenter}
}

// MayOffer reports whether color c is currently allowed to offer a
// double, ignoring turn order (the orchestrator enforces that an offer
// comes from the player to roll, before rolling).
func (cu *Cube) MayOffer(c board.Color, crawford bool) error {
	if crawford {
		return ErrCrawfordNoDouble
	}
	if cu.Pending {
		return ErrDoublePending
	}
	if cu.Value >= MaxCubeValue {
		return ErrCubeMaxed
	}
	if cu.Owner != OwnerCenter && cu.Owner != OwnerOf(c) {
		return ErrNotCubeOwner
	}
	return nil
}

// Offer places a pending double by color c.
func (cu *Cube) Offer(c board.Color, crawford bool) error {
	if err := cu.MayOffer(c, crawford); err != nil {
		return err
	}
	cu.Pending = true
	cu.PendingBy = c
	return nil
}

// Accept resolves a pending double: the value doubles and the cube
// passes to the accepting player.
func (cu *Cube) Accept() error {
	if !cu.Pending {
		return ErrNoDoublePending
	}
	cu.Value *= 2
	cu.Owner = OwnerOf(cu.PendingBy.Other())
	cu.Pending = false
	return nil
}

// Decline resolves a pending double by conceding: the offerer wins a
// Normal game at the pre-offer value. Decline returns that result and
// clears the offer.
func (cu *Cube) Decline() (GameResult, error) {
	if !cu.Pending {
		return GameResult{}, ErrNoDoublePending
	}
	r := GameResult{
		Winner:         cu.PendingBy,
		Classification: Normal,
		CubeValue:      cu.Value,
		Stakes:         cu.Value,
		Reason:         ReasonDeclined,
	}
	cu.Pending = false
	return r, nil
}

// Copy returns a copy of the cube.
func (cu *Cube) Copy() *Cube {
	nc := *cu
	return &nc
}
