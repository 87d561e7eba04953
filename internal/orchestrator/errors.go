package orchestrator

import (
	"errors"
	"fmt"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/engine"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/match"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/session"
)

// Kind classifies an action failure for the wire.
type Kind uint8

const (
	// KindValidation is a rule rejection: the action was understood
	// and refused by the game rules.
	KindValidation Kind = iota
	// KindContention is a wrong-actor rejection: not this player's
	// turn, seat or offer.
	KindContention
	// KindNotFound is an unknown session or seat.
	KindNotFound
	// KindTerminal is an action against a finished game or match.
	KindTerminal
	// KindInternal is a bug or infrastructure failure.
	KindInternal
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindContention:
		return "contention"
	case KindNotFound:
		return "not_found"
	case KindTerminal:
		return "terminal"
	default:
		return "internal"
	}
}

// Error is a classified action failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	ErrUnknownSession  = errors.New("unknown session")
	ErrSessionStopped  = errors.New("session is shut down")
	ErrSeatOccupied    = errors.New("session already has both players")
	ErrUnknownBot      = errors.New("unknown bot id")
	ErrBadOpponent     = errors.New("opponent must be human or bot")
	ErrGameNotRunning  = errors.New("no game is running")
	ErrEmptyChat       = errors.New("chat text must not be empty")
	ErrAnalysisDenied  = errors.New("analysis mode is owned by another player")
	ErrNotInAnalysis   = errors.New("session is not in analysis mode")
	ErrBadDice         = errors.New("dice values must be 1 through 6")
	ErrUnknownOp       = errors.New("unknown action")
	ErrMatchDecided    = errors.New("match is already decided")
	ErrShuttingDown    = errors.New("server is shutting down")
	ErrMailboxOverflow = errors.New("session mailbox is full")
)

func failf(k Kind, err error) *Error {
	return &Error{Kind: k, Err: err}
}

// classify wraps engine, cube and session rejections with their wire
// kind. Already-classified errors pass through.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var oe *Error
	if errors.As(err, &oe) {
		return err
	}
	switch {
	case errors.Is(err, ErrUnknownSession),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, ErrUnknownBot):
		return failf(KindNotFound, err)
	case errors.Is(err, engine.ErrNotYourTurn),
		errors.Is(err, match.ErrNotCubeOwner),
		errors.Is(err, ErrSeatOccupied),
		errors.Is(err, session.ErrSeatTaken),
		errors.Is(err, session.ErrNoOpenSeat),
		errors.Is(err, session.ErrNotSeated),
		errors.Is(err, ErrAnalysisDenied):
		return failf(KindContention, err)
	case errors.Is(err, engine.ErrGameAlreadyOver),
		errors.Is(err, match.ErrMatchOver),
		errors.Is(err, ErrMatchDecided),
		errors.Is(err, ErrSessionStopped):
		return failf(KindTerminal, err)
	case errors.Is(err, engine.ErrGameNotStarted),
		errors.Is(err, engine.ErrAlreadyRolled),
		errors.Is(err, engine.ErrNoRollYet),
		errors.Is(err, engine.ErrBarEntryRequired),
		errors.Is(err, engine.ErrDestinationBlocked),
		errors.Is(err, engine.ErrDieNotAvailable),
		errors.Is(err, engine.ErrNotAllInHome),
		errors.Is(err, engine.ErrIllegalMove),
		errors.Is(err, engine.ErrNoMovesToUndo),
		errors.Is(err, engine.ErrMustUseBothDice),
		errors.Is(err, engine.ErrWouldSkipUsableDie),
		errors.Is(err, engine.ErrConservation),
		errors.Is(err, match.ErrDoublePending),
		errors.Is(err, match.ErrNoDoublePending),
		errors.Is(err, match.ErrCubeMaxed),
		errors.Is(err, match.ErrCrawfordNoDouble),
		errors.Is(err, match.ErrBadTarget),
		errors.Is(err, ErrBadOpponent),
		errors.Is(err, ErrGameNotRunning),
		errors.Is(err, ErrEmptyChat),
		errors.Is(err, ErrNotInAnalysis),
		errors.Is(err, ErrBadDice),
		errors.Is(err, ErrUnknownOp):
		return failf(KindValidation, err)
	default:
		return failf(KindInternal, err)
	}
}

// KindOf extracts the wire kind, defaulting to internal.
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindInternal
}
