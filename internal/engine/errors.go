package engine

import "errors"

// Rule rejections. These are reasoned outcomes of legal API use, not
// programming errors; callers match them with errors.Is.
var (
	ErrGameNotStarted     = errors.New("game has not started")
	ErrGameAlreadyOver    = errors.New("game is already over")
	ErrNotYourTurn        = errors.New("not this player's turn")
	ErrAlreadyRolled      = errors.New("dice already rolled this turn")
	ErrNoRollYet          = errors.New("dice have not been rolled")
	ErrBarEntryRequired   = errors.New("checkers on the bar must enter first")
	ErrDestinationBlocked = errors.New("destination point is blocked")
	ErrDieNotAvailable    = errors.New("die value is not available")
	ErrNotAllInHome       = errors.New("bear-off requires all checkers home")
	ErrIllegalMove        = errors.New("move is not legal in this position")
	ErrNoMovesToUndo      = errors.New("no moves to undo this turn")
	ErrMustUseBothDice    = errors.New("a sequence using more dice exists")
	ErrWouldSkipUsableDie = errors.New("the larger die must be played")
	ErrConservation       = errors.New("position violates checker conservation")
)
