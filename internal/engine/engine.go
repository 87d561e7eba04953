// Package engine implements the backgammon rules engine: dice and turn
// flow, move legality, the forced-die law, the doubling cube gates and
// win detection. It is deterministic given a Roller and performs no
// locking; callers serialize access per game.
package engine

import (
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/match"
)

// Phase describes where a game stands within its turn cycle.
type Phase uint8

const (
	PhaseWaiting  Phase = iota // not started
	PhaseRolling               // current player must roll or double
	PhaseDoubling              // a cube offer awaits a response
	PhaseMoving                // dice rolled, checker play in progress
	PhaseOver                  // winner decided
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseRolling:
		return "rolling"
	case PhaseDoubling:
		return "doubling"
	case PhaseMoving:
		return "moving"
	case PhaseOver:
		return "over"
	default:
		return "unknown"
	}
}

// Engine drives a single game of backgammon. The zero value is not
// usable; create one with NewGame.
type Engine struct {
	board   *board.Board
	turn    board.Color
	roll    board.Roll
	dice    []uint8
	rolled  bool
	started bool
	history []board.UndoInfo

	cube     *match.Cube
	crawford bool

	result *match.GameResult

	roller board.Roller

	// Forced-die data computed from the turn-start state at roll time.
	maxUsable    int
	largerDie    uint8
	largerUsable bool
}

// NewGame creates an unstarted game with the standard starting
// position. crawford freezes the cube for this game.
func NewGame(roller board.Roller, crawford bool) *Engine {
	return &Engine{
		board:    board.NewBoard(),
		turn:     board.NoColor,
		cube:     match.NewCube(),
		crawford: crawford,
		roller:   roller,
	}
}

// Start performs the opening roll. The color drawing the higher die
// moves first and plays both values as its first roll.
func (e *Engine) Start() (board.Roll, board.Color, error) {
	if e.started {
		return board.Roll{}, board.NoColor, ErrAlreadyRolled
	}
	roll, first := board.OpeningRoll(e.roller)
	e.started = true
	e.turn = first
	e.roll = roll
	e.dice = roll.Dice()
	e.rolled = true
	e.computeObligations()
	return roll, first, nil
}

// Board returns the live board. Callers must not mutate it; use Copy
// for snapshots.
func (e *Engine) Board() *board.Board {
	return e.board
}

// Turn returns the color to act.
func (e *Engine) Turn() board.Color {
	return e.turn
}

// Cube returns the game's doubling cube.
func (e *Engine) Cube() *match.Cube {
	return e.cube
}

// Crawford reports whether this game is played with a frozen cube.
func (e *Engine) Crawford() bool {
	return e.crawford
}

// LastRoll returns the dice of the current turn's roll.
func (e *Engine) LastRoll() board.Roll {
	return e.roll
}

// RemainingDice returns a copy of the unused die values this turn.
func (e *Engine) RemainingDice() []uint8 {
	out := make([]uint8, len(e.dice))
	copy(out, e.dice)
	return out
}

// MovesThisTurn returns the moves played since the turn began.
func (e *Engine) MovesThisTurn() []board.Move {
	out := make([]board.Move, len(e.history))
	for i, u := range e.history {
		out[i] = u.Move
	}
	return out
}

// Phase returns the current phase of the game.
func (e *Engine) Phase() Phase {
	switch {
	case e.result != nil:
		return PhaseOver
	case !e.started:
		return PhaseWaiting
	case e.cube.Pending:
		return PhaseDoubling
	case !e.rolled:
		return PhaseRolling
	default:
		return PhaseMoving
	}
}

// Result returns the game result once the game is over.
func (e *Engine) Result() (match.GameResult, bool) {
	if e.result == nil {
		return match.GameResult{}, false
	}
	return *e.result, true
}

// Winner returns the winning color once the game is over.
func (e *Engine) Winner() (board.Color, bool) {
	if e.result == nil {
		return board.NoColor, false
	}
	return e.result.Winner, true
}

// Roll throws the dice for the player to act. Doubles grant four
// moves of the value. Rolling is blocked while a cube offer is open.
func (e *Engine) Roll(c board.Color) (board.Roll, error) {
	if err := e.checkLive(c); err != nil {
		return board.Roll{}, err
	}
	if e.cube.Pending {
		return board.Roll{}, match.ErrDoublePending
	}
	if e.rolled {
		return board.Roll{}, ErrAlreadyRolled
	}
	e.roll = board.RollDice(e.roller)
	e.dice = e.roll.Dice()
	e.rolled = true
	e.computeObligations()
	return e.roll, nil
}

// ValidMoves returns every single-die move legal right now. With
// checkers on the bar only entries appear. The forced-die law does not
// filter this list; it is enforced at EndTurn.
func (e *Engine) ValidMoves() []board.Move {
	if e.result != nil || !e.rolled {
		return nil
	}
	ml := board.NewMoveList()
	generateMoves(e.board, e.turn, e.dice, ml)
	out := make([]board.Move, ml.Len())
	copy(out, ml.Slice())
	return out
}

// Apply validates and plays one checker move for color c, consuming
// its die. Bearing off the fifteenth checker ends the game.
func (e *Engine) Apply(m board.Move, c board.Color) error {
	if err := e.checkLive(c); err != nil {
		return err
	}
	if !e.rolled {
		return ErrNoRollYet
	}
	if err := e.validateMove(m, c); err != nil {
		return err
	}

	u := e.board.Apply(m, c)
	e.history = append(e.history, u)
	e.consumeDie(m.Die())

	if e.board.Off[c] == board.CheckersPerColor {
		r := match.NewResult(c, match.Classify(e.board, c), e.cube.Value)
		e.result = &r
	}
	return nil
}

// Undo reverts the most recent move of the current turn, restoring its
// die. Undo is unavailable once the turn has ended or the game is over.
func (e *Engine) Undo(c board.Color) error {
	if err := e.checkLive(c); err != nil {
		return err
	}
	if len(e.history) == 0 {
		return ErrNoMovesToUndo
	}
	u := e.history[len(e.history)-1]
	e.history = e.history[:len(e.history)-1]
	e.board.Revert(u, c)
	e.dice = append(e.dice, u.Move.Die())
	return nil
}

// EndTurn closes the current turn. The forced-die law is enforced
// here, from the turn-start state: the played sequence must use the
// maximum number of dice any sequence could, and when only one die of
// an unequal pair is usable it must be the larger.
func (e *Engine) EndTurn(c board.Color) error {
	if err := e.checkLive(c); err != nil {
		return err
	}
	if !e.rolled {
		return ErrNoRollYet
	}

	played := len(e.history)
	if played < e.maxUsable {
		return ErrMustUseBothDice
	}
	if played == 1 && e.maxUsable == 1 && e.largerUsable &&
		e.history[0].Move.Die() != e.largerDie {
		return ErrWouldSkipUsableDie
	}

	e.dice = nil
	e.rolled = false
	e.roll = board.Roll{}
	e.history = nil
	e.turn = e.turn.Other()
	e.maxUsable = 0
	e.largerDie = 0
	e.largerUsable = false
	return nil
}

// OfferDouble places a cube offer by color c. Offers are legal only on
// the offerer's turn, before rolling.
func (e *Engine) OfferDouble(c board.Color) error {
	if err := e.checkLive(c); err != nil {
		return err
	}
	if e.rolled {
		return ErrAlreadyRolled
	}
	return e.cube.Offer(c, e.crawford)
}

// AcceptDouble accepts the open cube offer as color c.
func (e *Engine) AcceptDouble(c board.Color) error {
	if e.result != nil {
		return ErrGameAlreadyOver
	}
	if !e.cube.Pending {
		return match.ErrNoDoublePending
	}
	if c != e.cube.PendingBy.Other() {
		return ErrNotYourTurn
	}
	return e.cube.Accept()
}

// DeclineDouble declines the open cube offer as color c, conceding the
// game at the pre-offer value.
func (e *Engine) DeclineDouble(c board.Color) error {
	if e.result != nil {
		return ErrGameAlreadyOver
	}
	if !e.cube.Pending {
		return match.ErrNoDoublePending
	}
	if c != e.cube.PendingBy.Other() {
		return ErrNotYourTurn
	}
	r, err := e.cube.Decline()
	if err != nil {
		return err
	}
	e.result = &r
	return nil
}

// Forfeit ends the game immediately against the given loser, for
// abandonment or timeout. The result scores the current cube value.
func (e *Engine) Forfeit(loser board.Color, reason match.EndReason) (match.GameResult, error) {
	if e.result != nil {
		return *e.result, ErrGameAlreadyOver
	}
	r := match.ForfeitResult(loser, e.cube.Value, reason)
	e.result = &r
	return r, nil
}

// SetForAnalysis replaces the live position: board, player to act and
// remaining dice. The turn history clears and the forced-die data is
// recomputed. Positions violating checker conservation are rejected.
func (e *Engine) SetForAnalysis(b *board.Board, turn board.Color, dice []uint8) error {
	if !b.Conserved() {
		return ErrConservation
	}
	e.board = b.Copy()
	e.started = true
	e.turn = turn
	e.dice = append([]uint8(nil), dice...)
	e.rolled = len(dice) > 0
	if len(dice) >= 2 {
		e.roll = board.Roll{D1: dice[0], D2: dice[1]}
	} else {
		e.roll = board.Roll{}
	}
	e.history = nil
	e.result = nil
	e.computeObligations()
	return nil
}

// checkLive rejects calls on unstarted or finished games and calls by
// the player not on turn.
func (e *Engine) checkLive(c board.Color) error {
	if e.result != nil {
		return ErrGameAlreadyOver
	}
	if !e.started {
		return ErrGameNotStarted
	}
	if c != e.turn {
		return ErrNotYourTurn
	}
	return nil
}

// consumeDie removes one instance of the die value.
func (e *Engine) consumeDie(die uint8) {
	for i, d := range e.dice {
		if d == die {
			e.dice = append(e.dice[:i], e.dice[i+1:]...)
			return
		}
	}
}

func (e *Engine) hasDie(die uint8) bool {
	for _, d := range e.dice {
		if d == die {
			return true
		}
	}
	return false
}

// computeObligations caches the forced-die data for the fresh roll.
func (e *Engine) computeObligations() {
	e.maxUsable = maxUsableDice(e.board, e.turn, e.dice)
	e.largerDie = 0
	e.largerUsable = false
	if len(e.dice) == 2 && e.dice[0] != e.dice[1] {
		hi := e.dice[0]
		if e.dice[1] > hi {
			hi = e.dice[1]
		}
		e.largerDie = hi
		e.largerUsable = canUseDie(e.board, e.turn, hi)
	}
}

// validateMove checks one move against the rules, returning the
// specific rejection.
func (e *Engine) validateMove(m board.Move, c board.Color) error {
	if m == board.NoMove {
		return ErrIllegalMove
	}
	die := m.Die()
	if !e.hasDie(die) {
		return ErrDieNotAvailable
	}

	if e.board.Bar[c] > 0 && !m.IsBarEntry() {
		return ErrBarEntryRequired
	}

	if m.IsBarEntry() {
		if e.board.Bar[c] == 0 {
			return ErrIllegalMove
		}
		to := m.To()
		if to != e.board.EntryPoint(c, die) {
			return ErrIllegalMove
		}
		if !e.board.CanLand(to, c) {
			return ErrDestinationBlocked
		}
		return nil
	}

	from := m.From()
	if from < 1 || from > 24 {
		return ErrIllegalMove
	}
	pt := e.board.At(from)
	if pt.Color != c || pt.Count == 0 {
		return ErrIllegalMove
	}

	if m.IsBearOff() {
		if (c == board.White && m.To() != board.OffWhite) ||
			(c == board.Red && m.To() != board.OffRed) {
			return ErrIllegalMove
		}
		if !e.board.AllInHome(c) {
			return ErrNotAllInHome
		}
		need := board.BearOffDistance(from, c)
		if int(die) == need {
			return nil
		}
		if int(die) > need && e.board.FurthestFromHome(c) == from {
			return nil
		}
		return ErrIllegalMove
	}

	to := m.To()
	want := from + int(die)*c.Direction()
	if to != want || to < 1 || to > 24 {
		return ErrIllegalMove
	}
	if !e.board.CanLand(to, c) {
		return ErrDestinationBlocked
	}
	return nil
}
