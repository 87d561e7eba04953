// Package bot provides the automated opponents. A bot sees a private
// copy of the position and plans a full turn; the runner in the
// orchestrator feeds the chosen moves back through the normal action
// path one at a time, so a misbehaving bot can never corrupt a game.
package bot

import (
	"context"
	"sort"
	"sync"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/engine"
)

// DefaultID is the opponent used when a caller does not pick one.
const DefaultID = "greedy"

// View is the read-only position handed to a bot for one decision.
// Board is the bot's own copy and may be scribbled on.
type View struct {
	Board     *board.Board
	Color     board.Color
	Dice      []uint8
	CubeValue int
	ScoreSelf int
	ScoreOpp  int
	Target    int
}

// Player decides checker plays and cube responses for one seat.
type Player interface {
	// ID is the registry key, stable across restarts.
	ID() string
	// Name is the display name shown to opponents and spectators.
	Name() string
	// ChooseMoves plans one turn: an ordered move list for the dice in
	// v. Returning early (or short) is safe; the runner ends the turn
	// with whatever was accepted.
	ChooseMoves(ctx context.Context, v View) []board.Move
	// AcceptDouble answers a pending cube offer.
	AcceptDouble(ctx context.Context, v View) bool
}

// Registry maps bot ids to implementations.
type Registry struct {
	mu      sync.RWMutex
	players map[string]Player
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{players: make(map[string]Player)}
}

// Builtin returns a registry with the stock opponents installed.
func Builtin() *Registry {
	r := NewRegistry()
	r.Register(NewGreedy())
	r.Register(NewRandom(0))
	return r
}

// Register installs a player under its id.
func (r *Registry) Register(p Player) {
	r.mu.Lock()
	r.players[p.ID()] = p
	r.mu.Unlock()
}

// Get returns the player registered under id.
func (r *Registry) Get(id string) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	return p, ok
}

// IDs lists the registered bot ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.players))
	for id := range r.players {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// withoutDie returns dice minus one instance of d.
func withoutDie(dice []uint8, d uint8) []uint8 {
	out := make([]uint8, 0, len(dice))
	removed := false
	for _, v := range dice {
		if !removed && v == d {
			removed = true
			continue
		}
		out = append(out, v)
	}
	return out
}

// preservingMoves returns the legal moves after which the remaining
// dice can still reach rem-1 further moves, keeping the turn maximal.
// The board is restored before returning.
func preservingMoves(b *board.Board, c board.Color, dice []uint8, rem int) []board.Move {
	var out []board.Move
	for _, m := range engine.LegalMoves(b, c, dice) {
		u := b.Apply(m, c)
		if engine.MaxUsableDice(b, c, withoutDie(dice, m.Die())) == rem-1 {
			out = append(out, m)
		}
		b.Revert(u, c)
	}
	return out
}

// largerDiePreferred filters to larger-die moves when exactly one die
// of an unequal pair can be played, matching the forced-die law.
func largerDiePreferred(moves []board.Move, dice []uint8, rem int) []board.Move {
	if rem != 1 || len(dice) != 2 || dice[0] == dice[1] {
		return moves
	}
	hi := dice[0]
	if dice[1] > hi {
		hi = dice[1]
	}
	var out []board.Move
	for _, m := range moves {
		if m.Die() == hi {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return moves
	}
	return out
}
