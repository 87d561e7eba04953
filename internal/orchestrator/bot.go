package orchestrator

import (
	"context"
	"time"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/bot"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/engine"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/metrics"
)

// maybeScheduleBot spawns a runner when the seat that must act is a
// bot. Called at every turn-change point on the actor goroutine;
// botBusy keeps a session to one runner at a time.
func (o *Orchestrator) maybeScheduleBot(a *actor) {
	sess := a.sess
	if a.botBusy || sess.Engine == nil || sess.Match.Complete {
		return
	}
	if on, _ := sess.Analysis(); on {
		return
	}
	e := sess.Engine
	var c board.Color
	switch e.Phase() {
	case engine.PhaseRolling, engine.PhaseMoving:
		c = e.Turn()
	case engine.PhaseDoubling:
		c = e.Cube().PendingBy.Other()
	default:
		return
	}
	seat := sess.Seat(c)
	if !seat.IsBot() {
		return
	}
	p, ok := o.bots.Get(seat.BotID)
	if !ok {
		o.log.Warnw("seat bound to unknown bot", "session", sess.ID, "bot", seat.BotID)
		return
	}
	a.botBusy = true
	o.wg.Add(1)
	go o.runBotTurn(a, p, c)
}

// runBotTurn plays one full turn for a bot seat, off the actor
// goroutine. Every decision re-enters through the mailbox like any
// other caller, so the bot can never observe or mutate a torn state.
func (o *Orchestrator) runBotTurn(a *actor, p bot.Player, c board.Color) {
	defer o.wg.Done()
	defer func() {
		_, _ = o.send(o.baseCtx, a, Action{Op: opBotDone, SessionID: a.id, Seat: c, HasSeat: true})
	}()

	ctx, cancel := context.WithTimeout(o.baseCtx, o.cfg.BotDeadline)
	defer cancel()

	if o.cfg.BotThink > 0 {
		t := time.NewTimer(o.cfg.BotThink)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}

	res, err := o.send(ctx, a, Action{Op: OpGetState, SessionID: a.id, Seat: c, HasSeat: true})
	if err != nil || res.State == nil {
		return
	}
	st := res.State
	me := c.String()

	switch st.Phase {
	case "doubling":
		if !st.Cube.Pending || st.Cube.PendingBy == me {
			return
		}
		v, ok := o.botViewFromState(st, c)
		if !ok {
			return
		}
		op := OpDeclineDouble
		if p.AcceptDouble(ctx, v) {
			op = OpAcceptDouble
		}
		if _, err := o.send(ctx, a, Action{Op: op, SessionID: a.id, Seat: c, HasSeat: true}); err != nil {
			o.log.Warnw("bot cube response failed", "session", a.id, "bot", p.ID(), "error", err)
		}
		metrics.BotTurns.Inc()
		return
	case "rolling":
		if st.CurrentPlayer != me {
			return
		}
		res, err = o.send(ctx, a, Action{Op: OpRollDice, SessionID: a.id, Seat: c, HasSeat: true})
		if err != nil || res.State == nil {
			return
		}
		st = res.State
	case "moving":
		// Resuming a half-played turn; the dice are already live.
	default:
		return
	}
	if st.Phase != "moving" || st.CurrentPlayer != me {
		return
	}

	v, ok := o.botViewFromState(st, c)
	if !ok {
		return
	}
	game := st.GameNumber
	for _, mv := range p.ChooseMoves(ctx, v) {
		res, err = o.send(ctx, a, Action{
			Op:        OpMakeMove,
			SessionID: a.id,
			Seat:      c,
			HasSeat:   true,
			Move:      MoveArg{From: mv.From(), To: mv.To(), Die: mv.Die()},
		})
		if err != nil || res.State == nil {
			break
		}
		st = res.State
		if st.GameNumber != game || st.Phase != "moving" || st.CurrentPlayer != me {
			// The last move ended the game; settlement has already
			// advanced the session.
			metrics.BotTurns.Inc()
			return
		}
	}
	if st.GameNumber != game || st.Phase != "moving" || st.CurrentPlayer != me {
		metrics.BotTurns.Inc()
		return
	}

	if _, err := o.send(ctx, a, Action{Op: OpEndTurn, SessionID: a.id, Seat: c, HasSeat: true}); err != nil {
		if KindOf(err) == KindValidation {
			// The plan fell short of the forced-die law; the actor
			// finishes the turn deterministically.
			_, _ = o.send(o.baseCtx, a, Action{Op: opBotFinish, SessionID: a.id, Seat: c, HasSeat: true})
		} else {
			o.log.Warnw("bot end turn failed", "session", a.id, "bot", p.ID(), "error", err)
		}
	}
	metrics.BotTurns.Inc()
}

// botViewFromState rebuilds a private position copy for the bot from
// the snapshot's position id.
func (o *Orchestrator) botViewFromState(st *StateView, c board.Color) (bot.View, bool) {
	b, err := board.ParsePositionID(st.PositionID)
	if err != nil {
		o.log.Errorw("bot view rebuild failed", "session", st.SessionID, "error", err)
		return bot.View{}, false
	}
	self, opp := st.Score.White, st.Score.Red
	if c == board.Red {
		self, opp = opp, self
	}
	return bot.View{
		Board:     b,
		Color:     c,
		Dice:      append([]uint8(nil), st.RemainingDice...),
		CubeValue: st.Cube.Value,
		ScoreSelf: self,
		ScoreOpp:  opp,
		Target:    st.Score.Target,
	}, true
}

// handleBotFinish completes a turn the bot left short of the
// maximal-play obligation, picking obligation-preserving moves until
// the turn may legally end.
func (o *Orchestrator) handleBotFinish(a *actor, t task) (Result, error) {
	sess := a.sess
	e := sess.Engine
	if e == nil {
		return Result{}, nil
	}
	c := t.act.Seat
	if e.Turn() != c || e.Phase() != engine.PhaseMoving {
		return Result{}, nil
	}
	for sess.Engine == e && e.Phase() == engine.PhaseMoving {
		dice := e.RemainingDice()
		max := engine.MaxUsableDice(e.Board(), c, dice)
		if max == 0 {
			break
		}
		mv, ok := guidedMove(e.Board(), c, dice, max)
		if !ok {
			break
		}
		if err := o.doMove(a, t, c, mv); err != nil {
			o.log.Errorw("guided completion move failed",
				"session", sess.ID, "move", mv.String(), "error", err)
			break
		}
	}
	if sess.Engine == e && e.Phase() == engine.PhaseMoving {
		if err := o.doEndTurn(a, t, c); err != nil {
			o.log.Errorw("guided completion end turn failed", "session", sess.ID, "error", err)
		}
	}
	return Result{}, nil
}

// guidedMove picks one legal move after which the remaining dice can
// still reach max-1 further plays, preferring the larger die when only
// one die of an unequal pair is playable.
func guidedMove(b *board.Board, c board.Color, dice []uint8, max int) (board.Move, bool) {
	var keep []board.Move
	for _, m := range engine.LegalMoves(b, c, dice) {
		u := b.Apply(m, c)
		if engine.MaxUsableDice(b, c, removeDie(dice, m.Die())) == max-1 {
			keep = append(keep, m)
		}
		b.Revert(u, c)
	}
	if len(keep) == 0 {
		return board.NoMove, false
	}
	if max == 1 && len(dice) == 2 && dice[0] != dice[1] {
		hi := dice[0]
		if dice[1] > hi {
			hi = dice[1]
		}
		for _, m := range keep {
			if m.Die() == hi {
				return m, true
			}
		}
	}
	return keep[0], true
}

// removeDie returns dice minus one instance of d.
func removeDie(dice []uint8, d uint8) []uint8 {
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
