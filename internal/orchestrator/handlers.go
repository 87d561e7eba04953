package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/analytics"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/broadcast"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/engine"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/match"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/metrics"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/session"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/store"
)

const maxChatBytes = 512

// Wire payloads for shared-audience events.
type joinPayload struct {
	Player    string `json:"player"`
	Seat      string `json:"seat"`
	Reconnect bool   `json:"reconnect,omitempty"`
}

type leavePayload struct {
	Player string `json:"player"`
	Seat   string `json:"seat"`
}

type spectatorPayload struct {
	Spectators int `json:"spectators"`
}

type rollPayload struct {
	Player string  `json:"player"`
	Roll   string  `json:"roll"`
	Dice   []uint8 `json:"dice"`
}

type movePayload struct {
	Player    string  `json:"player"`
	Move      string  `json:"move"`
	Remaining []uint8 `json:"remaining"`
}

type undoPayload struct {
	Player string `json:"player"`
}

type turnPayload struct {
	Player string `json:"player"`
	Next   string `json:"next"`
}

type cubePayload struct {
	By    string `json:"by"`
	Value int    `json:"value"`
}

type gameOverPayload struct {
	Winner         string `json:"winner"`
	Classification string `json:"classification"`
	CubeValue      int    `json:"cubeValue"`
	Stakes         int    `json:"stakes"`
	Reason         string `json:"reason"`
	ScoreWhite     int    `json:"scoreWhite"`
	ScoreRed       int    `json:"scoreRed"`
}

type matchOverPayload struct {
	Winner      string `json:"winner"`
	ScoreWhite  int    `json:"scoreWhite"`
	ScoreRed    int    `json:"scoreRed"`
	Target      int    `json:"target"`
	GamesPlayed int    `json:"gamesPlayed"`
}

type analysisPayload struct {
	On    bool   `json:"on"`
	Owner string `json:"owner,omitempty"`
}

type evictPayload struct {
	Reason string `json:"reason"`
}

// handle dispatches one action on the actor goroutine.
func (o *Orchestrator) handle(a *actor, t task) (Result, error) {
	switch t.act.Op {
	case OpJoinMatch:
		return o.handleJoin(a, t)
	case OpWatchGame:
		return o.handleWatch(a, t)
	case OpGetState:
		return o.reply(a.sess, t.act), nil
	case OpRollDice:
		return o.handleRoll(a, t)
	case OpMakeMove:
		return o.handleMove(a, t)
	case OpUndoMove:
		return o.handleUndo(a, t)
	case OpEndTurn:
		return o.handleEndTurn(a, t)
	case OpOfferDouble:
		return o.handleOffer(a, t)
	case OpAcceptDouble:
		return o.handleAccept(a, t)
	case OpDeclineDouble:
		return o.handleDecline(a, t)
	case OpLeaveGame:
		return o.handleLeave(a, t)
	case OpAbandonGame:
		return o.handleAbandon(a, t)
	case OpSendChat:
		return o.handleChat(a, t)
	case OpEnterAnalysis:
		return o.handleEnterAnalysis(a, t)
	case OpExitAnalysis:
		return o.handleExitAnalysis(a, t)
	case OpSetDice:
		return o.handleSetDice(a, t)
	case opTimeout:
		return o.handleTimeout(a, t)
	case opBotFinish:
		return o.handleBotFinish(a, t)
	case opBotDone:
		a.botBusy = false
		o.maybeScheduleBot(a)
		return Result{}, nil
	case opEvict:
		return o.handleEvict(a, t)
	default:
		return Result{}, failf(KindValidation, ErrUnknownOp)
	}
}

// reply renders the session for the acting viewer.
func (o *Orchestrator) reply(sess *session.Session, act Action) Result {
	return Result{SessionID: sess.ID, State: o.buildState(sess, viewerFor(sess, act))}
}

func viewerFor(sess *session.Session, act Action) viewer {
	if act.HasSeat {
		return viewer{playerID: sess.Seat(act.Seat).PlayerID}
	}
	return viewer{
		playerID:  act.PlayerID,
		spectator: act.ConnID != "" && sess.IsSpectator(act.ConnID),
	}
}

// gameplayActor resolves the color an action plays as. In analysis
// mode the owner drives whichever color is to act.
func (o *Orchestrator) gameplayActor(sess *session.Session, act Action) (board.Color, error) {
	if act.HasSeat {
		return act.Seat, nil
	}
	if on, owner := sess.Analysis(); on {
		if act.PlayerID != owner {
			return 0, classify(ErrAnalysisDenied)
		}
		if sess.Engine == nil {
			return 0, classify(ErrGameNotRunning)
		}
		return sess.Engine.Turn(), nil
	}
	c, err := act.actor(sess.SeatOf)
	if err != nil {
		return 0, classify(err)
	}
	return c, nil
}

func (a *actor) liveEngine() (*engine.Engine, error) {
	if a.sess.Engine == nil {
		return nil, classify(ErrGameNotRunning)
	}
	return a.sess.Engine, nil
}

// announce emits one shared-payload event. Skipped when the submitting
// caller is gone; the mutation itself always stands.
func (o *Orchestrator) announce(t task, sess *session.Session, typ broadcast.Type, v uint64, payload any) {
	if t.canceled() {
		return
	}
	o.hub.Broadcast(sess.ID, broadcast.Event{
		Type:      typ,
		SessionID: sess.ID,
		Version:   v,
		Payload:   payload,
	}, nil)
}

// fanoutState pushes a per-viewer snapshot to the whole room.
func (o *Orchestrator) fanoutState(t task, sess *session.Session, typ broadcast.Type, v uint64) {
	if t.canceled() {
		return
	}
	o.hub.BroadcastEach(sess.ID, func(reg broadcast.Registration) (broadcast.Event, bool) {
		sv := o.buildState(sess, viewer{playerID: reg.PlayerID, spectator: reg.Spectator})
		sv.Version = v
		return broadcast.Event{Type: typ, SessionID: sess.ID, Version: v, Payload: sv}, true
	})
}

func moveEvent(sess *session.Session, c board.Color, kind, detail string) analytics.MoveEvent {
	ev := analytics.MoveEvent{
		SessionID:  sess.ID,
		GameNumber: sess.GameNumber(),
		Version:    sess.Version(),
		Color:      c.String(),
		Kind:       kind,
		Detail:     detail,
		At:         time.Now(),
	}
	if e := sess.Engine; e != nil {
		ev.PositionID = board.PositionID(e.Board())
	}
	return ev
}

func (o *Orchestrator) handleJoin(a *actor, t task) (Result, error) {
	sess, act := a.sess, t.act
	if act.PlayerID == "" {
		return Result{}, failf(KindValidation, errors.New("player id required"))
	}
	c, seated := sess.SeatOf(act.PlayerID)
	if !seated {
		open, ok := sess.OpenSeat()
		if !ok {
			return Result{}, failf(KindContention, ErrSeatOccupied)
		}
		if err := sess.BindSeat(open, act.PlayerID); err != nil {
			return Result{}, classify(err)
		}
		c = open
	}
	o.attach(sess, c, act)
	sess.Touch()
	v := sess.NextVersion()
	o.announce(t, sess, broadcast.PlayerJoined, v, joinPayload{
		Player:    act.PlayerID,
		Seat:      c.String(),
		Reconnect: seated,
	})
	if sess.BothSeated() && sess.Engine == nil {
		if err := o.startGame(a); err != nil {
			return Result{}, err
		}
	}
	res := o.reply(sess, act)
	res.Seat = c.String()
	return res, nil
}

func (o *Orchestrator) attach(sess *session.Session, c board.Color, act Action) {
	if act.ConnID == "" {
		return
	}
	sess.AttachConn(c, act.ConnID)
	o.reg.BindConn(act.ConnID, sess.ID)
	if err := o.hub.Join(sess.ID, broadcast.Registration{
		ConnID:   act.ConnID,
		PlayerID: act.PlayerID,
		Seat:     c,
	}); err != nil {
		o.log.Warnw("hub join failed", "session", sess.ID, "conn", act.ConnID, "error", err)
	}
}

func (o *Orchestrator) handleWatch(a *actor, t task) (Result, error) {
	sess, act := a.sess, t.act
	if act.ConnID != "" {
		sess.AttachSpectator(act.ConnID)
		o.reg.BindConn(act.ConnID, sess.ID)
		if err := o.hub.Join(sess.ID, broadcast.Registration{
			ConnID:    act.ConnID,
			PlayerID:  act.PlayerID,
			Spectator: true,
		}); err != nil {
			o.log.Warnw("hub join failed", "session", sess.ID, "conn", act.ConnID, "error", err)
		}
	}
	v := sess.NextVersion()
	o.announce(t, sess, broadcast.SpectatorJoined, v, spectatorPayload{Spectators: sess.SpectatorCount()})
	return o.reply(sess, act), nil
}

func (o *Orchestrator) handleRoll(a *actor, t task) (Result, error) {
	c, err := o.gameplayActor(a.sess, t.act)
	if err != nil {
		return Result{}, err
	}
	if _, err := a.liveEngine(); err != nil {
		return Result{}, err
	}
	if _, err := o.doRoll(a, t, c); err != nil {
		return Result{}, err
	}
	return o.reply(a.sess, t.act), nil
}

func (o *Orchestrator) doRoll(a *actor, t task, c board.Color) (board.Roll, error) {
	sess := a.sess
	e := sess.Engine
	roll, err := e.Roll(c)
	if err != nil {
		return board.Roll{}, classify(err)
	}
	sess.Touch()
	v := sess.NextVersion()
	o.announce(t, sess, broadcast.DiceRolled, v, rollPayload{
		Player: c.String(),
		Roll:   roll.String(),
		Dice:   e.RemainingDice(),
	})
	o.fanoutState(t, sess, broadcast.GameUpdate, v)
	o.rec.RecordMove(moveEvent(sess, c, "roll", roll.String()))
	return roll, nil
}

func (o *Orchestrator) handleMove(a *actor, t task) (Result, error) {
	act := t.act
	if act.Move.From < 0 || act.Move.From > 25 || act.Move.To < 0 || act.Move.To > 25 ||
		act.Move.Die < 1 || act.Move.Die > 6 {
		return Result{}, failf(KindValidation, engine.ErrIllegalMove)
	}
	c, err := o.gameplayActor(a.sess, act)
	if err != nil {
		return Result{}, err
	}
	if _, err := a.liveEngine(); err != nil {
		return Result{}, err
	}
	mv := board.NewMove(act.Move.From, act.Move.To, act.Move.Die)
	if err := o.doMove(a, t, c, mv); err != nil {
		return Result{}, err
	}
	return o.reply(a.sess, act), nil
}

func (o *Orchestrator) doMove(a *actor, t task, c board.Color, mv board.Move) error {
	sess := a.sess
	e := sess.Engine
	if err := e.Apply(mv, c); err != nil {
		return classify(err)
	}
	sess.Touch()
	v := sess.NextVersion()
	o.announce(t, sess, broadcast.MovePlayed, v, movePayload{
		Player:    c.String(),
		Move:      mv.String(),
		Remaining: e.RemainingDice(),
	})
	o.fanoutState(t, sess, broadcast.GameUpdate, v)
	o.rec.RecordMove(moveEvent(sess, c, "move", mv.String()))
	if e.Phase() == engine.PhaseOver {
		o.settle(a)
	}
	return nil
}

func (o *Orchestrator) handleUndo(a *actor, t task) (Result, error) {
	c, err := o.gameplayActor(a.sess, t.act)
	if err != nil {
		return Result{}, err
	}
	e, err := a.liveEngine()
	if err != nil {
		return Result{}, err
	}
	if err := e.Undo(c); err != nil {
		return Result{}, classify(err)
	}
	sess := a.sess
	sess.Touch()
	v := sess.NextVersion()
	o.announce(t, sess, broadcast.MoveUndone, v, undoPayload{Player: c.String()})
	o.fanoutState(t, sess, broadcast.GameUpdate, v)
	o.rec.RecordMove(moveEvent(sess, c, "undo", ""))
	return o.reply(sess, t.act), nil
}

func (o *Orchestrator) handleEndTurn(a *actor, t task) (Result, error) {
	c, err := o.gameplayActor(a.sess, t.act)
	if err != nil {
		return Result{}, err
	}
	if _, err := a.liveEngine(); err != nil {
		return Result{}, err
	}
	if err := o.doEndTurn(a, t, c); err != nil {
		return Result{}, err
	}
	return o.reply(a.sess, t.act), nil
}

func (o *Orchestrator) doEndTurn(a *actor, t task, c board.Color) error {
	sess := a.sess
	e := sess.Engine
	if err := e.EndTurn(c); err != nil {
		return classify(err)
	}
	next := e.Turn()
	sess.Touch()
	if on, _ := sess.Analysis(); !on {
		o.clock.StartTurn(sess.ID, next)
	}
	v := sess.NextVersion()
	o.announce(t, sess, broadcast.TurnEnded, v, turnPayload{Player: c.String(), Next: next.String()})
	o.fanoutState(t, sess, broadcast.GameUpdate, v)
	o.rec.RecordMove(moveEvent(sess, c, "end_turn", ""))
	o.maybeScheduleBot(a)
	return nil
}

func (o *Orchestrator) handleOffer(a *actor, t task) (Result, error) {
	c, err := o.gameplayActor(a.sess, t.act)
	if err != nil {
		return Result{}, err
	}
	e, err := a.liveEngine()
	if err != nil {
		return Result{}, err
	}
	if err := e.OfferDouble(c); err != nil {
		return Result{}, classify(err)
	}
	sess := a.sess
	sess.Touch()
	v := sess.NextVersion()
	o.announce(t, sess, broadcast.DoubleOffered, v, cubePayload{By: c.String(), Value: e.Cube().Value * 2})
	o.fanoutState(t, sess, broadcast.GameUpdate, v)
	o.rec.RecordMove(moveEvent(sess, c, "double_offer", ""))
	o.maybeScheduleBot(a)
	return o.reply(sess, t.act), nil
}

func (o *Orchestrator) handleAccept(a *actor, t task) (Result, error) {
	c, err := o.gameplayActor(a.sess, t.act)
	if err != nil {
		return Result{}, err
	}
	e, err := a.liveEngine()
	if err != nil {
		return Result{}, err
	}
	if err := e.AcceptDouble(c); err != nil {
		return Result{}, classify(err)
	}
	sess := a.sess
	sess.Touch()
	v := sess.NextVersion()
	o.announce(t, sess, broadcast.DoubleAccepted, v, cubePayload{By: c.String(), Value: e.Cube().Value})
	o.fanoutState(t, sess, broadcast.GameUpdate, v)
	o.rec.RecordMove(moveEvent(sess, c, "double_accept", ""))
	o.maybeScheduleBot(a)
	return o.reply(sess, t.act), nil
}

func (o *Orchestrator) handleDecline(a *actor, t task) (Result, error) {
	c, err := o.gameplayActor(a.sess, t.act)
	if err != nil {
		return Result{}, err
	}
	e, err := a.liveEngine()
	if err != nil {
		return Result{}, err
	}
	if err := e.DeclineDouble(c); err != nil {
		return Result{}, classify(err)
	}
	sess := a.sess
	sess.Touch()
	v := sess.NextVersion()
	o.announce(t, sess, broadcast.DoubleDeclined, v, cubePayload{By: c.String(), Value: e.Cube().Value})
	o.rec.RecordMove(moveEvent(sess, c, "double_decline", ""))
	o.settle(a)
	return o.reply(sess, t.act), nil
}

func (o *Orchestrator) handleLeave(a *actor, t task) (Result, error) {
	sess, act := a.sess, t.act
	if act.ConnID == "" {
		return Result{SessionID: sess.ID}, nil
	}

	var left *board.Color
	if !sess.IsSpectator(act.ConnID) {
		for _, c := range []board.Color{board.White, board.Red} {
			for _, id := range sess.SeatConns(c) {
				if id == act.ConnID {
					cc := c
					left = &cc
				}
			}
		}
	}
	if !sess.DetachConn(act.ConnID) {
		return Result{SessionID: sess.ID}, nil
	}
	o.reg.UnbindConn(act.ConnID)
	o.hub.Leave(sess.ID, act.ConnID)
	sess.Touch()

	if left != nil && len(sess.SeatConns(*left)) == 0 {
		v := sess.NextVersion()
		o.announce(t, sess, broadcast.PlayerLeft, v, leavePayload{
			Player: sess.Seat(*left).PlayerID,
			Seat:   left.String(),
		})
	}
	// A session nobody ever played in does not linger for the sweeper.
	if sess.ConnCount() == 0 && sess.Engine == nil {
		return o.evict(a, "empty before start")
	}
	return Result{SessionID: sess.ID}, nil
}

func (o *Orchestrator) handleAbandon(a *actor, t task) (Result, error) {
	sess, act := a.sess, t.act
	c, err := act.actor(sess.SeatOf)
	if err != nil {
		return Result{}, classify(err)
	}
	if sess.Match.Complete {
		return Result{}, failf(KindTerminal, ErrMatchDecided)
	}
	e := sess.Engine
	if e == nil {
		// No opponent ever arrived; nothing to score.
		return o.evict(a, "abandoned")
	}
	if _, err := e.Forfeit(c, match.ReasonAbandoned); err != nil {
		return Result{}, classify(err)
	}
	o.rec.RecordMove(moveEvent(sess, c, "abandon", ""))
	o.settle(a)
	return o.reply(sess, act), nil
}

func (o *Orchestrator) handleTimeout(a *actor, t task) (Result, error) {
	sess := a.sess
	flagged := t.act.Seat
	e := sess.Engine
	if e == nil {
		return Result{}, nil
	}
	if _, over := e.Result(); over {
		return Result{}, nil
	}
	metrics.TimeoutsTotal.Inc()
	o.log.Infow("reserve exhausted", "session", sess.ID, "player", flagged.String())
	if _, err := e.Forfeit(flagged, match.ReasonTimeout); err != nil {
		return Result{}, classify(err)
	}
	o.settle(a)
	return Result{}, nil
}

func (o *Orchestrator) handleChat(a *actor, t task) (Result, error) {
	sess, act := a.sess, t.act
	text := strings.TrimSpace(act.Text)
	if text == "" {
		return Result{}, failf(KindValidation, ErrEmptyChat)
	}
	if len(text) > maxChatBytes {
		return Result{}, failf(KindValidation, errors.New("chat text too long"))
	}
	entry := session.ChatEntry{PlayerID: act.PlayerID, Text: text, At: time.Now()}
	sess.AppendChat(entry)
	sess.Touch()
	v := sess.NextVersion()
	o.announce(t, sess, broadcast.ChatMessage, v, entry)
	return Result{SessionID: sess.ID}, nil
}

func (o *Orchestrator) handleEnterAnalysis(a *actor, t task) (Result, error) {
	sess, act := a.sess, t.act
	owner := act.PlayerID
	if act.Admin && owner == "" {
		owner = "admin"
	}
	if !act.Admin {
		if _, ok := sess.SeatOf(act.PlayerID); !ok {
			return Result{}, classify(session.ErrNotSeated)
		}
	}
	if on, held := sess.Analysis(); on && held != owner && !act.Admin {
		return Result{}, classify(ErrAnalysisDenied)
	}
	sess.SetAnalysis(true, owner)
	o.clock.Pause(sess.ID)
	sess.Touch()
	v := sess.NextVersion()
	o.announce(t, sess, broadcast.AnalysisChanged, v, analysisPayload{On: true, Owner: owner})
	o.fanoutState(t, sess, broadcast.GameUpdate, v)
	return o.reply(sess, act), nil
}

func (o *Orchestrator) handleExitAnalysis(a *actor, t task) (Result, error) {
	sess, act := a.sess, t.act
	on, owner := sess.Analysis()
	if !on {
		return Result{}, failf(KindValidation, ErrNotInAnalysis)
	}
	if !act.Admin && act.PlayerID != owner {
		return Result{}, classify(ErrAnalysisDenied)
	}
	sess.SetAnalysis(false, "")
	// Turns may have advanced under analysis; re-arm for whoever acts
	// now rather than resuming a stale mover.
	if e := sess.Engine; e != nil && e.Phase() != engine.PhaseOver {
		o.clock.StartTurn(sess.ID, e.Turn())
	}
	sess.Touch()
	v := sess.NextVersion()
	o.announce(t, sess, broadcast.AnalysisChanged, v, analysisPayload{On: false})
	o.fanoutState(t, sess, broadcast.GameUpdate, v)
	o.maybeScheduleBot(a)
	return o.reply(sess, act), nil
}

func (o *Orchestrator) handleSetDice(a *actor, t task) (Result, error) {
	sess, act := a.sess, t.act
	allowed := act.Admin
	if !allowed {
		if on, owner := sess.Analysis(); on && owner == act.PlayerID {
			allowed = true
		}
	}
	if !allowed {
		return Result{}, classify(ErrAnalysisDenied)
	}
	if len(act.Dice) != 2 {
		return Result{}, failf(KindValidation, ErrBadDice)
	}
	for _, d := range act.Dice {
		if d < 1 || d > 6 {
			return Result{}, failf(KindValidation, ErrBadDice)
		}
	}
	a.roller.Push(act.Dice...)
	sess.Touch()
	o.log.Infow("dice scripted", "session", sess.ID, "dice", act.Dice, "admin", act.Admin)
	return o.reply(sess, act), nil
}

func (o *Orchestrator) handleEvict(a *actor, t task) (Result, error) {
	sess := a.sess
	if t.act.Reason == "idle" {
		// Re-check under the actor; the session may have woken since
		// the sweeper's scan.
		if time.Since(sess.LastActivity()) < o.cfg.SessionTTL {
			return Result{}, nil
		}
		if !sess.Match.Complete && sess.ConnCount() > 0 {
			return Result{}, nil
		}
	}
	return o.evict(a, t.act.Reason)
}

// evict checkpoints the session synchronously, tells the room goodbye
// and tears the actor down.
func (o *Orchestrator) evict(a *actor, reason string) (Result, error) {
	sess := a.sess
	ctx, cancel := context.WithTimeout(context.Background(), checkpointTimeout)
	defer cancel()
	start := time.Now()
	if sess.Engine != nil {
		if err := o.store.SaveGame(ctx, gameSnapshot(sess)); err != nil {
			o.log.Errorw("eviction game checkpoint failed", "session", sess.ID, "error", err)
		}
	}
	if err := o.store.SaveMatch(ctx, matchSnapshot(sess)); err != nil {
		o.log.Errorw("eviction match checkpoint failed", "session", sess.ID, "error", err)
	}
	metrics.CheckpointSeconds.Observe(time.Since(start).Seconds())

	v := sess.NextVersion()
	o.hub.Broadcast(sess.ID, broadcast.Event{
		Type:      broadcast.SessionEvicted,
		SessionID: sess.ID,
		Version:   v,
		Payload:   evictPayload{Reason: reason},
	}, nil)
	o.removeActor(a)
	o.log.Infow("session evicted", "session", sess.ID, "reason", reason)
	return Result{SessionID: sess.ID}, nil
}

// settle runs the game-terminal pipeline: score the match, announce,
// persist and publish off the actor, then either finish the match or
// deal the next game.
func (o *Orchestrator) settle(a *actor) {
	sess := a.sess
	e := sess.Engine
	res, over := e.Result()
	if !over {
		return
	}
	m := sess.Match
	if err := m.ApplyResult(res); err != nil {
		o.log.Errorw("result application failed", "session", sess.ID, "error", err)
		return
	}
	metrics.GamesCompleted.WithLabelValues(res.Classification.String()).Inc()
	sess.Touch()

	none := task{}
	v := sess.NextVersion()
	o.announce(none, sess, broadcast.GameOver, v, gameOverPayload{
		Winner:         res.Winner.String(),
		Classification: res.Classification.String(),
		CubeValue:      res.CubeValue,
		Stakes:         res.Stakes,
		Reason:         res.Reason.String(),
		ScoreWhite:     m.Score[board.White],
		ScoreRed:       m.Score[board.Red],
	})
	o.fanoutState(none, sess, broadcast.GameUpdate, v)

	now := time.Now()
	o.rec.RecordGame(analytics.GameEvent{
		SessionID:      sess.ID,
		GameNumber:     sess.GameNumber(),
		Winner:         res.Winner.String(),
		Classification: res.Classification.String(),
		CubeValue:      res.CubeValue,
		Stakes:         res.Stakes,
		Reason:         res.Reason.String(),
		WhiteScore:     m.Score[board.White],
		RedScore:       m.Score[board.Red],
		EndedAt:        now,
	})

	gs := gameSnapshot(sess)
	ms := matchSnapshot(sess)
	rr := store.ResultRecord{
		SessionID:      sess.ID,
		GameNumber:     sess.GameNumber(),
		Winner:         res.Winner.String(),
		Classification: res.Classification.String(),
		CubeValue:      res.CubeValue,
		Stakes:         res.Stakes,
		Reason:         res.Reason.String(),
		EndedAt:        now,
	}
	o.checkpointAsync(sess.ID, func(ctx context.Context) error {
		if err := o.store.SaveGame(ctx, gs); err != nil {
			return err
		}
		if err := o.store.AppendResult(ctx, rr); err != nil {
			return err
		}
		return o.store.SaveMatch(ctx, ms)
	})
	o.log.Infow("game settled",
		"session", sess.ID,
		"game", sess.GameNumber(),
		"winner", res.Winner.String(),
		"classification", res.Classification.String(),
		"stakes", res.Stakes,
		"reason", res.Reason.String(),
	)

	if m.Complete {
		v2 := sess.NextVersion()
		o.announce(none, sess, broadcast.MatchOver, v2, matchOverPayload{
			Winner:      m.Winner.String(),
			ScoreWhite:  m.Score[board.White],
			ScoreRed:    m.Score[board.Red],
			Target:      m.Target,
			GamesPlayed: m.GamesPlayed,
		})
		o.rec.RecordMatch(analytics.MatchEvent{
			SessionID:   sess.ID,
			Target:      m.Target,
			Winner:      m.Winner.String(),
			WhiteScore:  m.Score[board.White],
			RedScore:    m.Score[board.Red],
			GamesPlayed: m.GamesPlayed,
			EndedAt:     now,
		})
		o.clock.Remove(sess.ID)
		o.log.Infow("match complete", "session", sess.ID, "winner", m.Winner.String(),
			"score", map[string]int{"white": m.Score[board.White], "red": m.Score[board.Red]})
		return
	}
	if err := o.startGame(a); err != nil {
		o.log.Errorw("next game failed to start", "session", sess.ID, "error", err)
	}
}

// startGame deals the next game: fresh engine, opening roll, clock
// refill, a per-viewer GameStarted snapshot and a start checkpoint.
func (o *Orchestrator) startGame(a *actor) error {
	sess := a.sess
	num := sess.NextGame()
	e := engine.NewGame(sess.Roller, sess.Match.Crawford)
	roll, opener, err := e.Start()
	if err != nil {
		return failf(KindInternal, err)
	}
	sess.Engine = e
	sess.Touch()
	o.clock.NewGame(sess.ID)
	if on, _ := sess.Analysis(); !on {
		o.clock.StartTurn(sess.ID, opener)
	}

	v := sess.NextVersion()
	o.fanoutState(task{}, sess, broadcast.GameStarted, v)
	o.rec.RecordMove(moveEvent(sess, opener, "game_start", roll.String()))

	gs := gameSnapshot(sess)
	ms := matchSnapshot(sess)
	o.checkpointAsync(sess.ID, func(ctx context.Context) error {
		if err := o.store.SaveGame(ctx, gs); err != nil {
			return err
		}
		return o.store.SaveMatch(ctx, ms)
	})
	o.log.Infow("game started",
		"session", sess.ID,
		"game", num,
		"opener", opener.String(),
		"roll", roll.String(),
		"crawford", e.Crawford(),
	)
	o.maybeScheduleBot(a)
	return nil
}
