// Package orchestrator is the service's single concurrency boundary.
// Every session owns one actor goroutine with a mailbox; all engine,
// match and session mutation for that session happens on that
// goroutine. External callers post actions through Submit and wait for
// the reply; internal producers (clock expiry, bot runner, sweeper)
// post without blocking their own loops. Slow work, persistence and
// analytics, runs off the actor against version-guarded idempotent
// sinks.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/analytics"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/bot"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/broadcast"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/clock"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/engine"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/match"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/metrics"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/session"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/store"
)

// Tunables and their defaults.
const (
	DefaultSessionTTL    = 30 * time.Minute
	DefaultSweepInterval = time.Minute
	DefaultBotThink      = 600 * time.Millisecond
	DefaultBotDeadline   = 10 * time.Second
	DefaultMailboxSize   = 64

	checkpointTimeout = 10 * time.Second
)

// Config tunes the orchestrator.
type Config struct {
	ChatHistory   int
	SessionTTL    time.Duration
	SweepInterval time.Duration
	BotThink      time.Duration
	BotDeadline   time.Duration
	MailboxSize   int

	// ClockEnabled turns on point clocks for new sessions.
	ClockEnabled bool

	// NewRoller supplies the dice source per session; nil means a
	// crypto-seeded PRNG.
	NewRoller func() board.Roller
}

func (c Config) withDefaults() Config {
	if c.ChatHistory <= 0 {
		c.ChatHistory = session.DefaultChatHistory
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.BotThink < 0 {
		c.BotThink = 0
	} else if c.BotThink == 0 {
		c.BotThink = DefaultBotThink
	}
	if c.BotDeadline <= 0 {
		c.BotDeadline = DefaultBotDeadline
	}
	if c.MailboxSize <= 0 {
		c.MailboxSize = DefaultMailboxSize
	}
	if c.NewRoller == nil {
		c.NewRoller = func() board.Roller { return board.NewCryptoSeededRoller() }
	}
	return c
}

// task is one unit of actor work. A nil reply means fire-and-forget.
type task struct {
	ctx   context.Context
	act   Action
	reply chan taskReply
}

type taskReply struct {
	res Result
	err error
}

// canceled reports whether the submitting caller has gone away; used
// to skip this action's broadcast, never to skip the mutation.
func (t task) canceled() bool {
	return t.ctx != nil && t.ctx.Err() != nil
}

// actor serializes one session. All fields beyond the channels are
// touched only from the actor goroutine.
type actor struct {
	id      string
	sess    *session.Session
	roller  *queuedRoller
	mailbox chan task
	stop    chan struct{}
	done    chan struct{}

	botBusy bool
}

// Orchestrator routes actions to per-session actors and owns the
// session lifecycle around them.
type Orchestrator struct {
	cfg   Config
	log   *zap.SugaredLogger
	reg   *session.Registry
	hub   *broadcast.Hub
	clock *clock.Controller
	store store.Gateway
	rec   analytics.Recorder
	bots  *bot.Registry

	mu     sync.Mutex
	actors map[string]*actor
	closed bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New wires an orchestrator. The clock controller is created here so
// its expiry and update callbacks feed back through the mailboxes.
func New(cfg Config, log *zap.SugaredLogger, reg *session.Registry, hub *broadcast.Hub, st store.Gateway, rec analytics.Recorder, bots *bot.Registry) *Orchestrator {
	o := &Orchestrator{
		cfg:    cfg.withDefaults(),
		log:    log,
		reg:    reg,
		hub:    hub,
		store:  st,
		rec:    rec,
		bots:   bots,
		actors: make(map[string]*actor),
	}
	o.baseCtx, o.cancel = context.WithCancel(context.Background())
	o.clock = clock.NewController(clock.DefaultTick, o.onClockExpire, o.onClockUpdate)
	return o
}

// Run drives the clock scheduler and the idle sweeper until ctx ends.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.clock.Run(ctx) })
	g.Go(func() error {
		o.sweep(ctx)
		return nil
	})
	return g.Wait()
}

// Submit executes one wire action and returns its reply. Internal ops
// are rejected here; they can only originate inside the process.
func (o *Orchestrator) Submit(ctx context.Context, act Action) (Result, error) {
	switch act.Op {
	case opTimeout, opBotFinish, opEvict, opBotDone:
		return Result{}, failf(KindValidation, ErrUnknownOp)
	case OpCreateMatch:
		return o.createMatch(ctx, act)
	}
	a, ok := o.actorFor(act.SessionID)
	if !ok {
		metrics.ActionsTotal.WithLabelValues(string(act.Op), KindNotFound.String()).Inc()
		return Result{}, failf(KindNotFound, ErrUnknownSession)
	}
	return o.send(ctx, a, act)
}

// send posts a task and waits for its reply.
func (o *Orchestrator) send(ctx context.Context, a *actor, act Action) (Result, error) {
	t := task{ctx: ctx, act: act, reply: make(chan taskReply, 1)}
	select {
	case a.mailbox <- t:
	case <-a.done:
		return Result{}, failf(KindTerminal, ErrSessionStopped)
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case r := <-t.reply:
		return r.res, r.err
	case <-a.done:
		// The actor may have replied just before exiting.
		select {
		case r := <-t.reply:
			return r.res, r.err
		default:
			return Result{}, failf(KindTerminal, ErrSessionStopped)
		}
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// post enqueues without waiting; internal producers must never block.
func (o *Orchestrator) post(sessionID string, act Action) {
	a, ok := o.actorFor(sessionID)
	if !ok {
		return
	}
	select {
	case a.mailbox <- task{act: act}:
	case <-a.done:
	default:
		o.log.Warnw("session mailbox full, dropping internal action",
			"session", sessionID, "op", act.Op)
	}
}

func (o *Orchestrator) actorFor(sessionID string) (*actor, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.actors[sessionID]
	return a, ok
}

func (o *Orchestrator) runActor(a *actor) {
	defer o.wg.Done()
	defer close(a.done)
	for {
		select {
		case <-a.stop:
			return
		case t := <-a.mailbox:
			o.serve(a, t)
		}
	}
}

func (o *Orchestrator) serve(a *actor, t task) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Errorw("action panicked", "session", a.id, "op", t.act.Op, "panic", r)
			if t.reply != nil {
				t.reply <- taskReply{err: failf(KindInternal, errors.New("internal error"))}
			}
			metrics.ActionsTotal.WithLabelValues(string(t.act.Op), KindInternal.String()).Inc()
			o.quarantine(a)
		}
	}()
	res, err := o.handle(a, t)
	if t.reply != nil {
		t.reply <- taskReply{res: res, err: err}
	}
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	metrics.ActionsTotal.WithLabelValues(string(t.act.Op), outcome).Inc()
}

// createMatch builds the session, its actor and its clock, then runs
// the creator's join through the new actor so seat attachment and a
// possible immediate game start serialize like everything else.
func (o *Orchestrator) createMatch(ctx context.Context, act Action) (Result, error) {
	if act.PlayerID == "" {
		return Result{}, failf(KindValidation, errors.New("player id required"))
	}
	if act.Target == 0 {
		act.Target = match.DefaultTargetScore
	}
	m, err := match.NewMatch(act.Target)
	if err != nil {
		return Result{}, classify(err)
	}

	botID := ""
	switch act.Opponent {
	case "", "human":
	case "bot":
		botID = act.BotID
		if botID == "" {
			botID = bot.DefaultID
		}
		if _, ok := o.bots.Get(botID); !ok {
			return Result{}, failf(KindNotFound, ErrUnknownBot)
		}
	default:
		return Result{}, failf(KindValidation, ErrBadOpponent)
	}

	id := uuid.NewString()
	sess := session.New(id, m, o.cfg.ChatHistory)
	roller := &queuedRoller{base: o.cfg.NewRoller()}
	sess.Roller = roller
	// The creator takes the first open seat through the join below.
	if botID != "" {
		if err := sess.BindBot(board.Red, botID); err != nil {
			return Result{}, classify(err)
		}
	}

	a := &actor{
		id:      id,
		sess:    sess,
		roller:  roller,
		mailbox: make(chan task, o.cfg.MailboxSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return Result{}, failf(KindTerminal, ErrShuttingDown)
	}
	o.actors[id] = a
	o.mu.Unlock()

	if err := o.reg.Add(sess); err != nil {
		o.mu.Lock()
		delete(o.actors, id)
		o.mu.Unlock()
		return Result{}, failf(KindInternal, err)
	}

	clockCfg := clock.Config{Mode: clock.ModeNone}
	if o.cfg.ClockEnabled {
		clockCfg = clock.PointConfig(m.Target)
	}
	o.clock.Register(id, clockCfg)

	o.wg.Add(1)
	go o.runActor(a)
	metrics.ActiveSessions.Inc()
	metrics.ActionsTotal.WithLabelValues(string(OpCreateMatch), "ok").Inc()
	o.log.Infow("match created", "session", id, "target", m.Target, "creator", act.PlayerID, "bot", botID)

	join := act
	join.Op = OpJoinMatch
	join.SessionID = id
	return o.send(ctx, a, join)
}

// Disconnect handles a dead connection: the owning session, if any,
// gets a leave action.
func (o *Orchestrator) Disconnect(connID string) {
	s, ok := o.reg.ByConn(connID)
	if !ok {
		return
	}
	o.post(s.ID, Action{Op: OpLeaveGame, SessionID: s.ID, ConnID: connID})
}

// EvictSession removes a session on admin request, with a final
// checkpoint and a terminal broadcast.
func (o *Orchestrator) EvictSession(ctx context.Context, sessionID, reason string) error {
	a, ok := o.actorFor(sessionID)
	if !ok {
		return failf(KindNotFound, ErrUnknownSession)
	}
	_, err := o.send(ctx, a, Action{Op: opEvict, SessionID: sessionID, Reason: reason, Admin: true})
	return err
}

// sweep evicts idle sessions. The idle check is re-run inside each
// actor so a session that woke up between scan and eviction survives.
func (o *Orchestrator) sweep(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range o.reg.Idle(o.cfg.SessionTTL, time.Now()) {
				o.post(s.ID, Action{Op: opEvict, SessionID: s.ID, Reason: "idle"})
			}
		}
	}
}

// Shutdown drains the orchestrator: no new sessions, a final
// checkpoint and eviction per session, then waits for every actor,
// bot and checkpoint goroutine.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	actors := make([]*actor, 0, len(o.actors))
	for _, a := range o.actors {
		actors = append(actors, a)
	}
	o.mu.Unlock()

	for _, a := range actors {
		if _, err := o.send(ctx, a, Action{Op: opEvict, SessionID: a.id, Reason: "shutdown"}); err != nil && KindOf(err) != KindTerminal {
			o.log.Warnw("shutdown eviction failed", "session", a.id, "error", err)
		}
	}
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onClockExpire runs on the clock scheduler; it only enqueues.
func (o *Orchestrator) onClockExpire(sessionID string, flagged board.Color) {
	o.post(sessionID, Action{Op: opTimeout, SessionID: sessionID, Seat: flagged, HasSeat: true})
}

// onClockUpdate relays throttled clock state straight to the room; no
// session lock is involved.
func (o *Orchestrator) onClockUpdate(sessionID string, v clock.View) {
	s, ok := o.reg.Get(sessionID)
	if !ok {
		return
	}
	o.hub.Broadcast(sessionID, broadcast.Event{
		Type:      broadcast.TimeUpdate,
		SessionID: sessionID,
		Version:   s.NextVersion(),
		Payload:   v,
	}, nil)
}

// removeActor tears down the registry, hub and clock footprint of one
// session; the actor loop exits after the current task.
func (o *Orchestrator) removeActor(a *actor) {
	o.mu.Lock()
	if _, ok := o.actors[a.id]; !ok {
		o.mu.Unlock()
		return
	}
	delete(o.actors, a.id)
	o.mu.Unlock()

	close(a.stop)
	o.clock.Remove(a.id)
	o.hub.DropSession(a.id)
	o.reg.Remove(a.id)
	metrics.ActiveSessions.Dec()
}

// quarantine tries to restore a session from its last checkpoint after
// an internal failure; if that fails the session is evicted.
func (o *Orchestrator) quarantine(a *actor) {
	sess := a.sess
	ctx, cancel := context.WithTimeout(context.Background(), checkpointTimeout)
	defer cancel()

	snap, err := o.store.LoadGame(ctx, a.id, sess.GameNumber())
	if err == nil {
		if b, perr := board.ParsePositionID(snap.PositionID); perr == nil {
			e := engine.NewGame(sess.Roller, snap.Crawford)
			if serr := e.SetForAnalysis(b, board.ParseColor(snap.Turn), snap.Dice); serr == nil {
				cu := e.Cube()
				cu.Value = snap.CubeValue
				cu.Owner = parseCubeOwner(snap.CubeOwner)
				sess.Engine = e
				v := sess.NextVersion()
				o.fanoutState(task{}, sess, broadcast.GameUpdate, v)
				o.log.Warnw("session restored from checkpoint", "session", a.id, "game", snap.GameNumber)
				return
			}
		}
	}
	o.log.Errorw("session restore failed, evicting", "session", a.id, "error", err)
	o.evict(a, "internal error")
}

func parseCubeOwner(s string) match.CubeOwner {
	switch s {
	case match.OwnerWhite.String():
		return match.OwnerWhite
	case match.OwnerRed.String():
		return match.OwnerRed
	default:
		return match.OwnerCenter
	}
}

// checkpointAsync persists off the actor; the store's version guard
// makes late or repeated writes harmless.
func (o *Orchestrator) checkpointAsync(sessionID string, write func(ctx context.Context) error) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), checkpointTimeout)
		defer cancel()
		start := time.Now()
		if err := write(ctx); err != nil {
			o.log.Errorw("checkpoint failed", "session", sessionID, "error", err)
			return
		}
		metrics.CheckpointSeconds.Observe(time.Since(start).Seconds())
	}()
}

// gameSnapshot captures the live game for persistence. Actor only.
func gameSnapshot(sess *session.Session) store.GameSnapshot {
	snap := store.GameSnapshot{
		SessionID:  sess.ID,
		GameNumber: sess.GameNumber(),
		Version:    sess.Version(),
		SavedAt:    time.Now(),
	}
	e := sess.Engine
	if e == nil {
		return snap
	}
	snap.PositionID = board.PositionID(e.Board())
	snap.Turn = e.Turn().String()
	snap.Dice = e.RemainingDice()
	cu := e.Cube()
	snap.CubeValue = cu.Value
	snap.CubeOwner = cu.Owner.String()
	snap.Crawford = e.Crawford()
	if res, over := e.Result(); over {
		snap.Over = true
		snap.Winner = res.Winner.String()
		snap.Classification = res.Classification.String()
		snap.Stakes = res.Stakes
		snap.Reason = res.Reason.String()
	}
	return snap
}

// matchSnapshot captures the series standing. Actor only.
func matchSnapshot(sess *session.Session) store.MatchSnapshot {
	m := sess.Match
	name := func(c board.Color) string {
		st := sess.Seat(c)
		if st.IsBot() {
			return "bot:" + st.BotID
		}
		return st.PlayerID
	}
	snap := store.MatchSnapshot{
		SessionID:    sess.ID,
		Target:       m.Target,
		WhiteScore:   m.Score[board.White],
		RedScore:     m.Score[board.Red],
		GamesPlayed:  m.GamesPlayed,
		Crawford:     m.Crawford,
		CrawfordDone: m.CrawfordDone,
		Complete:     m.Complete,
		White:        name(board.White),
		Red:          name(board.Red),
		Version:      sess.Version(),
		SavedAt:      time.Now(),
	}
	if m.Complete {
		snap.Winner = m.Winner.String()
	}
	return snap
}

// queuedRoller serves scripted die values ahead of its base roller so
// admin and analysis tooling can fix upcoming rolls.
type queuedRoller struct {
	mu    sync.Mutex
	queue []uint8
	base  board.Roller
}

func (q *queuedRoller) Push(dice ...uint8) {
	q.mu.Lock()
	q.queue = append(q.queue, dice...)
	q.mu.Unlock()
}

func (q *queuedRoller) Die() uint8 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) > 0 {
		d := q.queue[0]
		q.queue = q.queue[1:]
		return d
	}
	return q.base.Die()
}
