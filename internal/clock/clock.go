// Package clock runs the per-session point clocks. One scheduler
// goroutine ticks every registered running clock; expiry and the
// throttled time updates are reported through callbacks fired outside
// the controller lock. The controller never touches session state
// directly, so it can never deadlock against the action path: expiry
// is turned into an ordinary session action by the owner of the
// callback.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
)

// Mode selects the timing rule for a session.
type Mode uint8

const (
	// ModeNone plays without clocks.
	ModeNone Mode = iota
	// ModePoint gives each move a free delay, then burns the mover's
	// reserve. An empty reserve forfeits the match.
	ModePoint
)

// Scheduler cadence and update throttle.
const (
	DefaultTick    = 250 * time.Millisecond
	updateInterval = time.Second
)

// Defaults for match play.
const (
	DefaultDelay            = 12 * time.Second
	DefaultReservePerTarget = 2 * time.Minute
)

// Config fixes a session's timing rule.
type Config struct {
	Mode    Mode
	Delay   time.Duration
	Reserve time.Duration
}

// PointConfig returns the standard point-clock settings for a match to
// the given target: 12 s delay and two reserve minutes per point.
func PointConfig(target int) Config {
	return Config{
		Mode:    ModePoint,
		Delay:   DefaultDelay,
		Reserve: time.Duration(target) * DefaultReservePerTarget,
	}
}

// View is a wire-ready snapshot of one session's clock.
type View struct {
	Mode           string `json:"mode"`
	Running        bool   `json:"running"`
	Expired        bool   `json:"expired"`
	Mover          string `json:"mover,omitempty"`
	DelayMS        int64  `json:"delayMs"`
	WhiteReserveMS int64  `json:"whiteReserveMs"`
	RedReserveMS   int64  `json:"redReserveMs"`
}

type state struct {
	cfg      Config
	mover    board.Color
	delay    time.Duration
	reserve  [2]time.Duration
	running  bool
	expired  bool
	lastEmit time.Time
}

func (st *state) view() View {
	mode := "none"
	if st.cfg.Mode == ModePoint {
		mode = "point"
	}
	v := View{
		Mode:           mode,
		Running:        st.running,
		Expired:        st.expired,
		DelayMS:        st.delay.Milliseconds(),
		WhiteReserveMS: st.reserve[board.White].Milliseconds(),
		RedReserveMS:   st.reserve[board.Red].Milliseconds(),
	}
	if st.running || st.expired {
		v.Mover = st.mover.String()
	}
	return v
}

// Controller owns every session clock and the single tick loop.
type Controller struct {
	mu     sync.Mutex
	clocks map[string]*state
	tick   time.Duration

	// onExpire fires once when a reserve empties; the flagged color is
	// the mover whose time ran out.
	onExpire func(sessionID string, flagged board.Color)
	// onUpdate fires at most once per second per running clock.
	onUpdate func(sessionID string, v View)
}

// NewController creates a controller ticking at the given cadence.
func NewController(tick time.Duration, onExpire func(string, board.Color), onUpdate func(string, View)) *Controller {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Controller{
		clocks:   make(map[string]*state),
		tick:     tick,
		onExpire: onExpire,
		onUpdate: onUpdate,
	}
}

// Run ticks until the context ends.
func (c *Controller) Run(ctx context.Context) error {
	t := time.NewTicker(c.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			c.step(c.tick, now)
		}
	}
}

// Register installs a clock for a session. ModeNone registers a stub
// so Snapshot still answers.
func (c *Controller) Register(sessionID string, cfg Config) {
	c.mu.Lock()
	st := &state{cfg: cfg}
	st.reserve[board.White] = cfg.Reserve
	st.reserve[board.Red] = cfg.Reserve
	c.clocks[sessionID] = st
	c.mu.Unlock()
}

// Remove drops a session's clock.
func (c *Controller) Remove(sessionID string) {
	c.mu.Lock()
	delete(c.clocks, sessionID)
	c.mu.Unlock()
}

// StartTurn arms the delay for the mover and starts the burn. The
// previous mover's remaining delay is discarded.
func (c *Controller) StartTurn(sessionID string, mover board.Color) {
	c.mu.Lock()
	if st, ok := c.clocks[sessionID]; ok && st.cfg.Mode == ModePoint && !st.expired {
		st.mover = mover
		st.delay = st.cfg.Delay
		st.running = true
	}
	c.mu.Unlock()
}

// Pause suspends the burn, keeping remaining delay and reserve.
func (c *Controller) Pause(sessionID string) {
	c.mu.Lock()
	if st, ok := c.clocks[sessionID]; ok {
		st.running = false
	}
	c.mu.Unlock()
}

// Resume continues a paused clock for the same mover.
func (c *Controller) Resume(sessionID string) {
	c.mu.Lock()
	if st, ok := c.clocks[sessionID]; ok && st.cfg.Mode == ModePoint && !st.expired {
		st.running = true
	}
	c.mu.Unlock()
}

// NewGame refills both reserves for the next game of the match and
// clears the expiry latch.
func (c *Controller) NewGame(sessionID string) {
	c.mu.Lock()
	if st, ok := c.clocks[sessionID]; ok {
		st.reserve[board.White] = st.cfg.Reserve
		st.reserve[board.Red] = st.cfg.Reserve
		st.delay = 0
		st.running = false
		st.expired = false
	}
	c.mu.Unlock()
}

// Snapshot returns the current view of a session's clock.
func (c *Controller) Snapshot(sessionID string) (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.clocks[sessionID]
	if !ok {
		return View{}, false
	}
	return st.view(), true
}

type expiry struct {
	sessionID string
	flagged   board.Color
}

type update struct {
	sessionID string
	v         View
}

// step advances every running clock by elapsed. Callbacks collected
// under the lock fire after it is released.
func (c *Controller) step(elapsed time.Duration, now time.Time) {
	var expiries []expiry
	var updates []update

	c.mu.Lock()
	for sid, st := range c.clocks {
		if !st.running || st.expired {
			continue
		}

		// Delay burns first; only the remainder hits the reserve.
		burn := elapsed
		if st.delay > 0 {
			if st.delay >= burn {
				st.delay -= burn
				burn = 0
			} else {
				burn -= st.delay
				st.delay = 0
			}
		}
		if burn > 0 {
			st.reserve[st.mover] -= burn
			if st.reserve[st.mover] <= 0 {
				st.reserve[st.mover] = 0
				st.expired = true
				st.running = false
				expiries = append(expiries, expiry{sessionID: sid, flagged: st.mover})
			}
		}

		if now.Sub(st.lastEmit) >= updateInterval {
			st.lastEmit = now
			updates = append(updates, update{sessionID: sid, v: st.view()})
		}
	}
	c.mu.Unlock()

	for _, e := range expiries {
		if c.onExpire != nil {
			c.onExpire(e.sessionID, e.flagged)
		}
	}
	for _, u := range updates {
		if c.onUpdate != nil {
			c.onUpdate(u.sessionID, u.v)
		}
	}
}
