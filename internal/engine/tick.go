package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the real time between steps of the run loop.
const DefaultInterval = 50 * time.Millisecond

// Engine drives a Game from the wall clock.
type Engine struct {
	Game     *Game
	Interval time.Duration // time between steps (default 50ms)

	// AutosaveEvery calls OnAutosave every that many steps; 0 disables it.
	AutosaveEvery uint64

	OnTick     func(step uint64) // after every step that ran
	OnAutosave func(step uint64)

	steps atomic.Uint64
	mu    sync.Mutex
	stop  chan struct{} // non-nil while running
	now   func() time.Time
}

// NewEngine creates a run loop for g with default settings.
func NewEngine(g *Game) *Engine {
	return &Engine{
		Game:     g,
		Interval: DefaultInterval,
		now:      time.Now,
	}
}

// Run steps the game until Stop is called. It blocks.
func (e *Engine) Run() {
	e.mu.Lock()
	if e.stop != nil {
		e.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	e.stop = stop
	if e.Interval <= 0 {
		e.Interval = DefaultInterval
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.mu.Unlock()
	slog.Info("progression engine started", "step", e.steps.Load(), "interval", e.Interval)

	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()
	last := e.now()
	for {
		select {
		case <-stop:
			slog.Info("progression engine stopped", "step", e.steps.Load())
			return
		case <-ticker.C:
			now := e.now()
			e.Step(now.Sub(last).Seconds())
			last = now
		}
	}
}

// Stop halts the run loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}

// Steps returns how many steps have run. Safe to call while running.
func (e *Engine) Steps() uint64 { return e.steps.Load() }

// Running reports whether Run is looping.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stop != nil
}

// Step advances the game by real seconds, with offline catch-up and the dev
// speed applied. It reports whether the tick ran.
func (e *Engine) Step(real float64) bool {
	if !e.Game.Advance(real) {
		return false
	}
	n := e.steps.Add(1)

	if e.OnTick != nil {
		e.OnTick(n)
	}
	if e.AutosaveEvery > 0 && n%e.AutosaveEvery == 0 && e.OnAutosave != nil {
		e.OnAutosave(n)
	}
	return true
}

// Advance is Tick for wall-clock time: queued offline time is spent and the
// dev speed scales the result.
func (g *Game) Advance(real float64) bool {
	if !g.ticking.CompareAndSwap(false, true) {
		return false
	}
	defer g.ticking.Store(false)

	g.mu.Lock()
	defer g.mu.Unlock()
	diff := g.offlineDiff(real)
	diff *= g.Player.DevSpeed
	g.tick(diff)
	return true
}

// PlayTime renders a duration in seconds as "3d 4h 05m 06s".
func PlayTime(seconds float64) string {
	total := int64(seconds)
	if total < 0 {
		total = 0
	}
	s := total % 60
	m := total / 60 % 60
	h := total / 3600 % 24
	d := total / 86400
	if d > 0 {
		return fmt.Sprintf("%dd %dh %02dm %02ds", d, h, m, s)
	}
	if h > 0 {
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	}
	return fmt.Sprintf("%dm %02ds", m, s)
}
