// Package engine runs the progression rules over a player store: derived
// gain and threshold values, the reset cascade, challenges, purchases and
// the clock that advances time.
package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/layer"
	"github.com/talgya/retribution/internal/notation"
	"github.com/talgya/retribution/internal/state"
)

// Options configures a Game. New fills zero numeric fields, the formatter
// and FixNaNs from DefaultOptions; start from DefaultOptions to keep
// offline production on.
type Options struct {
	StartPoints   bignum.Decimal
	MaxTickLength float64 // seconds; a longer tick is cut short
	OfflineLimit  float64 // hours of offline progress kept
	OfflineProd   bool

	PointGen     layer.Value[bignum.Decimal] // global points per second
	CanGenPoints layer.Value[bool]
	EndGame      layer.Value[bool] // once true the game is marked ended

	Formatter      bignum.Formatter
	OmegaThreshold bignum.Decimal

	// FixNaNs repairs poisoned values after each tick and returns the
	// repaired paths. Defaults to ZeroNaNs.
	FixNaNs func(*state.Player) []string
}

// DefaultOptions returns the stock engine settings.
func DefaultOptions() Options {
	return Options{
		StartPoints:    bignum.Zero,
		MaxTickLength:  3600,
		OfflineLimit:   8760,
		OfflineProd:    true,
		Formatter:      bignum.DefaultFormatter(),
		OmegaThreshold: notation.DefaultOmegaThreshold,
		FixNaNs:        ZeroNaNs,
	}
}

// Derived caches the values computed from a layer's state on each update.
type Derived struct {
	Amount    bignum.Decimal
	ResetGain bignum.Decimal
	NextAt    bignum.Decimal
	NextAtMax bignum.Decimal
	CanReset  bool
	Notify    bool
}

// Game owns a player store and applies the rules of a registry to it. All
// exported methods are safe for concurrent use; a tick and an action never
// interleave.
type Game struct {
	Registry *layer.Registry
	Player   *state.Player
	Events   []Event // recent events, capped at maxEvents
	LastTick uint64

	// OnEvent, when set, receives every event as it is emitted.
	OnEvent func(Event)

	opts    Options
	derived map[string]*Derived
	display *notation.Deducer

	mu      sync.Mutex
	ticking atomic.Bool
}

const maxEvents = 1000

// New creates a Game with a fresh store.
func New(reg *layer.Registry, opts Options) *Game {
	opts = withDefaults(opts)
	g := &Game{
		Registry: reg,
		opts:     opts,
		derived:  make(map[string]*Derived),
		display:  notation.NewDeducer(opts.Formatter, opts.OmegaThreshold),
	}
	g.Player = reg.NewPlayer(opts.StartPoints)
	g.updateDerived()
	return g
}

func withDefaults(o Options) Options {
	d := DefaultOptions()
	if o.MaxTickLength <= 0 {
		o.MaxTickLength = d.MaxTickLength
	}
	if o.OfflineLimit <= 0 {
		o.OfflineLimit = d.OfflineLimit
	}
	if o.Formatter.Precision == 0 {
		o.Formatter = d.Formatter
	}
	if o.OmegaThreshold.IsZero() {
		o.OmegaThreshold = d.OmegaThreshold
	}
	if o.FixNaNs == nil {
		o.FixNaNs = d.FixNaNs
	}
	return o
}

// Options returns the settings the game runs with.
func (g *Game) Options() Options { return g.opts }

// Load replaces the store with p, filling in layers it lacks.
func (g *Game) Load(p *state.Player) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Registry.Fill(p)
	g.Player = p
	clear(g.derived)
	g.updateDerived()
	slog.Info("save loaded", "id", p.ID, "points", g.opts.Formatter.Format(p.Points))
}

// HardReset discards all progress and starts a new store. The event log and
// tick counter start over with it.
func (g *Game) HardReset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Player = g.Registry.NewPlayer(g.opts.StartPoints)
	g.Events = nil
	g.LastTick = 0
	clear(g.derived)
	g.updateDerived()
	g.emit("system", "hard reset", nil)
	slog.Warn("hard reset", "id", g.Player.ID)
}

// Checkpoint returns a consistent copy of what a save needs: the store, the
// recent events and the tick counter.
func (g *Game) Checkpoint() (*state.Player, []Event, uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Player.Clone(), append([]Event(nil), g.Events...), g.LastTick
}

// SetDevSpeed scales simulated time; 0 pauses.
func (g *Game) SetDevSpeed(speed float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if speed < 0 {
		speed = 0
	}
	g.Player.DevSpeed = speed
	slog.Info("dev speed changed", "speed", speed)
}

// SetKeepGoing lets an ended game continue ticking.
func (g *Game) SetKeepGoing(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Player.KeepGoing = v
}

// ResetGain returns the cached gain a reset of id would award.
func (g *Game) ResetGain(id string) bignum.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.derivedOf(id).ResetGain
}

// NextThreshold returns the cached base amount needed for the next point.
func (g *Game) NextThreshold(id string, canMax bool) bignum.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	d := g.derivedOf(id)
	if canMax {
		return d.NextAtMax
	}
	return d.NextAt
}

// CanReset reports whether a manual reset of id would go through.
func (g *Game) CanReset(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.derivedOf(id).CanReset
}

// Display renders the global point total for the current retribution tier.
func (g *Game) Display() notation.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.display.Deduce(g.Player.Points, g.Player.Retributions)
}

func (g *Game) derivedOf(id string) *Derived {
	if d, ok := g.derived[id]; ok {
		return d
	}
	return &Derived{
		Amount:    bignum.Zero,
		ResetGain: bignum.Zero,
		NextAt:    bignum.Inf(),
		NextAtMax: bignum.Inf(),
	}
}

func (g *Game) ctx(id string) layer.Context {
	return layer.Context{Player: g.Player, Layer: id, Game: view{g}}
}

// hookFailed logs a recovered mod failure; the caller continues with the
// neutral value.
func (g *Game) hookFailed(id, what string, err error) {
	slog.Error("mod hook failed", "layer", id, "hook", what, "err", err)
}

func (g *Game) call(c layer.Context, what string, h func(layer.Context) error) {
	if err := layer.Call(c, what, h); err != nil {
		g.hookFailed(c.Layer, what, err)
	}
}

func (g *Game) dec(c layer.Context, what string, v layer.Value[bignum.Decimal], def bignum.Decimal) bignum.Decimal {
	out, err := v.Or(def).Resolve(c)
	if err != nil {
		g.hookFailed(c.Layer, what, err)
		return def
	}
	return out
}

func (g *Game) flag(c layer.Context, what string, v layer.Value[bool], def bool) bool {
	out, err := v.Or(def).Resolve(c)
	if err != nil {
		g.hookFailed(c.Layer, what, err)
		return def
	}
	return out
}

// view implements layer.Game on top of the unlocked internals, for use by
// mod functions that run while the engine lock is held.
type view struct{ g *Game }

func (v view) HasUpgrade(id string, upg int) bool {
	d := v.g.Player.Layer(id)
	return d != nil && d.HasUpgrade(upg)
}

func (v view) UpgradeEffect(id string, upg int) bignum.Decimal {
	return v.g.upgradeEffect(id, upg)
}

func (v view) BuyableEffect(id string, b int) bignum.Decimal {
	return v.g.buyableEffect(id, b)
}

func (v view) ChallengeEffect(id string, ch int) bignum.Decimal {
	return v.g.challengeEffect(id, ch)
}

func (v view) InChallenge(id string, ch int) bool {
	d := v.g.Player.Layer(id)
	return d != nil && d.ActiveChallenge == ch && ch != state.NoChallenge
}

func (v view) ResetGain(id string) bignum.Decimal { return v.g.derivedOf(id).ResetGain }

func (v view) DoReset(id string, force bool) { v.g.doReset(id, force) }
