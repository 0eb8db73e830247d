package engine

import (
	"log/slog"
	"math"

	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/layer"
	"github.com/talgya/retribution/internal/state"
)

// Tick advances the game by diff seconds. A call made while another tick is
// running is dropped and reports false.
func (g *Game) Tick(diff float64) bool {
	if !g.ticking.CompareAndSwap(false, true) {
		slog.Debug("tick dropped, previous tick still running")
		return false
	}
	defer g.ticking.Store(false)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.tick(diff)
	return true
}

// sanitize coerces a raw delta into a usable tick length.
func (g *Game) sanitize(diff float64) float64 {
	if math.IsNaN(diff) || diff < 0 {
		diff = 0
	}
	if g.Player.GameEnded && !g.Player.KeepGoing {
		diff = 0
	}
	return clamp(diff, 0, g.opts.MaxTickLength)
}

func (g *Game) tick(diff float64) {
	g.LastTick++
	diff = g.sanitize(diff)
	p := g.Player

	g.updateDerived()

	p.TotalTime += diff
	if g.canGenPoints() {
		gen := g.dec(g.ctx(""), "pointGen", g.opts.PointGen, bignum.Zero)
		p.Points = p.Points.Add(gen.Mul(bignum.FromFloat(diff))).Max(bignum.Zero)
	}

	for _, id := range g.Registry.Ascending() {
		def, _ := g.Registry.Get(id)
		g.updateLayer(def, diff)
	}
	for _, id := range g.Registry.Descending() {
		def, _ := g.Registry.Get(id)
		g.automateLayer(def)
	}

	for _, id := range g.Registry.IDs() {
		def, _ := g.Registry.Get(id)
		g.checkUnlock(def)
		g.updateMilestones(def)
		g.updateAchievements(def)
	}

	if !p.GameEnded && g.flag(g.ctx(""), "isEndgame", g.opts.EndGame, false) {
		p.GameEnded = true
		g.emit("system", "the end has been reached", nil)
		slog.Info("game ended", "total_time", p.TotalTime)
	}

	if fixed := g.opts.FixNaNs(p); len(fixed) > 0 {
		slog.Warn("repaired poisoned values", "paths", fixed)
	}
	g.updateDerived()
}

func (g *Game) canGenPoints() bool {
	if !g.opts.PointGen.IsSet() {
		return false
	}
	return g.flag(g.ctx(""), "canGenPoints", g.opts.CanGenPoints, true)
}

func (g *Game) updateLayer(def *layer.Definition, diff float64) {
	data := g.Player.Layer(def.ID)
	data.ResetTime += diff
	c := g.ctx(def.ID)

	if def.PassiveGeneration.IsSet() {
		rate := g.dec(c, "passiveGeneration", def.PassiveGeneration, bignum.Zero)
		if rate.Gt(bignum.Zero) {
			gain := g.derivedOf(def.ID).ResetGain.Mul(rate).Mul(bignum.FromFloat(diff))
			data.AddPoints(gain)
		}
	}
	if h := def.Hooks.Update; h != nil {
		g.call(c, "update", func(c layer.Context) error { return h(c, diff) })
	}
}

func (g *Game) automateLayer(def *layer.Definition) {
	c := g.ctx(def.ID)
	if g.flag(c, "autoPrestige", def.AutoPrestige, false) && g.derivedOf(def.ID).CanReset {
		g.doReset(def.ID, false)
	}
	g.call(c, "automate", def.Hooks.Automate)
	if g.flag(c, "autoUpgrade", def.AutoUpgrade, false) {
		g.autobuyUpgrades(def)
	}

	data := g.Player.Layer(def.ID)
	data.Best = data.Best.Max(data.Points)
}

// checkUnlock unlocks a layer once its unlock condition holds.
func (g *Game) checkUnlock(def *layer.Definition) {
	data := g.Player.Layer(def.ID)
	if data.Unlocked || !def.Unlocked.IsSet() {
		return
	}
	if !g.flag(g.ctx(def.ID), "layerUnlocked", def.Unlocked, false) {
		return
	}
	data.Unlocked = true
	g.emitf("unlock", map[string]any{"layer": def.ID}, "%s unlocked", def.Name)
	slog.Info("layer unlocked", "layer", def.ID)
}

// ZeroNaNs replaces poisoned NaN values in the store with zero and returns
// the paths it repaired. Infinite values are left alone.
func ZeroNaNs(p *state.Player) []string {
	var fixed []string
	fix := func(path string, v *bignum.Decimal) {
		if v.IsNaN() {
			*v = bignum.Zero
			fixed = append(fixed, path)
		}
	}
	fix("points", &p.Points)
	for id, d := range p.Layers {
		fix(id+".points", &d.Points)
		fix(id+".best", &d.Best)
		fix(id+".total", &d.Total)
		for k, v := range d.Buyables {
			if v.IsNaN() {
				d.Buyables[k] = bignum.Zero
				fixed = append(fixed, id+".buyables")
			}
		}
		for k, v := range d.Fields {
			if v.IsNaN() {
				d.Fields[k] = bignum.Zero
				fixed = append(fixed, id+"."+k)
			}
		}
	}
	if math.IsNaN(p.TotalTime) {
		p.TotalTime = 0
		fixed = append(fixed, "total_time")
	}
	return fixed
}
