package engine

import (
	"log/slog"
	"slices"

	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/layer"
	"github.com/talgya/retribution/internal/state"
)

// ResetConfirmation must be typed to confirm a row reset or a hard reset.
const ResetConfirmation = "I WANT TO RESET THIS"

// DoReset prestiges a layer. Without force the reset is validated against
// the layer's threshold and credits its gain; a forced reset skips both.
// It reports whether anything happened.
func (g *Game) DoReset(id string, force bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.doReset(id, force)
}

func (g *Game) doReset(id string, force bool) bool {
	def, ok := g.Registry.Get(id)
	if !ok || def.Type() == layer.TypeNone {
		return false
	}
	data := g.Player.Layer(id)
	c := g.ctx(id)

	if !force {
		d := g.derivedOf(id)
		if !d.CanReset || d.Amount.Lt(g.requirement(def)) {
			return false
		}
		gain := d.ResetGain
		if f, ok := def.Formula.(layer.Static); ok {
			if d.Amount.Lt(d.NextAt) {
				return false
			}
			if !g.flag(c, "canBuyMax", f.CanBuyMax, false) {
				gain = bignum.One
			}
		}
		g.credit(def, data, gain)
	}

	if g.flag(c, "resetsNothing", def.ResetsNothing, false) {
		g.updateDerived()
		return true
	}

	g.resetRelatedRows(def, force)
	data.ResetTime = 0
	// twice, so static thresholds see the post-reset gain as their cache
	g.updateDerived()
	g.updateDerived()

	g.emitf("reset", map[string]any{"layer": id, "force": force}, "%s reset", def.Name)
	slog.Debug("layer reset", "layer", id, "force", force, "points", g.opts.Formatter.Format(data.Points))
	return true
}

// credit runs the crediting half of a reset: hook, points, trackers and the
// first-reset unlock.
func (g *Game) credit(def *layer.Definition, data *state.LayerData, gain bignum.Decimal) {
	c := g.ctx(def.ID)
	if h := def.Hooks.BeforePrestige; h != nil {
		g.call(c, "onPrestige", func(c layer.Context) error { return h(c, gain) })
	}
	data.AddPoints(gain)
	g.updateMilestones(def)
	g.updateAchievements(def)

	if data.Unlocked {
		return
	}
	data.Unlocked = true
	for _, dep := range def.IncreaseUnlockOrder {
		if d := g.Player.Layer(dep); d != nil && !d.Unlocked {
			d.UnlockOrder++
		}
	}
	g.emitf("unlock", map[string]any{"layer": def.ID}, "%s unlocked", def.Name)
	slog.Info("layer unlocked", "layer", def.ID)
}

// resetRelatedRows finalizes challenges, restores the global points and
// cascades through the trigger's row and every row below it.
func (g *Game) resetRelatedRows(trigger *layer.Definition, force bool) {
	if trigger.Side != "" {
		g.Player.Points = g.opts.StartPoints
		for _, side := range g.Registry.Sides() {
			g.sideReset(side, trigger)
		}
		return
	}

	for _, id := range g.Registry.IDs() {
		def, _ := g.Registry.Get(id)
		if def.Side != "" || def.Row > trigger.Row {
			continue
		}
		if force && id == trigger.ID {
			continue
		}
		g.finalize(id)
	}

	if trigger.Row == 0 {
		g.Player.Points = bignum.Zero
	} else {
		g.Player.Points = g.opts.StartPoints
	}

	rows := g.Registry.Rows()
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i] <= trigger.Row {
			g.rowReset(rows[i], trigger)
		}
	}
	for _, side := range g.Registry.Sides() {
		g.sideReset(side, trigger)
	}
}

// RowReset applies a cascade reached from trigger to one row.
func (g *Game) RowReset(row int, trigger string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	def, ok := g.Registry.Get(trigger)
	if !ok {
		return
	}
	g.rowReset(row, def)
	g.updateDerived()
}

func (g *Game) rowReset(row int, trigger *layer.Definition) {
	for _, id := range g.Registry.Row(row) {
		def, _ := g.Registry.Get(id)
		if h := def.Hooks.Reset; h != nil {
			g.Player.Layer(id).ActiveChallenge = state.NoChallenge
			g.call(g.ctx(id), "doReset", func(c layer.Context) error { return h(c, trigger.ID) })
			continue
		}
		if trigger.Side == "" && trigger.Row > def.Row {
			g.layerDataReset(def)
		}
	}
}

// sideReset only runs custom reset hooks; side layers keep their data.
func (g *Game) sideReset(side string, trigger *layer.Definition) {
	for _, id := range g.Registry.Side(side) {
		def, _ := g.Registry.Get(id)
		if h := def.Hooks.Reset; h != nil {
			g.call(g.ctx(id), "doReset", func(c layer.Context) error { return h(c, trigger.ID) })
		}
	}
}

// LayerDataReset restores a layer to its start record. Unlock state, UI
// flags, best, total, unlock order, milestones and achievements survive, as
// do the fields named in keep.
func (g *Game) LayerDataReset(id string, keep ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if def, ok := g.Registry.Get(id); ok {
		g.layerDataReset(def, keep...)
		g.updateDerived()
	}
}

func (g *Game) layerDataReset(def *layer.Definition, keep ...string) {
	old := g.Player.Layer(def.ID)
	fresh := def.StartLayerData()

	fresh.Unlocked = old.Unlocked
	fresh.ForceTooltip = old.ForceTooltip
	fresh.NoRespecConfirm = old.NoRespecConfirm
	fresh.PrevTab = old.PrevTab
	fresh.UnlockOrder = old.UnlockOrder
	fresh.Best = old.Best.Max(fresh.Points)
	fresh.Total = old.Total
	fresh.Milestones = old.Milestones
	fresh.Achievements = old.Achievements

	for _, k := range keep {
		switch k {
		case "upgrades":
			fresh.Upgrades = slices.Clone(old.Upgrades)
		case "buyables":
			fresh.Buyables = old.Buyables
		case "clickables":
			fresh.Clickables = old.Clickables
		case "challenges":
			fresh.Challenges = old.Challenges
		case "grid":
			fresh.Grid = old.Grid
		case "resetTime", "reset_time":
			fresh.ResetTime = old.ResetTime
		case "activeChallenge", "active_challenge":
			fresh.ActiveChallenge = old.ActiveChallenge
		default:
			if v, ok := old.Field(k); ok {
				fresh.SetField(k, v)
			}
		}
	}
	*old = *fresh
}

// ResetRow wipes the progress of one row: the row above is cascaded, the
// row below is force-reset and the row's own layers are locked again. The
// caller is responsible for the typed confirmation.
func (g *Game) ResetRow(row int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	layers := g.Registry.Row(row)
	if len(layers) == 0 {
		return false
	}
	if post := g.Registry.Row(row + 1); len(post) > 0 {
		def, _ := g.Registry.Get(post[0])
		g.rowReset(row+1, def)
	}
	if pre := g.Registry.Row(row - 1); len(pre) > 0 {
		g.doReset(pre[0], true)
	}
	for _, id := range layers {
		d := g.Player.Layer(id)
		d.Unlocked = false
		d.UnlockOrder = 0
	}
	g.Player.Points = g.opts.StartPoints
	g.updateDerived()

	g.emitf("reset", map[string]any{"row": row}, "row %d reset", row)
	slog.Warn("row reset", "row", row)
	return true
}
