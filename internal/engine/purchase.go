package engine

import (
	"log/slog"

	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/layer"
	"github.com/talgya/retribution/internal/state"
)

// BuyUpgrade purchases an upgrade if it is unlocked, not yet owned and
// affordable in its currency.
func (g *Game) BuyUpgrade(id string, upg int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	ok := g.buyUpgrade(id, upg)
	if ok {
		g.updateDerived()
	}
	return ok
}

func (g *Game) buyUpgrade(id string, upg int) bool {
	def, ok := g.Registry.Get(id)
	if !ok {
		return false
	}
	u := def.Upgrade(upg)
	data := g.Player.Layer(id)
	if u == nil || !data.Unlocked || data.HasUpgrade(upg) {
		return false
	}
	c := g.ctx(id)
	if !g.flag(c, "upgradeUnlocked", u.Unlocked, true) {
		return false
	}

	cost := g.dec(c, "cost", u.Cost, bignum.Inf())
	wallet, field := g.upgradeCurrency(id, u)
	have, ok := wallet.Field(field)
	if !ok || have.Lt(cost) {
		return false
	}
	wallet.SetField(field, have.Sub(cost))
	data.Upgrades = append(data.Upgrades, upg)
	g.call(c, "onPurchase", u.OnPurchase)

	g.emitf("purchase", map[string]any{"layer": id, "upgrade": upg}, "bought %s", u.Title)
	slog.Debug("upgrade bought", "layer", id, "upgrade", upg, "cost", g.opts.Formatter.Format(cost))
	return true
}

func (g *Game) upgradeCurrency(id string, u *layer.Upgrade) (wallet *state.LayerData, field string) {
	owner := id
	if u.CurrencyLayer != "" {
		owner = u.CurrencyLayer
	}
	field = u.Currency
	if field == "" {
		field = "points"
	}
	if d := g.Player.Layer(owner); d != nil {
		return d, field
	}
	return g.Player.Layer(id), field
}

func (g *Game) canAffordUpgrade(id string, u *layer.Upgrade) bool {
	c := g.ctx(id)
	cost := g.dec(c, "cost", u.Cost, bignum.Inf())
	wallet, field := g.upgradeCurrency(id, u)
	have, ok := wallet.Field(field)
	return ok && have.Gte(cost)
}

// BuyBuyable purchases one more of a buyable. Without a custom Buy the cost
// is taken from the layer's points.
func (g *Game) BuyBuyable(id string, b int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	def, ok := g.Registry.Get(id)
	if !ok {
		return false
	}
	bd := def.Buyable(b)
	data := g.Player.Layer(id)
	if bd == nil || !data.Unlocked {
		return false
	}
	c := g.ctx(id)
	if !g.flag(c, "buyableUnlocked", bd.Unlocked, true) {
		return false
	}
	cost := g.dec(c, "cost", bd.Cost, bignum.Inf())
	if !g.flag(c, "canAfford", bd.CanAfford, data.Points.Gte(cost)) {
		return false
	}

	if bd.Buy != nil {
		if err := layer.Call(c, "buy", bd.Buy); err != nil {
			g.hookFailed(id, "buy", err)
			return false
		}
	} else {
		data.Points = data.Points.Sub(cost)
		data.Buyables[b] = data.Buyable(b).Add(bignum.One)
	}
	g.updateDerived()

	g.emitf("purchase", map[string]any{"layer": id, "buyable": b}, "bought %s", bd.Title)
	return true
}

// Click presses a clickable.
func (g *Game) Click(id string, cl int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	def, ok := g.Registry.Get(id)
	if !ok {
		return false
	}
	cd := def.Clickable(cl)
	if cd == nil || !g.Player.Layer(id).Unlocked {
		return false
	}
	c := g.ctx(id)
	if !g.flag(c, "clickableUnlocked", cd.Unlocked, true) || !g.flag(c, "canClick", cd.CanClick, true) {
		return false
	}
	g.call(c, "onClick", cd.OnClick)
	g.updateDerived()
	return true
}

// autobuyUpgrades buys every affordable unlocked upgrade once.
func (g *Game) autobuyUpgrades(def *layer.Definition) {
	for _, u := range def.Upgrades {
		g.buyUpgrade(def.ID, u.ID)
	}
}

func (g *Game) updateMilestones(def *layer.Definition) {
	data := g.Player.Layer(def.ID)
	c := g.ctx(def.ID)
	for _, m := range def.Milestones {
		if data.HasMilestone(m.ID) || !g.flag(c, "milestone", m.Done, false) {
			continue
		}
		data.Milestones = append(data.Milestones, m.ID)
		g.emitf("milestone", map[string]any{"layer": def.ID, "milestone": m.ID}, "milestone reached: %s", m.Requirement)
		slog.Info("milestone reached", "layer", def.ID, "milestone", m.ID)
	}
}

func (g *Game) updateAchievements(def *layer.Definition) {
	data := g.Player.Layer(def.ID)
	c := g.ctx(def.ID)
	for _, a := range def.Achievements {
		if data.HasAchievement(a.ID) || !g.flag(c, "achievement", a.Done, false) {
			continue
		}
		data.Achievements = append(data.Achievements, a.ID)
		g.call(c, "onComplete", a.OnComplete)
		g.emitf("achievement", map[string]any{"layer": def.ID, "achievement": a.ID}, "achievement unlocked: %s", a.Name)
		slog.Info("achievement unlocked", "layer", def.ID, "achievement", a.ID)
	}
}

// shouldNotify reports whether the layer has something for the player to
// act on: a buyable upgrade, a completable challenge or a mod flag.
func (g *Game) shouldNotify(def *layer.Definition) bool {
	data := g.Player.Layer(def.ID)
	c := g.ctx(def.ID)
	for i := range def.Upgrades {
		u := &def.Upgrades[i]
		if !data.HasUpgrade(u.ID) && g.flag(c, "upgradeUnlocked", u.Unlocked, true) && g.canAffordUpgrade(def.ID, u) {
			return true
		}
	}
	if data.ActiveChallenge != state.NoChallenge && g.canComplete(def.ID, data.ActiveChallenge) {
		return true
	}
	return g.flag(c, "shouldNotify", def.ShouldNotify, false)
}

func (g *Game) upgradeEffect(id string, upg int) bignum.Decimal {
	def, ok := g.Registry.Get(id)
	if !ok {
		return bignum.One
	}
	u := def.Upgrade(upg)
	if u == nil {
		return bignum.One
	}
	return g.dec(g.ctx(id), "effect", u.Effect, bignum.One)
}

func (g *Game) buyableEffect(id string, b int) bignum.Decimal {
	def, ok := g.Registry.Get(id)
	if !ok {
		return bignum.One
	}
	bd := def.Buyable(b)
	if bd == nil {
		return bignum.One
	}
	return g.dec(g.ctx(id), "effect", bd.Effect, bignum.One)
}
