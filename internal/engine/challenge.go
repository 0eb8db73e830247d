package engine

import (
	"log/slog"

	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/layer"
	"github.com/talgya/retribution/internal/state"
)

// ToggleChallenge finalizes ch when it is the active challenge of the layer
// and enters it otherwise. Either way the layer is force-reset. It reports
// false when the layer or the challenge is locked.
func (g *Game) ToggleChallenge(id string, ch int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.challengeOpen(id, ch) {
		return false
	}
	if g.Player.Layer(id).ActiveChallenge == ch {
		g.finalize(id)
		g.doReset(id, true)
		g.updateDerived()
		return true
	}
	g.enter(id, ch)
	return true
}

// EnterChallenge force-resets the layer and makes ch its active challenge.
// A different active challenge is finalized first.
func (g *Game) EnterChallenge(id string, ch int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.challengeOpen(id, ch) {
		return false
	}
	g.enter(id, ch)
	return true
}

func (g *Game) challengeOpen(id string, ch int) bool {
	def, ok := g.Registry.Get(id)
	if !ok || ch == state.NoChallenge {
		return false
	}
	cd := def.Challenge(ch)
	if cd == nil || !g.Player.Layer(id).Unlocked {
		return false
	}
	return g.flag(g.ctx(id), "challengeUnlocked", cd.Unlocked, true)
}

func (g *Game) enter(id string, ch int) {
	def, _ := g.Registry.Get(id)
	data := g.Player.Layer(id)
	if data.ActiveChallenge != state.NoChallenge && data.ActiveChallenge != ch {
		g.finalize(id)
	}
	g.doReset(id, true)

	data.ActiveChallenge = ch
	cd := def.Challenge(ch)
	g.call(g.ctx(id), "onEnter", cd.OnEnter)
	g.updateDerived()

	g.emitf("challenge", map[string]any{"layer": id, "challenge": ch}, "entered %s", cd.Name)
}

// CanCompleteChallenge reports whether ch is active on the layer and its
// goal is met.
func (g *Game) CanCompleteChallenge(id string, ch int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.canComplete(id, ch)
}

func (g *Game) canComplete(id string, ch int) bool {
	def, ok := g.Registry.Get(id)
	if !ok || ch == state.NoChallenge {
		return false
	}
	data := g.Player.Layer(id)
	cd := def.Challenge(ch)
	if cd == nil || data.ActiveChallenge != ch {
		return false
	}

	c := g.ctx(id)
	if cd.CanComplete.IsSet() {
		return g.flag(c, "canComplete", cd.CanComplete, false)
	}
	goal := g.dec(c, "goal", cd.Goal, bignum.Inf())
	name := cd.CurrencyInternalName

	switch {
	case cd.CurrencyLocation != nil:
		loc, err := layer.Fallible(cd.CurrencyLocation).Resolve(c)
		if err != nil {
			g.hookFailed(id, "currencyLocation", err)
			return false
		}
		if name == "" {
			name = "points"
		}
		v, ok := loc[name]
		return ok && v.Gte(goal)
	case cd.CurrencyLayer != "":
		other := g.Player.Layer(cd.CurrencyLayer)
		if other == nil {
			return false
		}
		v, ok := other.Field(name)
		return ok && v.Gte(goal)
	case name != "":
		v, ok := data.Field(name)
		return ok && v.Gte(goal)
	}
	return g.Player.Points.Gte(goal)
}

// FinalizeChallenge ends the active challenge of a layer, counting a
// completion when its goal is met. ch may be 0 for whatever is active.
// Calling it with nothing active does nothing.
func (g *Game) FinalizeChallenge(id string, ch int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	data := g.Player.Layer(id)
	if data == nil || (ch != state.NoChallenge && ch != data.ActiveChallenge) {
		return false
	}
	done := g.finalize(id)
	g.updateDerived()
	return done
}

func (g *Game) finalize(id string) bool {
	def, ok := g.Registry.Get(id)
	data := g.Player.Layer(id)
	if !ok || data == nil || data.ActiveChallenge == state.NoChallenge {
		return false
	}
	active := data.ActiveChallenge
	cd := def.Challenge(active)
	if cd == nil {
		data.ActiveChallenge = state.NoChallenge
		return true
	}

	c := g.ctx(id)
	if g.canComplete(id, active) {
		n := data.Challenges[active]
		if cd.CompletionLimit <= 0 || n < cd.CompletionLimit {
			if data.Challenges == nil {
				data.Challenges = make(map[int]int)
			}
			data.Challenges[active] = n + 1
			g.call(c, "onComplete", cd.OnComplete)
			g.emitf("challenge", map[string]any{"layer": id, "challenge": active, "completions": n + 1},
				"%s completed", cd.Name)
			slog.Info("challenge completed", "layer", id, "challenge", active, "completions", n+1)
		}
	}
	data.ActiveChallenge = state.NoChallenge
	g.call(c, "onExit", cd.OnExit)
	return true
}

// challengeEffect is the reward of a challenge, 1 when unset.
func (g *Game) challengeEffect(id string, ch int) bignum.Decimal {
	def, ok := g.Registry.Get(id)
	if !ok {
		return bignum.One
	}
	cd := def.Challenge(ch)
	if cd == nil {
		return bignum.One
	}
	return g.dec(g.ctx(id), "rewardEffect", cd.Reward, bignum.One)
}
