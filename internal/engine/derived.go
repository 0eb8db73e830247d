package engine

import (
	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/formula"
	"github.com/talgya/retribution/internal/layer"
)

var half = bignum.FromFloat(0.5)

// updateDerived recomputes the cached gain, thresholds and flags of every
// layer. Static thresholds read the values cached by the previous call.
func (g *Game) updateDerived() {
	for _, id := range g.Registry.Ascending() {
		def, _ := g.Registry.Get(id)
		d := g.derive(def)
		d.Notify = g.shouldNotify(def)
		g.derived[id] = d
	}
}

func (g *Game) derive(def *layer.Definition) *Derived {
	c := g.ctx(def.ID)
	prev := g.derivedOf(def.ID)
	d := &Derived{
		Amount:    g.dec(c, "baseAmount", def.BaseAmount, g.Player.Points),
		ResetGain: bignum.Zero,
		NextAt:    bignum.Inf(),
		NextAtMax: bignum.Inf(),
	}

	switch f := def.Formula.(type) {
	case layer.Normal:
		p := g.normalParams(c, f, d.Amount)
		d.ResetGain = p.Gain()
		d.NextAt = p.Next(d.ResetGain)
		d.NextAtMax = d.NextAt
		d.CanReset = d.Amount.Gte(p.Requirement)
	case layer.Static:
		p := g.staticParams(c, f, d.Amount)
		d.ResetGain = p.Gain()
		d.NextAt = p.Next(false, prev.ResetGain, prev.NextAt)
		d.NextAtMax = p.Next(true, prev.ResetGain, prev.NextAt)
		d.CanReset = d.Amount.Gte(d.NextAt)
	case layer.Custom:
		d.ResetGain = g.customGain(c, f)
		d.NextAt = g.customNext(c, f, false)
		d.NextAtMax = g.customNext(c, f, true)
		if f.Requirement.IsSet() {
			d.CanReset = d.Amount.Gte(g.dec(c, "requires", f.Requirement, bignum.Zero))
		} else {
			d.CanReset = d.ResetGain.Gt(bignum.Zero)
		}
	}
	if def.CanReset.IsSet() {
		d.CanReset = g.flag(c, "canReset", def.CanReset, false)
	}
	if def.Type() == layer.TypeNone {
		d.CanReset = false
	}
	return d
}

func (g *Game) normalParams(c layer.Context, f layer.Normal, amount bignum.Decimal) formula.Normal {
	return formula.Normal{
		Amount:      amount,
		Requirement: g.dec(c, "requires", f.Requirement, bignum.Zero),
		Exponent:    g.dec(c, "exponent", f.Exponent, bignum.One),
		GainMult:    g.dec(c, "gainMult", f.GainMult, bignum.One),
		GainExp:     g.dec(c, "gainExp", f.GainExp, bignum.One),
		DirectMult:  g.dec(c, "directMult", f.DirectMult, bignum.One),
		Softcap: formula.Softcap{
			Cap:   g.dec(c, "softcap", f.Softcap, layer.DefaultSoftcap),
			Power: g.dec(c, "softcapPower", f.SoftcapPower, half),
		},
		RoundUpCost: f.RoundUpCost,
	}
}

func (g *Game) staticParams(c layer.Context, f layer.Static, amount bignum.Decimal) formula.Static {
	return formula.Static{
		Amount:      amount,
		Points:      c.Data().Points,
		Requirement: g.dec(c, "requires", f.Requirement, bignum.Zero),
		Base:        g.dec(c, "base", f.Base, bignum.Two),
		Exponent:    g.dec(c, "exponent", f.Exponent, bignum.One),
		GainMult:    g.dec(c, "gainMult", f.GainMult, bignum.One),
		GainExp:     g.dec(c, "gainExp", f.GainExp, bignum.One),
		DirectMult:  g.dec(c, "directMult", f.DirectMult, bignum.One),
		CanBuyMax:   g.flag(c, "canBuyMax", f.CanBuyMax, false),
		RoundUpCost: f.RoundUpCost,
	}
}

func (g *Game) customGain(c layer.Context, f layer.Custom) bignum.Decimal {
	v, err := layer.Fallible(f.Gain).Resolve(c)
	if err != nil {
		g.hookFailed(c.Layer, "getResetGain", err)
		return bignum.Zero
	}
	return v
}

func (g *Game) customNext(c layer.Context, f layer.Custom, canMax bool) bignum.Decimal {
	if f.Next == nil {
		return bignum.Inf()
	}
	v, err := layer.Fallible(func(c layer.Context) (bignum.Decimal, error) { return f.Next(c, canMax) }).Resolve(c)
	if err != nil {
		g.hookFailed(c.Layer, "getNextAt", err)
		return bignum.Inf()
	}
	return v
}

// requirement returns the base requirement a manual reset must meet.
func (g *Game) requirement(def *layer.Definition) bignum.Decimal {
	c := g.ctx(def.ID)
	switch f := def.Formula.(type) {
	case layer.Normal:
		return g.dec(c, "requires", f.Requirement, bignum.Zero)
	case layer.Static:
		return g.dec(c, "requires", f.Requirement, bignum.Zero)
	case layer.Custom:
		return g.dec(c, "requires", f.Requirement, bignum.Zero)
	}
	return bignum.Inf()
}
