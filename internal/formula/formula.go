package formula

import "github.com/talgya/retribution/internal/bignum"

// Normal holds the resolved parameters of a normal layer, whose gain grows
// as a power of the base amount.
type Normal struct {
	Amount      bignum.Decimal
	Requirement bignum.Decimal
	Exponent    bignum.Decimal
	GainMult    bignum.Decimal
	GainExp     bignum.Decimal
	DirectMult  bignum.Decimal
	Softcap     Softcap
	RoundUpCost bool
}

// Static holds the resolved parameters of a static layer, where each point
// costs exponentially more base amount than the last.
type Static struct {
	Amount      bignum.Decimal
	Points      bignum.Decimal
	Requirement bignum.Decimal
	Base        bignum.Decimal
	Exponent    bignum.Decimal
	GainMult    bignum.Decimal
	GainExp     bignum.Decimal
	DirectMult  bignum.Decimal
	CanBuyMax   bool
	RoundUpCost bool
}

func anyNaN(ds ...bignum.Decimal) bool {
	for _, d := range ds {
		if d.IsNaN() {
			return true
		}
	}
	return false
}

func (p Normal) poisoned() bool {
	return anyNaN(p.Amount, p.Requirement, p.Exponent, p.GainMult, p.GainExp, p.DirectMult)
}

func (p Static) poisoned() bool {
	return anyNaN(p.Amount, p.Points, p.Requirement, p.Base, p.Exponent, p.GainMult, p.GainExp, p.DirectMult)
}

// Gain is the number of points a reset would award now. It is zero below
// the requirement and never negative.
func (p Normal) Gain() bignum.Decimal {
	if p.poisoned() {
		return bignum.NaN()
	}
	if p.GainExp.IsZero() || p.Amount.Lt(p.Requirement) {
		return bignum.Zero
	}
	g := p.Amount.Div(p.Requirement).Pow(p.Exponent).Mul(p.GainMult).Pow(p.GainExp)
	g = p.Softcap.Apply(g)
	return g.Mul(p.DirectMult).Floor().Max(bignum.Zero)
}

// Next is the base amount at which the gain would reach gain+1.
func (p Normal) Next(gain bignum.Decimal) bignum.Decimal {
	if p.poisoned() || gain.IsNaN() {
		return bignum.NaN()
	}
	if p.GainMult.Lte(bignum.Zero) || p.GainExp.Lte(bignum.Zero) {
		return bignum.Inf()
	}
	next := p.Softcap.Invert(gain.Add(bignum.One).Div(p.DirectMult))
	next = next.Root(p.GainExp).Div(p.GainMult).Root(p.Exponent).Mul(p.Requirement).Max(p.Requirement)
	if p.RoundUpCost {
		next = next.Ceil()
	}
	return next
}

// Gain is the number of points a reset would award now. Layers that cannot
// buy in bulk, or sit below the requirement, always gain exactly one.
func (p Static) Gain() bignum.Decimal {
	if p.poisoned() {
		return bignum.NaN()
	}
	if p.GainExp.IsZero() {
		return bignum.Zero
	}
	if !p.CanBuyMax || p.Amount.Lt(p.Requirement) {
		return bignum.One
	}
	g := p.Amount.Div(p.Requirement).Div(p.GainMult).Max(bignum.One).
		Log(p.Base).Mul(p.GainExp).Pow(p.Exponent.Recip()).Mul(p.DirectMult)
	return g.Floor().Sub(p.Points).Add(bignum.One).Max(bignum.One)
}

// Next is the base amount needed for the next point. With canMax it skips
// past the points a bulk reset would already award; prevGain and prevNext
// are the values cached on the previous evaluation.
func (p Static) Next(canMax bool, prevGain, prevNext bignum.Decimal) bignum.Decimal {
	if p.poisoned() {
		return bignum.NaN()
	}
	if p.GainMult.Lte(bignum.Zero) || p.GainExp.Lte(bignum.Zero) {
		return bignum.Inf()
	}
	amt := p.Points
	if canMax && p.CanBuyMax && p.Amount.Gte(prevNext) {
		amt = amt.Add(prevGain)
	}
	amt = amt.Div(p.DirectMult)
	cost := p.Base.Pow(amt.Pow(p.Exponent).Div(p.GainExp)).Mul(p.GainMult).
		Mul(p.Requirement).Max(p.Requirement)
	if p.RoundUpCost {
		cost = cost.Ceil()
	}
	return cost
}
