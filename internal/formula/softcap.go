// Package formula computes prestige gain and the resource needed for the
// next unit of gain, for static and normal layers.
package formula

import "github.com/talgya/retribution/internal/bignum"

// Softcap dampens growth above Cap by raising the excess to Power.
// A Power outside (0, 1) disables the cap.
type Softcap struct {
	Cap   bignum.Decimal
	Power bignum.Decimal
}

func (s Softcap) active() bool {
	return s.Power.Gt(bignum.Zero) && s.Power.Lt(bignum.One)
}

// Apply returns v^p · cap^(1-p) for v above the cap, otherwise v.
func (s Softcap) Apply(v bignum.Decimal) bignum.Decimal {
	if v.IsNaN() || !s.active() || v.Lte(s.Cap) {
		return v
	}
	return v.Pow(s.Power).Mul(s.Cap.Pow(bignum.One.Sub(s.Power)))
}

// Invert recovers the pre-cap value from a capped one.
func (s Softcap) Invert(v bignum.Decimal) bignum.Decimal {
	if v.IsNaN() || !s.active() || v.Lte(s.Cap) {
		return v
	}
	return v.Div(s.Cap.Pow(bignum.One.Sub(s.Power))).Pow(bignum.One.Div(s.Power))
}
