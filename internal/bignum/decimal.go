// Package bignum implements Decimal, a number type able to hold magnitudes far
// beyond float64 range: stacked powers of ten up to tetration heights.
//
// A Decimal is sign × T(layer, mag) where T(0, m) = m and T(k, m) = 10^T(k-1, m).
// Values are kept normalized so that each value has exactly one representation.
package bignum

import "math"

const (
	// expLimit is the largest layer-0 magnitude kept before promotion.
	expLimit = 9e15
	// tinyExp is the smallest base-10 exponent representable at layer 0.
	tinyExp = -300
)

// layerDown is log10(expLimit): a layer-k magnitude below it folds into layer k-1.
var layerDown = math.Log10(expLimit)

// Decimal is an immutable arbitrary-magnitude number. The zero value is 0.
type Decimal struct {
	sign  int8
	layer float64
	mag   float64
}

// Common constants.
var (
	Zero = Decimal{}
	One  = Decimal{sign: 1, mag: 1}
	Two  = Decimal{sign: 1, mag: 2}
	Ten  = Decimal{sign: 1, mag: 10}
)

// NaN returns the poisoned not-a-number value.
func NaN() Decimal { return Decimal{sign: 1, mag: math.NaN()} }

// Inf returns positive infinity.
func Inf() Decimal { return Decimal{sign: 1, mag: math.Inf(1)} }

// NegInf returns negative infinity.
func NegInf() Decimal { return Decimal{sign: -1, mag: math.Inf(1)} }

// FromFloat converts a float64.
func FromFloat(f float64) Decimal {
	switch {
	case math.IsNaN(f):
		return NaN()
	case math.IsInf(f, 1):
		return Inf()
	case math.IsInf(f, -1):
		return NegInf()
	case f < 0:
		return normalize(-1, 0, -f)
	}
	return normalize(1, 0, f)
}

// FromInt converts an int64.
func FromInt(i int64) Decimal { return FromFloat(float64(i)) }

// FromComponents builds a Decimal from raw sign, layer and magnitude.
func FromComponents(sign int, layer, mag float64) Decimal {
	s := int8(0)
	if sign > 0 {
		s = 1
	} else if sign < 0 {
		s = -1
	}
	return normalize(s, math.Floor(layer), mag)
}

func normalize(sign int8, layer, mag float64) Decimal {
	if math.IsNaN(mag) || math.IsNaN(layer) {
		return NaN()
	}
	if sign == 0 {
		return Zero
	}
	if math.IsInf(layer, 1) || math.IsInf(mag, 1) {
		return Decimal{sign: sign, mag: math.Inf(1)}
	}
	if layer <= 0 {
		layer = 0
		if mag < 0 {
			sign, mag = -sign, -mag
		}
		if mag == 0 {
			return Zero
		}
		switch {
		case mag >= expLimit:
			layer, mag = 1, math.Log10(mag)
		case mag < 1e-300:
			return Decimal{sign: sign, layer: 1, mag: math.Log10(mag)}
		default:
			return Decimal{sign: sign, mag: mag}
		}
	}
	if layer == 1 && math.IsInf(mag, -1) {
		return Zero
	}
	for mag >= expLimit {
		layer++
		mag = math.Log10(mag)
	}
	for layer >= 1 {
		if layer == 1 {
			if mag < tinyExp {
				break
			}
			if mag < layerDown {
				layer, mag = 0, math.Pow(10, mag)
			}
			break
		}
		if mag >= layerDown {
			break
		}
		layer--
		mag = math.Pow(10, mag)
	}
	return Decimal{sign: sign, layer: layer, mag: mag}
}

// Sign returns -1, 0 or 1.
func (d Decimal) Sign() int { return int(d.sign) }

// Layer returns the number of stacked powers of ten.
func (d Decimal) Layer() float64 { return d.layer }

// Mag returns the innermost magnitude.
func (d Decimal) Mag() float64 { return d.mag }

// IsNaN reports whether d is poisoned.
func (d Decimal) IsNaN() bool { return math.IsNaN(d.mag) }

// IsInf reports whether d is ±Infinity.
func (d Decimal) IsInf() bool { return math.IsInf(d.mag, 0) }

// IsFinite reports whether d is neither NaN nor infinite.
func (d Decimal) IsFinite() bool { return !d.IsNaN() && !d.IsInf() }

// IsPoisoned reports NaN or infinity.
func (d Decimal) IsPoisoned() bool { return !d.IsFinite() }

// IsZero reports whether d is exactly zero.
func (d Decimal) IsZero() bool { return d.sign == 0 && !d.IsNaN() }

// tiny values live at layer 1 with a negative exponent below tinyExp.
func (d Decimal) tiny() bool { return d.layer == 1 && d.mag < 0 }

// Float64 converts d to a float64, overflowing to ±Inf.
func (d Decimal) Float64() float64 {
	if d.IsNaN() {
		return math.NaN()
	}
	s := float64(d.sign)
	switch {
	case d.IsInf():
		return s * math.Inf(1)
	case d.layer == 0:
		return s * d.mag
	case d.layer == 1:
		return s * math.Pow(10, d.mag)
	}
	return s * math.Inf(1)
}

// log10Float returns log10|d| as a float64; only meaningful for layer ≤ 1.
func (d Decimal) log10Float() float64 {
	if d.layer == 0 {
		return math.Log10(d.mag)
	}
	if d.layer == 1 {
		return d.mag
	}
	return math.Inf(1)
}

// Neg returns -d.
func (d Decimal) Neg() Decimal {
	d.sign = -d.sign
	return d
}

// Abs returns |d|.
func (d Decimal) Abs() Decimal {
	if d.sign < 0 {
		d.sign = 1
	}
	return d
}

// cmpAbs orders |a| and |b|, ignoring NaN.
func cmpAbs(a, b Decimal) int {
	if a.sign == 0 || b.sign == 0 {
		return cmpInt(int(abs8(a.sign)), int(abs8(b.sign)))
	}
	ai, bi := a.IsInf(), b.IsInf()
	if ai || bi {
		if ai && bi {
			return 0
		}
		if ai {
			return 1
		}
		return -1
	}
	at, bt := a.tiny(), b.tiny()
	switch {
	case at && bt:
		return cmpFloat(a.mag, b.mag)
	case at:
		return -1
	case bt:
		return 1
	}
	if a.layer != b.layer {
		return cmpFloat(a.layer, b.layer)
	}
	return cmpFloat(a.mag, b.mag)
}

// Cmp returns -1, 0 or 1. The order is total: NaN sorts below every other
// value and equals itself.
func (d Decimal) Cmp(o Decimal) int {
	dn, on := d.IsNaN(), o.IsNaN()
	if dn || on {
		switch {
		case dn && on:
			return 0
		case dn:
			return -1
		}
		return 1
	}
	if d.sign != o.sign {
		return cmpInt(int(d.sign), int(o.sign))
	}
	c := cmpAbs(d, o)
	if d.sign < 0 {
		return -c
	}
	return c
}

func (d Decimal) Eq(o Decimal) bool  { return d.Cmp(o) == 0 }
func (d Decimal) Lt(o Decimal) bool  { return d.Cmp(o) < 0 }
func (d Decimal) Lte(o Decimal) bool { return d.Cmp(o) <= 0 }
func (d Decimal) Gt(o Decimal) bool  { return d.Cmp(o) > 0 }
func (d Decimal) Gte(o Decimal) bool { return d.Cmp(o) >= 0 }

// Max returns the larger value; NaN wins.
func (d Decimal) Max(o Decimal) Decimal {
	if d.IsNaN() || o.IsNaN() {
		return NaN()
	}
	if d.Lt(o) {
		return o
	}
	return d
}

// Min returns the smaller value; NaN wins.
func (d Decimal) Min(o Decimal) Decimal {
	if d.IsNaN() || o.IsNaN() {
		return NaN()
	}
	if d.Gt(o) {
		return o
	}
	return d
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func abs8(s int8) int8 {
	if s < 0 {
		return -s
	}
	return s
}
