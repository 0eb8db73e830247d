package bignum

import "math"

// Log10 returns log10(d). Negative input is NaN, zero is -Infinity.
func (d Decimal) Log10() Decimal {
	switch {
	case d.IsNaN() || d.sign < 0:
		return NaN()
	case d.sign == 0:
		return NegInf()
	case d.IsInf():
		return Inf()
	case d.layer == 0:
		return FromFloat(math.Log10(d.mag))
	case d.layer == 1:
		return FromFloat(d.mag)
	}
	return normalize(1, d.layer-1, d.mag)
}

// Pow10 returns 10^e. Exponents too negative to represent underflow to zero.
func Pow10(e Decimal) Decimal {
	switch {
	case e.IsNaN():
		return NaN()
	case e.IsInf():
		if e.sign > 0 {
			return Inf()
		}
		return Zero
	case e.sign == 0:
		return One
	case e.tiny():
		return One
	case e.sign < 0:
		if e.layer == 0 {
			return normalize(1, 1, -e.mag)
		}
		return Zero
	}
	return normalize(1, e.layer+1, e.mag)
}

// Log returns the logarithm of d in the given base.
func (d Decimal) Log(base Decimal) Decimal { return d.Log10().Div(base.Log10()) }

// Ln returns the natural logarithm.
func (d Decimal) Ln() Decimal { return d.Log10().Mul(FromFloat(math.Ln10)) }

// Log2 returns the base-2 logarithm.
func (d Decimal) Log2() Decimal { return d.Log(Two) }

// Pow returns d^e. A negative base requires an integral exponent.
func (d Decimal) Pow(e Decimal) Decimal {
	switch {
	case d.IsNaN() || e.IsNaN():
		return NaN()
	case e.IsZero():
		return One
	case d.IsZero():
		if e.sign > 0 {
			return Zero
		}
		return Inf()
	case d.Eq(One):
		return One
	}
	if d.sign < 0 {
		if !e.isInteger() {
			return NaN()
		}
		r := d.Abs().Pow(e)
		if e.isOdd() {
			return r.Neg()
		}
		return r
	}
	if d.layer == 0 && e.layer == 0 && d.IsFinite() && e.IsFinite() {
		f := math.Pow(d.mag, float64(e.sign)*e.mag)
		if !math.IsInf(f, 0) && f < expLimit && f > 1e-300 {
			return FromFloat(f)
		}
	}
	return Pow10(d.Log10().Mul(e))
}

// PowFloat is Pow with a float64 exponent.
func (d Decimal) PowFloat(e float64) Decimal { return d.Pow(FromFloat(e)) }

// Root returns the n-th root of d.
func (d Decimal) Root(n Decimal) Decimal { return d.Pow(One.Div(n)) }

// Sqrt returns the square root of d.
func (d Decimal) Sqrt() Decimal { return d.Root(Two) }

// Exp returns e^d.
func (d Decimal) Exp() Decimal { return Pow10(d.Mul(FromFloat(math.Log10E))) }

// Tetrate returns d^^height, d raised to itself height times. The fractional
// part of height uses the linear approximation d^^x = x+1 on (-1, 0].
func (d Decimal) Tetrate(height Decimal) Decimal {
	if d.IsNaN() || height.IsNaN() {
		return NaN()
	}
	h := height.Float64()
	switch {
	case math.IsInf(h, 1):
		if d.Gt(FromFloat(math.Exp(1 / math.E))) {
			return Inf()
		}
		return NaN()
	case h < -1:
		return NaN()
	case h == -1:
		return Zero
	case h < 0:
		return FromFloat(h + 1)
	case h == 0:
		return One
	case d.Eq(One):
		return One
	case d.sign <= 0:
		return NaN()
	}
	n := math.Floor(h)
	f := h - n
	if d.Eq(Ten) {
		return normalize(1, n+1, f)
	}

	acc := One
	if f > 0 {
		acc = d.PowFloat(f)
	}
	for i := 0.0; i < n; i++ {
		prev := acc
		acc = d.Pow(acc)
		if acc.IsPoisoned() {
			return acc
		}
		if acc.layer >= 3 && i < n-1 {
			// each further step adds one layer; the base's own log is negligible
			return normalize(1, acc.layer+(n-i-1), acc.mag)
		}
		if acc.Eq(prev) || i >= 10000 {
			break
		}
	}
	return acc
}

// Tetrate10 returns 10^^height.
func Tetrate10(height float64) Decimal { return Ten.Tetrate(FromFloat(height)) }

// Slog returns the base-10 super-logarithm of d, the inverse of Tetrate10.
func (d Decimal) Slog() float64 {
	switch {
	case d.IsNaN() || d.sign < 0:
		return math.NaN()
	case d.sign == 0:
		return -1
	case d.IsInf():
		return math.Inf(1)
	case d.tiny() || (d.layer == 0 && d.mag < 1):
		return d.Float64() - 1
	}
	count, m := d.layer, d.mag
	for m >= 10 {
		m = math.Log10(m)
		count++
	}
	return count + math.Log10(m)
}
