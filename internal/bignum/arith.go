package bignum

import "math"

// tinyFloat bounds the float64 fast paths; smaller results go through logs.
const tinyFloat = 1e-300

// Add returns d + o.
func (d Decimal) Add(o Decimal) Decimal {
	if d.IsNaN() || o.IsNaN() {
		return NaN()
	}
	if d.IsInf() {
		if o.IsInf() && o.sign != d.sign {
			return NaN()
		}
		return d
	}
	if o.IsInf() {
		return o
	}
	if d.sign == 0 {
		return o
	}
	if o.sign == 0 {
		return d
	}
	if d.layer == 0 && o.layer == 0 {
		return FromFloat(float64(d.sign)*d.mag + float64(o.sign)*o.mag)
	}

	big, small := d, o
	c := cmpAbs(d, o)
	if c < 0 {
		big, small = o, d
	}
	if c == 0 && d.sign != o.sign {
		return Zero
	}
	if big.layer >= 2 {
		return big
	}
	lb, ls := big.log10Float(), small.log10Float()
	diff := ls - lb
	if diff < -17 {
		return big
	}
	var l float64
	if big.sign == small.sign {
		l = lb + math.Log10(1+math.Pow(10, diff))
	} else {
		r := 1 - math.Pow(10, diff)
		if r <= 0 {
			return Zero
		}
		l = lb + math.Log10(r)
	}
	return normalize(big.sign, 1, l)
}

// Sub returns d - o.
func (d Decimal) Sub(o Decimal) Decimal { return d.Add(o.Neg()) }

// Mul returns d × o.
func (d Decimal) Mul(o Decimal) Decimal {
	if d.IsNaN() || o.IsNaN() {
		return NaN()
	}
	if d.sign == 0 || o.sign == 0 {
		if d.IsInf() || o.IsInf() {
			return NaN()
		}
		return Zero
	}
	sign := d.sign * o.sign
	if d.IsInf() || o.IsInf() {
		return Decimal{sign: sign, mag: math.Inf(1)}
	}
	if d.layer == 0 && o.layer == 0 {
		if m := d.mag * o.mag; m >= tinyFloat {
			return normalize(sign, 0, m)
		}
	}
	return withSign(Pow10(d.Abs().Log10().Add(o.Abs().Log10())), sign)
}

// Div returns d / o.
func (d Decimal) Div(o Decimal) Decimal {
	if d.IsNaN() || o.IsNaN() {
		return NaN()
	}
	if o.sign == 0 {
		if d.sign == 0 {
			return NaN()
		}
		return Decimal{sign: d.sign, mag: math.Inf(1)}
	}
	if d.sign == 0 {
		return Zero
	}
	sign := d.sign * o.sign
	if d.IsInf() {
		if o.IsInf() {
			return NaN()
		}
		return Decimal{sign: sign, mag: math.Inf(1)}
	}
	if o.IsInf() {
		return Zero
	}
	if d.layer == 0 && o.layer == 0 {
		if m := d.mag / o.mag; m >= tinyFloat {
			return normalize(sign, 0, m)
		}
	}
	return withSign(Pow10(d.Abs().Log10().Sub(o.Abs().Log10())), sign)
}

// Recip returns 1/d.
func (d Decimal) Recip() Decimal { return One.Div(d) }

// Floor rounds toward negative infinity. Values past layer 0 are already integral.
func (d Decimal) Floor() Decimal {
	if d.IsPoisoned() || d.sign == 0 {
		return d
	}
	if d.tiny() {
		if d.sign > 0 {
			return Zero
		}
		return One.Neg()
	}
	if d.layer == 0 {
		return FromFloat(math.Floor(float64(d.sign) * d.mag))
	}
	return d
}

// Ceil rounds toward positive infinity.
func (d Decimal) Ceil() Decimal {
	if d.IsPoisoned() || d.sign == 0 {
		return d
	}
	if d.tiny() {
		if d.sign > 0 {
			return One
		}
		return Zero
	}
	if d.layer == 0 {
		return FromFloat(math.Ceil(float64(d.sign) * d.mag))
	}
	return d
}

// Round rounds half away from zero.
func (d Decimal) Round() Decimal {
	if d.IsPoisoned() || d.sign == 0 {
		return d
	}
	if d.tiny() {
		return Zero
	}
	if d.layer == 0 {
		return FromFloat(math.Round(float64(d.sign) * d.mag))
	}
	return d
}

func (d Decimal) isInteger() bool {
	if d.IsPoisoned() || d.tiny() {
		return false
	}
	if d.layer == 0 {
		return d.mag == math.Floor(d.mag)
	}
	return true
}

func (d Decimal) isOdd() bool {
	return d.layer == 0 && d.isInteger() && math.Mod(d.mag, 2) == 1
}

func withSign(d Decimal, sign int8) Decimal {
	if d.sign == 0 || d.IsNaN() {
		return d
	}
	d.sign = sign
	return d
}
