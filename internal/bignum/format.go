package bignum

import (
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Formatter renders Decimals for display. Each cutoff selects the next,
// more compact notation once a value reaches it.
type Formatter struct {
	Precision        int     // significant digits
	SmallCutoff      float64 // positive values below use a negative exponent
	PlainCutoff      float64 // values below are plain decimals with separators
	ScientificCutoff Decimal // values below are mantissa e exponent
	MaxEPrefix       int     // leading "e"s allowed before switching to (e^N)m
	TetrationCutoff  float64 // layer count from which output is 10^^slog
}

// DefaultFormatter returns the stock display thresholds.
func DefaultFormatter() Formatter {
	return Formatter{
		Precision:        10,
		SmallCutoff:      1e-3,
		PlainCutoff:      1e9,
		ScientificCutoff: FromComponents(1, 1, 1000),
		MaxEPrefix:       4,
		TetrationCutoff:  1e6,
	}
}

// Format renders d with the default formatter and the given significant digits.
func (d Decimal) Format(precision int) string {
	return DefaultFormatter().FormatPrecision(d, precision)
}

// Format renders d at the formatter's precision.
func (f Formatter) Format(d Decimal) string { return f.FormatPrecision(d, f.Precision) }

// FormatPrecision renders d with an explicit number of significant digits.
func (f Formatter) FormatPrecision(d Decimal, precision int) string {
	if precision < 1 {
		precision = 1
	}
	switch {
	case d.IsNaN():
		return "NaN"
	case d.IsInf():
		if d.sign < 0 {
			return "-Infinity"
		}
		return "Infinity"
	case d.sign == 0:
		return "0"
	case d.sign < 0:
		return "-" + f.FormatPrecision(d.Neg(), precision)
	}

	if d.tiny() || (d.layer == 0 && d.mag < f.SmallCutoff) {
		return scientific(d.log10Float(), precision)
	}
	if d.layer == 0 && d.mag < f.PlainCutoff {
		return plain(d.mag, precision)
	}
	if d.layer <= 1 && d.Lt(f.ScientificCutoff) {
		return scientific(d.log10Float(), precision)
	}
	return f.tower(d, precision)
}

func (f Formatter) tower(d Decimal, precision int) string {
	if d.layer >= f.TetrationCutoff {
		return "10^^" + f.FormatPrecision(FromFloat(d.Slog()), precision)
	}
	v, n := d, 0
	for n < f.MaxEPrefix && v.Gte(f.ScientificCutoff) {
		v = v.Log10()
		n++
	}
	if v.Gte(f.ScientificCutoff) {
		return "(e^" + strconv.FormatFloat(d.layer, 'f', 0, 64) + ")" +
			f.FormatPrecision(FromFloat(d.mag), precision)
	}
	return strings.Repeat("e", n) + f.FormatPrecision(v, precision)
}

func plain(x float64, precision int) string {
	digits := precision - (int(math.Floor(math.Log10(x))) + 1)
	if digits < 0 {
		digits = 0
	}
	p := math.Pow(10, float64(digits))
	return humanize.CommafWithDigits(math.Round(x*p)/p, digits)
}

func scientific(l float64, precision int) string {
	e := math.Floor(l)
	m := math.Pow(10, l-e)
	p := math.Pow(10, float64(precision-1))
	m = math.Round(m*p) / p
	if m >= 10 {
		m /= 10
		e++
	}
	ms := strconv.FormatFloat(m, 'f', precision-1, 64)
	if strings.Contains(ms, ".") {
		ms = strings.TrimRight(strings.TrimRight(ms, "0"), ".")
	}
	return ms + "e" + strconv.FormatFloat(e, 'f', 0, 64)
}

// String returns a lossless representation accepted by Parse.
func (d Decimal) String() string {
	switch {
	case d.IsNaN():
		return "NaN"
	case d.IsInf():
		if d.sign < 0 {
			return "-Infinity"
		}
		return "Infinity"
	case d.sign == 0:
		return "0"
	}
	prefix := ""
	if d.sign < 0 {
		prefix = "-"
	}
	switch d.layer {
	case 0:
		return prefix + strconv.FormatFloat(d.mag, 'g', -1, 64)
	case 1:
		return prefix + "e" + strconv.FormatFloat(d.mag, 'g', -1, 64)
	}
	return prefix + "(e^" + strconv.FormatFloat(d.layer, 'g', -1, 64) + ")" +
		strconv.FormatFloat(d.mag, 'g', -1, 64)
}
