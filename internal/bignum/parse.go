package bignum

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrSyntax is returned for strings Parse cannot read.
var ErrSyntax = errors.New("bignum: invalid syntax")

// Parse reads plain decimals ("1,234.5"), scientific notation ("1.5e300"),
// exponent towers ("e1e50", "1.5e1e50", "ee5"), layer towers ("(e^7)1234")
// and tetration ("10^^1e100"), plus NaN and ±Infinity.
func Parse(s string) (Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return NaN(), fmt.Errorf("%w: empty string", ErrSyntax)
	}
	switch strings.ToLower(s) {
	case "nan":
		return NaN(), nil
	case "infinity", "+infinity", "inf", "+inf":
		return Inf(), nil
	case "-infinity", "-inf":
		return NegInf(), nil
	}
	switch s[0] {
	case '-':
		d, err := Parse(s[1:])
		return d.Neg(), err
	case '+':
		return Parse(s[1:])
	}

	if rest, ok := strings.CutPrefix(s, "10^^"); ok {
		h, err := Parse(rest)
		if err != nil {
			return NaN(), err
		}
		return Ten.Tetrate(h), nil
	}
	if rest, ok := strings.CutPrefix(s, "(e^"); ok {
		return parseLayered(rest)
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return FromFloat(f), nil
	}

	i := strings.IndexAny(s, "eE")
	if i < 0 {
		return NaN(), fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	exp, err := Parse(s[i+1:])
	if err != nil {
		return NaN(), err
	}
	if i == 0 {
		return Pow10(exp), nil
	}
	m, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return NaN(), fmt.Errorf("%w: mantissa %q", ErrSyntax, s[:i])
	}
	return FromFloat(m).Mul(Pow10(exp)), nil
}

// parseLayered reads the "N)m" tail of a "(e^N)m" layer tower.
func parseLayered(s string) (Decimal, error) {
	end := strings.IndexByte(s, ')')
	if end < 0 {
		return NaN(), fmt.Errorf("%w: unclosed layer count", ErrSyntax)
	}
	n, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || n < 0 || n != math.Floor(n) {
		return NaN(), fmt.Errorf("%w: layer count %q", ErrSyntax, s[:end])
	}
	inner, err := Parse(s[end+1:])
	if err != nil {
		return NaN(), err
	}
	if inner.IsPoisoned() || n == 0 {
		return inner, nil
	}
	if inner.sign > 0 && !inner.tiny() {
		return normalize(1, inner.layer+n, inner.mag), nil
	}
	for i := 0.0; i < n && i < 16; i++ {
		inner = Pow10(inner)
	}
	return inner, nil
}

// MustParse is Parse that panics on error; for constants.
func MustParse(s string) Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// MarshalText implements encoding.TextMarshaler.
func (d Decimal) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decimal) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// UnmarshalJSON accepts both strings and bare JSON numbers.
func (d *Decimal) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		return d.UnmarshalText([]byte(s))
	}
	if string(b) == "null" {
		*d = Zero
		return nil
	}
	return d.UnmarshalText(b)
}
