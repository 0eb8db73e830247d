// Package notation chooses how the headline point total is shown: plain
// formatting, the ω symbol past the tetration threshold, or the ordinal
// hierarchy once a retribution tier is active. Extra rules can be added by
// priority.
package notation

import (
	"math"
	"sort"

	"github.com/talgya/retribution/internal/bignum"
)

// Mode names which family of rule produced a display.
type Mode string

const (
	ModeNormal      Mode = "normal"
	ModeOmega       Mode = "omega"
	ModeRetribution Mode = "retribution"
	ModeCustom      Mode = "custom"
)

// Symbols.
const (
	Omega    = "ω"
	Infinity = "∞"
)

// DefaultOmegaThreshold is 10^^9e99; totals above it render as ω.
var DefaultOmegaThreshold = bignum.Tetrate10(9e99)

// Result is a rendered display with the rule that produced it.
type Result struct {
	Display string `json:"display"`
	Mode    Mode   `json:"mode"`
	Rule    string `json:"rule"`
	Tooltip string `json:"tooltip,omitempty"`
}

// Rule renders points when Match holds. Higher priorities are tried first.
type Rule struct {
	Name     string
	Priority int
	Mode     Mode
	Match    func(points bignum.Decimal, tier int) bool
	Render   func(points bignum.Decimal) Result
}

// Deducer applies display rules in priority order.
type Deducer struct {
	Formatter      bignum.Formatter
	OmegaThreshold bignum.Decimal
	rules          []Rule
}

// NewDeducer returns a Deducer with the retribution, omega and normal rules.
func NewDeducer(f bignum.Formatter, omega bignum.Decimal) *Deducer {
	d := &Deducer{Formatter: f, OmegaThreshold: omega}
	d.AddRule(Rule{
		Name:     "retribution_mode",
		Priority: 100,
		Mode:     ModeRetribution,
		Match:    func(_ bignum.Decimal, tier int) bool { return tier > 0 },
		Render: func(p bignum.Decimal) Result {
			return Result{Display: Ordinal(d.Formatter, p), Tooltip: d.Formatter.Format(p)}
		},
	})
	d.AddRule(Rule{
		Name:     "omega_display",
		Priority: 50,
		Mode:     ModeOmega,
		Match:    func(p bignum.Decimal, _ int) bool { return p.Gt(d.OmegaThreshold) },
		Render: func(p bignum.Decimal) Result {
			return Result{Display: Omega, Tooltip: d.Formatter.Format(p)}
		},
	})
	d.AddRule(Rule{
		Name:   "normal_display",
		Mode:   ModeNormal,
		Match:  func(bignum.Decimal, int) bool { return true },
		Render: func(p bignum.Decimal) Result { return Result{Display: d.Formatter.Format(p)} },
	})
	return d
}

// AddRule installs r, keeping rules ordered by descending priority.
func (d *Deducer) AddRule(r Rule) {
	d.rules = append(d.rules, r)
	sort.SliceStable(d.rules, func(i, j int) bool { return d.rules[i].Priority > d.rules[j].Priority })
}

// RemoveRule drops every rule with the given name.
func (d *Deducer) RemoveRule(name string) {
	kept := d.rules[:0]
	for _, r := range d.rules {
		if r.Name != name {
			kept = append(kept, r)
		}
	}
	d.rules = kept
}

// Deduce renders points for the given retribution tier.
func (d *Deducer) Deduce(points bignum.Decimal, tier int) Result {
	for _, r := range d.rules {
		if r.Match == nil || !r.Match(points, tier) {
			continue
		}
		res := r.Render(points)
		res.Rule = r.Name
		if res.Mode == "" {
			res.Mode = r.Mode
		}
		return res
	}
	return Result{Display: "0", Mode: ModeNormal, Rule: "fallback"}
}

// Deduce renders points with the stock formatter and thresholds.
func Deduce(points bignum.Decimal, tier int) string {
	return NewDeducer(bignum.DefaultFormatter(), DefaultOmegaThreshold).Deduce(points, tier).Display
}

// Ordinal renders x in the ordinal hierarchy. Below 10 the value is a finite
// ordinal. Above it, n is the number of log10 steps that bring x below 10
// and b is x after n-1 steps, so b lies in [10, 1e10). The level a = n-1
// picks the name: ω^log10(b), ε_b, ζ_b, η_b, then φ(a,b). Each band starts
// at an exact power-of-ten tower, inclusive.
func Ordinal(f bignum.Formatter, x bignum.Decimal) string {
	switch {
	case x.IsNaN():
		return "NaN"
	case x.IsInf():
		return Infinity
	case x.Lt(bignum.Ten):
		return f.FormatPrecision(x.Floor().Max(bignum.Zero), f.Precision)
	}
	a, b := reduce(x)
	sub := func(v float64) string { return Ordinal(f, bignum.FromFloat(v)) }
	switch a {
	case 0:
		e := sub(log10Snap(b))
		if e == "1" {
			return Omega
		}
		return Omega + "^" + e
	case 1:
		return "ε_" + sub(b)
	case 2:
		return "ζ_" + sub(b)
	case 3:
		return "η_" + sub(b)
	}
	return "φ(" + sub(a) + "," + sub(b) + ")"
}

// reduce returns the level a and the reduced value b of x ≥ 10.
func reduce(x bignum.Decimal) (a, b float64) {
	steps, m := x.Layer(), x.Mag()
	prev := m
	for m >= 10 {
		prev = m
		m = log10Snap(m)
		steps++
	}
	return steps - 1, prev
}

// log10Snap is log10 rounded onto integers it misses by float error, so
// exact powers of ten land on their band boundary.
func log10Snap(v float64) float64 {
	l := math.Log10(v)
	if r := math.Round(l); math.Abs(l-r) < 1e-12 {
		return r
	}
	return l
}
