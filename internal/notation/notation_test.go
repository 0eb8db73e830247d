package notation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/retribution/internal/bignum"
)

func TestDeduceWithoutTier(t *testing.T) {
	assert.Equal(t, "5", Deduce(bignum.FromFloat(5), 0))
	assert.Equal(t, "1.5e20", Deduce(bignum.FromFloat(1.5e20), 0))
	assert.Equal(t, Omega, Deduce(bignum.Tetrate10(1e100), 0))
	assert.Equal(t, Omega, Deduce(bignum.Inf(), 0))

	// the threshold itself is not past the threshold
	assert.NotEqual(t, Omega, Deduce(DefaultOmegaThreshold, 0))
	assert.Equal(t, "10^^9e99", Deduce(DefaultOmegaThreshold, 0))
}

func TestDeduceResultCarriesRule(t *testing.T) {
	d := NewDeducer(bignum.DefaultFormatter(), DefaultOmegaThreshold)

	res := d.Deduce(bignum.Tetrate10(1e100), 0)
	assert.Equal(t, ModeOmega, res.Mode)
	assert.Equal(t, "omega_display", res.Rule)
	assert.NotEmpty(t, res.Tooltip)

	res = d.Deduce(bignum.FromFloat(5), 1)
	assert.Equal(t, ModeRetribution, res.Mode)
	assert.Equal(t, "5", res.Display)
}

func TestCustomRules(t *testing.T) {
	d := NewDeducer(bignum.DefaultFormatter(), DefaultOmegaThreshold)
	d.AddRule(Rule{
		Name:     "million",
		Priority: 75,
		Mode:     ModeCustom,
		Match:    func(p bignum.Decimal, _ int) bool { return p.Gte(bignum.FromFloat(1e6)) },
		Render:   func(bignum.Decimal) Result { return Result{Display: "lots"} },
	})
	assert.Equal(t, "lots", d.Deduce(bignum.FromFloat(2e6), 0).Display)
	assert.Equal(t, ModeCustom, d.Deduce(bignum.FromFloat(2e6), 0).Mode)
	// retribution still outranks it
	assert.Equal(t, ModeRetribution, d.Deduce(bignum.FromFloat(2e6), 1).Mode)

	d.RemoveRule("million")
	assert.Equal(t, "2,000,000", d.Deduce(bignum.FromFloat(2e6), 0).Display)
}

func TestOrdinalBands(t *testing.T) {
	f := bignum.DefaultFormatter()
	cases := []struct {
		in   bignum.Decimal
		want string
	}{
		{bignum.Zero, "0"},
		{bignum.FromFloat(7.9), "7"},
		{bignum.FromFloat(100), "ω^2"},
		{bignum.FromFloat(1e100), "ε_ω^2"},
		{bignum.Tetrate10(3), "ζ_ω"},
		{bignum.Tetrate10(4), "η_ω"},
		{bignum.Tetrate10(5), "φ(4,ω)"},
		{bignum.Tetrate10(9e99), "φ(ε_ω,ω)"},
		{bignum.Inf(), Infinity},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Ordinal(f, c.in), "ordinal of %s", c.in)
	}
}

// Band boundaries sit on exact power-of-ten towers and belong to the upper
// band; these values pin that choice.
func TestOrdinalBandBoundaries(t *testing.T) {
	f := bignum.DefaultFormatter()
	assert.Equal(t, "9", Ordinal(f, bignum.FromFloat(9.999)))
	assert.Equal(t, Omega, Ordinal(f, bignum.FromFloat(10)))
	assert.Equal(t, "ω^9", Ordinal(f, bignum.FromFloat(9.99e9)))
	assert.Equal(t, "ε_ω", Ordinal(f, bignum.FromFloat(1e10)))
	assert.Equal(t, "ε_ω", Ordinal(f, bignum.Tetrate10(2)))
}
