package mods

import (
	"math"

	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/layer"
)

// GalaxyID is the galaxy generator layer.
const GalaxyID = "g"

// MetaField is the galaxy layer's meta-galaxy currency.
const MetaField = "meta"

// Galaxy upgrade IDs.
const (
	UpgGalaxyBoost  = 11 // galaxy gain × (galaxies/2 + 1)
	UpgVigintuple   = 12 // galaxy gain × 20
	UpgMetaGalaxy   = 13 // meta-galaxies, energy tetrated by meta
	UpgMetaExponent = 21 // galaxy gain ^ (meta + 1)
	UpgMetaBoost    = 22 // meta gain × (meta + 100)
	UpgCentuple     = 23 // meta gain × 100
	UpgRetribution  = 24 // shows the retribution progress
)

var (
	// EnergyCap bounds energy generation at 10^^1e100.
	EnergyCap = bignum.Tetrate10(1e100)

	metaRate = bignum.FromFloat(0.01)
	hundred  = bignum.FromFloat(100)
)

// Galaxy returns the galaxy generator: a row 0 layer that earns galaxies and,
// later, meta-galaxies over time instead of by resetting.
func Galaxy() *layer.Definition {
	return &layer.Definition{
		ID:            GalaxyID,
		Name:          "galaxy",
		Symbol:        "Galaxy Generator",
		Resource:      "Galaxies",
		Row:           0,
		Formula:       layer.None{},
		StartUnlocked: true,
		StartFields:   map[string]bignum.Decimal{MetaField: bignum.Zero},
		Upgrades: []layer.Upgrade{
			{
				ID:          UpgGalaxyBoost,
				Title:       "U-R0-0",
				Description: "Boost Galaxy Generation based on Galaxies",
				Cost:        layer.Lit(bignum.Ten),
				Effect: layer.Computed(func(c layer.Context) bignum.Decimal {
					return c.Points(GalaxyID).Div(bignum.Two).Add(bignum.One)
				}),
			},
			{
				ID:          UpgVigintuple,
				Title:       "U-R0-1",
				Description: "Vigintuple Galaxy Generation",
				Cost:        layer.Lit(bignum.FromFloat(1e4)),
				Effect:      layer.Lit(bignum.FromFloat(20)),
			},
			{
				ID:          UpgMetaGalaxy,
				Title:       "U-R0-2",
				Description: "Unlock Meta-Galaxy",
				Cost:        layer.Lit(bignum.FromFloat(1e100)),
			},
			{
				ID:          UpgMetaExponent,
				Title:       "U-R0-3",
				Description: "Boost Galaxy Generation based on Meta-Galaxies",
				Cost:        layer.Lit(bignum.Two.Pow(bignum.FromFloat(1024))),
				Unlocked:    owns(UpgMetaGalaxy),
				Effect: layer.Computed(func(c layer.Context) bignum.Decimal {
					return meta(c).Add(bignum.One)
				}),
			},
			{
				ID:          UpgMetaBoost,
				Title:       "U-R0-4",
				Description: "Boost Meta-Galaxy Generation based on Meta-Galaxies",
				Cost:        layer.Lit(bignum.MustParse("e1e100")),
				Unlocked:    owns(UpgMetaGalaxy),
				Effect: layer.Computed(func(c layer.Context) bignum.Decimal {
					return meta(c).Add(hundred)
				}),
			},
			{
				ID:          UpgCentuple,
				Title:       "U-R0-5",
				Description: "Centuple Meta-Galaxy Generation",
				Cost:        layer.Lit(bignum.MustParse("e1e1000")),
				Unlocked:    owns(UpgMetaGalaxy),
				Effect:      layer.Lit(hundred),
			},
			{
				ID:          UpgRetribution,
				Title:       "U-R0-6",
				Description: "Unlock RETRIBUTION",
				Cost:        layer.Lit(bignum.MustParse("e1e10000")),
				Unlocked:    owns(UpgCentuple),
			},
		},
		Hooks: layer.Hooks{
			Update: func(c layer.Context, diff float64) error {
				g, m := GalaxyGain(c, diff), MetaGain(c, diff)
				data := c.Player.Layer(GalaxyID)
				data.AddPoints(g)
				data.SetField(MetaField, meta(c).Add(m))
				return nil
			},
		},
	}
}

func owns(id int) layer.Value[bool] {
	return layer.Computed(func(c layer.Context) bool { return c.HasUpgrade(GalaxyID, id) })
}

func meta(c layer.Context) bignum.Decimal {
	d := c.Player.Layer(GalaxyID)
	if d == nil {
		return bignum.Zero
	}
	v, _ := d.Field(MetaField)
	return v
}

func effect(c layer.Context, id int) bignum.Decimal {
	if c.Game != nil {
		return c.Game.UpgradeEffect(GalaxyID, id)
	}
	return bignum.One
}

// GalaxyGain is the galaxies earned over diff seconds.
func GalaxyGain(c layer.Context, diff float64) bignum.Decimal {
	gain := bignum.FromFloat(diff)
	for _, id := range []int{UpgGalaxyBoost, UpgVigintuple} {
		if c.HasUpgrade(GalaxyID, id) {
			gain = gain.Mul(effect(c, id))
		}
	}
	if c.HasUpgrade(GalaxyID, UpgMetaExponent) {
		if exp := effect(c, UpgMetaExponent); exp.Gt(bignum.One) {
			gain = gain.Pow(exp)
		}
	}
	return gain
}

// MetaGain is the meta-galaxies earned over diff seconds; none until the
// meta-galaxy upgrade is owned.
func MetaGain(c layer.Context, diff float64) bignum.Decimal {
	if !c.HasUpgrade(GalaxyID, UpgMetaGalaxy) {
		return bignum.Zero
	}
	gain := bignum.FromFloat(diff).Mul(metaRate)
	for _, id := range []int{UpgMetaBoost, UpgCentuple} {
		if c.HasUpgrade(GalaxyID, id) {
			gain = gain.Mul(effect(c, id))
		}
	}
	return gain
}

// EnergyGeneration is the global point gain per second: 2^galaxies, tetrated
// by meta-galaxies once they are unlocked, never above EnergyCap.
func EnergyGeneration(c layer.Context) bignum.Decimal {
	gain := bignum.Two.Pow(c.Points(GalaxyID))
	if c.HasUpgrade(GalaxyID, UpgMetaGalaxy) {
		gain = gain.Tetrate(meta(c))
	}
	return gain.Min(EnergyCap)
}

// RetributionProgress is the progress towards retribution in percent:
// log10 of the super-logarithm of points, between 0 and 100.
func RetributionProgress(points bignum.Decimal) float64 {
	s := points.Slog()
	if math.IsNaN(s) || s <= 1 {
		return 0
	}
	return min(math.Log10(s), 100)
}
