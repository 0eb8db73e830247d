package mods

import (
	"log/slog"

	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/layer"
)

// Layer IDs of the retribution content.
const (
	RetributionID = "retri"
	LabelLayer1   = "1layer"
	LabelMeta     = "metalayer"
)

// RetributionRow keeps the retribution layer above every other row.
const RetributionRow = 99

// StageBuyable is the retribution layer's stage button.
const StageBuyable = 11

// Stage is one step of the retribution track.
type Stage struct {
	Description string
	Ready       func(c layer.Context) bool
}

// Stages lists the retribution track in order. Only the first stage can be
// cleared; the second is the locked end of the track.
var Stages = []Stage{
	{
		Description: "First stage",
		Ready: func(c layer.Context) bool {
			return c.Player.Points.Gte(EnergyCap)
		},
	},
	{
		Description: "Second stage (locked)",
		Ready:       func(layer.Context) bool { return false },
	},
}

// CurrentStage returns the stage for a retribution tier. Tiers past the end
// of the track fall back to the first stage.
func CurrentStage(tier int) Stage {
	if tier < 0 || tier >= len(Stages) {
		return Stages[0]
	}
	return Stages[tier]
}

// RetributionLayer returns the top layer. Buying its stage button raises the
// retribution tier, which switches the point display to ordinals.
func RetributionLayer() *layer.Definition {
	return &layer.Definition{
		ID:            RetributionID,
		Name:          "Retribution",
		Symbol:        "Retribution",
		Resource:      "Retributions",
		Row:           RetributionRow,
		Formula:       layer.None{},
		StartUnlocked: true,
		Buyables: []layer.Buyable{{
			ID:    StageBuyable,
			Title: "RETRIBUTION",
			Cost:  layer.Lit(EnergyCap),
			CanAfford: layer.Computed(func(c layer.Context) bool {
				return CurrentStage(c.Player.Retributions).Ready(c)
			}),
			Buy:    advanceStage,
			Effect: layer.Computed(func(c layer.Context) bignum.Decimal { return bignum.FromInt(int64(c.Player.Retributions)) }),
		}},
	}
}

func advanceStage(c layer.Context) error {
	p := c.Player
	if p.Retributions >= len(Stages)-1 {
		return nil
	}
	p.Retributions++
	data := c.Data()
	data.Buyables[StageBuyable] = bignum.FromInt(int64(p.Retributions))
	slog.Info("retribution stage cleared", "tier", p.Retributions, "stage", CurrentStage(p.Retributions).Description)
	return nil
}

// rowLabel is a point-less marker layer heading a row of the tree.
func rowLabel(id, name, symbol string, row int) *layer.Definition {
	return &layer.Definition{
		ID:            id,
		Name:          name,
		Symbol:        symbol,
		Row:           row,
		Formula:       layer.None{},
		StartUnlocked: true,
	}
}
