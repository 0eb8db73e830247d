// Package mods holds the built-in game content: the Retribution Incremental
// layers and the engine settings they run with.
package mods

import (
	"fmt"

	"github.com/talgya/retribution/internal/engine"
	"github.com/talgya/retribution/internal/layer"
)

// Content bundles a mod's layers with the engine settings it expects.
type Content struct {
	Name    string
	Layers  []*layer.Definition
	Options engine.Options
}

// Registry indexes the content's layers.
func (c Content) Registry() (*layer.Registry, error) {
	reg, err := layer.NewRegistry(c.Layers...)
	if err != nil {
		return nil, fmt.Errorf("mod %q: %w", c.Name, err)
	}
	return reg, nil
}

// NewGame builds a fresh game for the content.
func (c Content) NewGame() (*engine.Game, error) {
	reg, err := c.Registry()
	if err != nil {
		return nil, err
	}
	return engine.New(reg, c.Options), nil
}

// Retribution returns the Retribution Incremental content: the galaxy
// generator, the retribution layer and the two row labels.
func Retribution() Content {
	opts := engine.DefaultOptions()
	opts.PointGen = layer.Computed(EnergyGeneration)
	opts.CanGenPoints = layer.Lit(true)
	opts.EndGame = layer.Lit(false)
	return Content{
		Name: "Retribution Incremental",
		Layers: []*layer.Definition{
			rowLabel(LabelLayer1, "sideLayer1", "↓ Layer 1 ↓", 0),
			Galaxy(),
			rowLabel(LabelMeta, "sideLayerMeta", "↓ Meta-Layer ↓", RetributionRow),
			RetributionLayer(),
		},
		Options: opts,
	}
}
