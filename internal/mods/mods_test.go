package mods

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/engine"
	"github.com/talgya/retribution/internal/layer"
	"github.com/talgya/retribution/internal/notation"
)

func newGame(t *testing.T) *engine.Game {
	t.Helper()
	g, err := Retribution().NewGame()
	require.NoError(t, err)
	return g
}

func TestRetributionRegistry(t *testing.T) {
	reg, err := Retribution().Registry()
	require.NoError(t, err)

	assert.Equal(t, []int{0, RetributionRow}, reg.Rows())
	assert.Equal(t, []string{LabelLayer1, GalaxyID}, reg.Row(0))
	assert.Equal(t, []string{LabelMeta, RetributionID}, reg.Row(RetributionRow))

	p := reg.NewPlayer(bignum.Zero)
	v, ok := p.Layer(GalaxyID).Field(MetaField)
	require.True(t, ok)
	assert.True(t, v.IsZero())
	assert.True(t, p.Layer(RetributionID).Unlocked)
}

func TestGalaxyGeneration(t *testing.T) {
	g := newGame(t)

	require.True(t, g.Tick(1))
	assert.Equal(t, 1.0, g.Player.Points.Float64(), "2^0 energy per second")
	assert.Equal(t, 1.0, g.Player.Layer(GalaxyID).Points.Float64())

	require.True(t, g.Tick(1))
	assert.Equal(t, 3.0, g.Player.Points.Float64(), "2^1 energy per second")
	assert.Equal(t, 2.0, g.Player.Layer(GalaxyID).Points.Float64())
}

func TestGalaxyUpgradesMultiply(t *testing.T) {
	g := newGame(t)
	data := g.Player.Layer(GalaxyID)
	data.Points = bignum.FromFloat(4)
	data.Upgrades = []int{UpgGalaxyBoost, UpgVigintuple}

	require.True(t, g.Tick(1))
	assert.Equal(t, 64.0, data.Points.Float64(), "4 + 1 × 3 × 20")
	assert.Equal(t, 16.0, g.Player.Points.Float64())
}

func TestBuyGalaxyUpgrade(t *testing.T) {
	g := newGame(t)
	g.Player.Layer(GalaxyID).Points = bignum.FromFloat(15)

	assert.False(t, g.BuyUpgrade(GalaxyID, UpgMetaExponent), "locked behind the meta-galaxy upgrade")
	require.True(t, g.BuyUpgrade(GalaxyID, UpgGalaxyBoost))
	assert.Equal(t, 5.0, g.Player.Layer(GalaxyID).Points.Float64())
	assert.False(t, g.BuyUpgrade(GalaxyID, UpgGalaxyBoost), "already owned")
}

func TestMetaGalaxies(t *testing.T) {
	g := newGame(t)
	data := g.Player.Layer(GalaxyID)
	data.Points = bignum.FromFloat(3)
	data.Upgrades = []int{UpgMetaGalaxy}

	require.True(t, g.Tick(1))
	m, _ := data.Field(MetaField)
	assert.InDelta(t, 0.01, m.Float64(), 1e-12)
	assert.Equal(t, 1.0, g.Player.Points.Float64(), "8 tetrated by zero meta is 1")

	data.Upgrades = append(data.Upgrades, UpgCentuple)
	require.True(t, g.Tick(1))
	m, _ = data.Field(MetaField)
	assert.InDelta(t, 1.01, m.Float64(), 1e-9)
}

func TestEnergyGenerationCapped(t *testing.T) {
	reg, err := Retribution().Registry()
	require.NoError(t, err)
	p := reg.NewPlayer(bignum.Zero)
	data := p.Layer(GalaxyID)
	data.Points = bignum.FromFloat(10)
	data.Upgrades = []int{UpgMetaGalaxy}
	data.SetField(MetaField, bignum.Inf())

	c := layer.Context{Player: p, Layer: GalaxyID}
	assert.True(t, EnergyGeneration(c).Eq(EnergyCap))

	data.Upgrades = nil
	assert.Equal(t, 1024.0, EnergyGeneration(c).Float64())
}

func TestRetributionStage(t *testing.T) {
	g := newGame(t)

	assert.False(t, g.BuyBuyable(RetributionID, StageBuyable), "not enough energy")
	assert.Equal(t, 0, g.Player.Retributions)

	g.Player.Points = EnergyCap
	require.True(t, g.BuyBuyable(RetributionID, StageBuyable))
	assert.Equal(t, 1, g.Player.Retributions)
	assert.Equal(t, 1.0, g.Player.Layer(RetributionID).Buyable(StageBuyable).Float64())
	assert.Equal(t, notation.ModeRetribution, g.Status().Display.Mode)

	assert.False(t, g.BuyBuyable(RetributionID, StageBuyable), "second stage is locked")
	assert.Equal(t, 1, g.Player.Retributions)
}

func TestCurrentStage(t *testing.T) {
	assert.Equal(t, Stages[0].Description, CurrentStage(0).Description)
	assert.Equal(t, Stages[1].Description, CurrentStage(1).Description)
	assert.Equal(t, Stages[0].Description, CurrentStage(7).Description)
}

func TestRetributionProgress(t *testing.T) {
	assert.Equal(t, 0.0, RetributionProgress(bignum.Zero))
	assert.Equal(t, 0.0, RetributionProgress(bignum.Ten))
	assert.InDelta(t, 6.0, RetributionProgress(bignum.Tetrate10(1e6)), 1e-6)
	assert.InDelta(t, 100.0, RetributionProgress(EnergyCap), 1e-6)
	assert.Equal(t, 100.0, RetributionProgress(bignum.Inf()))
	assert.False(t, math.IsNaN(RetributionProgress(bignum.NaN())))
}
