package layer

import (
	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/state"
)

// Game is the view of the running engine that mod functions may use.
// Implementations are called with the engine lock held.
type Game interface {
	HasUpgrade(layer string, id int) bool
	UpgradeEffect(layer string, id int) bignum.Decimal
	BuyableEffect(layer string, id int) bignum.Decimal
	ChallengeEffect(layer string, id int) bignum.Decimal
	InChallenge(layer string, id int) bool
	ResetGain(layer string) bignum.Decimal
	DoReset(layer string, force bool)
}

// Context is passed to computed values and hooks.
type Context struct {
	Player *state.Player
	Layer  string
	Game   Game
}

// Data returns the record of the layer being evaluated.
func (c Context) Data() *state.LayerData {
	return c.Player.Layer(c.Layer)
}

// For returns a copy of c scoped to another layer.
func (c Context) For(layer string) Context {
	c.Layer = layer
	return c
}

// Points returns the points of the named layer, or zero.
func (c Context) Points(layer string) bignum.Decimal {
	if d := c.Player.Layer(layer); d != nil {
		return d.Points
	}
	return bignum.Zero
}

// HasUpgrade reports whether the named layer owns upgrade id.
func (c Context) HasUpgrade(layer string, id int) bool {
	if c.Game != nil {
		return c.Game.HasUpgrade(layer, id)
	}
	d := c.Player.Layer(layer)
	return d != nil && d.HasUpgrade(id)
}
