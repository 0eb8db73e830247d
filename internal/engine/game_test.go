package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/layer"
)

// testDefs returns a prestige layer p on row 0, a static booster b on row 1
// fed by p's points, and a side layer a.
func testDefs() []*layer.Definition {
	return []*layer.Definition{
		{
			ID: "p", Name: "Prestige", Row: 0, StartUnlocked: true,
			Formula:  layer.Normal{Requirement: layer.Lit(bignum.Ten)},
			Upgrades: []layer.Upgrade{{ID: 11, Title: "Begin", Cost: layer.Lit(bignum.One)}},
			Challenges: []layer.Challenge{
				{ID: 11, Name: "Once", Goal: layer.Lit(bignum.FromFloat(100)), CompletionLimit: 1},
				{ID: 12, Name: "Often", Goal: layer.Lit(bignum.FromFloat(100))},
			},
			Milestones: []layer.Milestone{{
				ID:          0,
				Requirement: "1 prestige point",
				Done:        layer.Computed(func(c layer.Context) bool { return c.Data().Points.Gte(bignum.One) }),
			}},
		},
		{
			ID: "b", Name: "Booster", Row: 1,
			Formula:             layer.Static{Requirement: layer.Lit(bignum.FromFloat(200))},
			BaseAmount:          layer.Computed(func(c layer.Context) bignum.Decimal { return c.Points("p") }),
			IncreaseUnlockOrder: []string{"a"},
			Challenges:          []layer.Challenge{{ID: 11, Name: "Locked", Goal: layer.Lit(bignum.One)}},
		},
		{ID: "a", Name: "Achievements", Side: "side"},
	}
}

func newGame(t *testing.T, defs []*layer.Definition) *Game {
	t.Helper()
	reg, err := layer.NewRegistry(defs...)
	require.NoError(t, err)
	return New(reg, DefaultOptions())
}

func withPoints(g *Game, v float64) {
	g.Player.Points = bignum.FromFloat(v)
	g.updateDerived()
}

func dec(v float64) bignum.Decimal { return bignum.FromFloat(v) }

func TestResetBelowRequirementIsNoop(t *testing.T) {
	g := newGame(t, testDefs())
	withPoints(g, 5)

	assert.True(t, g.ResetGain("p").IsZero())
	assert.False(t, g.CanReset("p"))
	assert.False(t, g.DoReset("p", false))
	assert.True(t, g.Player.Points.Eq(dec(5)))
	assert.True(t, g.Player.Layer("p").Points.IsZero())
}

func TestResetCreditsGain(t *testing.T) {
	g := newGame(t, testDefs())
	withPoints(g, 100)
	require.True(t, g.ResetGain("p").Eq(dec(10)))

	require.True(t, g.DoReset("p", false))
	p := g.Player.Layer("p")
	assert.True(t, p.Points.Eq(dec(10)))
	assert.True(t, p.Best.Eq(dec(10)))
	assert.True(t, p.Total.Eq(dec(10)))
	assert.Zero(t, p.ResetTime)
	assert.True(t, g.Player.Points.IsZero())
	assert.True(t, p.HasMilestone(0))
	assert.True(t, g.NextThreshold("p", false).Eq(dec(10)))

	events := g.RecentEvents(10)
	require.NotEmpty(t, events)
	assert.Equal(t, "reset", events[len(events)-1].Category)
}

func TestForcedResetSkipsCrediting(t *testing.T) {
	g := newGame(t, testDefs())
	withPoints(g, 100)
	require.True(t, g.DoReset("p", true))
	assert.True(t, g.Player.Layer("p").Points.IsZero())
	assert.True(t, g.Player.Points.IsZero())
}

func TestChallengeEnterThenToggle(t *testing.T) {
	g := newGame(t, testDefs())

	require.True(t, g.EnterChallenge("p", 12))
	assert.Equal(t, 12, g.Player.Layer("p").ActiveChallenge)

	withPoints(g, 150)
	assert.True(t, g.CanCompleteChallenge("p", 12))
	require.True(t, g.ToggleChallenge("p", 12))
	assert.Zero(t, g.Player.Layer("p").ActiveChallenge)
	assert.Equal(t, 1, g.Player.Layer("p").Completions(12))

	// goal not met: leaving does not count
	require.True(t, g.EnterChallenge("p", 12))
	require.True(t, g.ToggleChallenge("p", 12))
	assert.Zero(t, g.Player.Layer("p").ActiveChallenge)
	assert.Equal(t, 1, g.Player.Layer("p").Completions(12))
}

func TestChallengeCompletionLimit(t *testing.T) {
	g := newGame(t, testDefs())
	for range 3 {
		require.True(t, g.EnterChallenge("p", 11))
		withPoints(g, 150)
		require.True(t, g.ToggleChallenge("p", 11))
	}
	assert.Equal(t, 1, g.Player.Layer("p").Completions(11))
}

func TestFinalizeIsIdempotent(t *testing.T) {
	g := newGame(t, testDefs())
	assert.False(t, g.FinalizeChallenge("p", 0))
	assert.False(t, g.FinalizeChallenge("p", 0))

	require.True(t, g.EnterChallenge("p", 12))
	assert.True(t, g.FinalizeChallenge("p", 0))
	assert.False(t, g.FinalizeChallenge("p", 0))
	assert.False(t, g.FinalizeChallenge("p", 12))
	assert.Equal(t, 0, g.Player.Layer("p").Completions(12))
}

func TestChallengeHooksFire(t *testing.T) {
	defs := testDefs()
	var entered, completed, exited int
	ch := &defs[0].Challenges[1]
	ch.OnEnter = func(layer.Context) error { entered++; return nil }
	ch.OnComplete = func(layer.Context) error { completed++; return nil }
	ch.OnExit = func(layer.Context) error { exited++; return nil }
	g := newGame(t, defs)

	g.EnterChallenge("p", 12)
	withPoints(g, 150)
	g.ToggleChallenge("p", 12)
	g.EnterChallenge("p", 12)
	g.ToggleChallenge("p", 12)

	assert.Equal(t, 2, entered)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 2, exited)
}

func TestChallengeNeedsUnlockedLayer(t *testing.T) {
	g := newGame(t, testDefs())
	assert.False(t, g.EnterChallenge("b", 11))
	assert.Zero(t, g.Player.Layer("b").ActiveChallenge)
	assert.False(t, g.EnterChallenge("p", 99))
	assert.False(t, g.ToggleChallenge("zz", 11))
}

func TestEnteringAnotherChallengeFinalizesTheFirst(t *testing.T) {
	g := newGame(t, testDefs())
	require.True(t, g.EnterChallenge("p", 12))
	withPoints(g, 150)
	require.True(t, g.EnterChallenge("p", 11))

	assert.Equal(t, 11, g.Player.Layer("p").ActiveChallenge)
	assert.Equal(t, 1, g.Player.Layer("p").Completions(12))
}

func TestChallengeCurrencyPredicates(t *testing.T) {
	defs := testDefs()
	defs[0].Challenges = append(defs[0].Challenges,
		layer.Challenge{ID: 21, Goal: layer.Lit(dec(5)), CurrencyInternalName: "energy"},
		layer.Challenge{ID: 22, Goal: layer.Lit(dec(5)), CurrencyLayer: "b"},
		layer.Challenge{ID: 23, Goal: layer.Lit(dec(5)), CurrencyInternalName: "x",
			CurrencyLocation: func(layer.Context) (map[string]bignum.Decimal, error) {
				return map[string]bignum.Decimal{"x": dec(6)}, nil
			}},
		layer.Challenge{ID: 24, CanComplete: layer.Lit(true)},
	)
	defs[0].StartFields = map[string]bignum.Decimal{"energy": dec(1)}
	g := newGame(t, defs)

	require.True(t, g.EnterChallenge("p", 21))
	assert.False(t, g.CanCompleteChallenge("p", 21))
	g.Player.Layer("p").SetField("energy", dec(5))
	assert.True(t, g.CanCompleteChallenge("p", 21))
	assert.False(t, g.CanCompleteChallenge("p", 22), "only the active challenge can complete")

	require.True(t, g.EnterChallenge("p", 22))
	assert.False(t, g.CanCompleteChallenge("p", 22))
	g.Player.Layer("b").Points = dec(7)
	assert.True(t, g.CanCompleteChallenge("p", 22))

	require.True(t, g.EnterChallenge("p", 23))
	assert.True(t, g.CanCompleteChallenge("p", 23))

	require.True(t, g.EnterChallenge("p", 24))
	assert.True(t, g.CanCompleteChallenge("p", 24))
}

func TestCascadeResetsLowerRows(t *testing.T) {
	g := newGame(t, testDefs())
	p := g.Player.Layer("p")
	p.Points, p.Best = dec(500), dec(500)
	p.Upgrades = []int{11}
	p.Milestones = []int{0}
	g.updateDerived()
	require.True(t, g.CanReset("b"))

	require.True(t, g.DoReset("b", false))

	b := g.Player.Layer("b")
	assert.True(t, b.Points.Eq(bignum.One))
	assert.True(t, b.Unlocked)
	assert.Equal(t, 1, g.Player.Layer("a").UnlockOrder)

	p = g.Player.Layer("p")
	assert.True(t, p.Points.IsZero())
	assert.Empty(t, p.Upgrades)
	assert.Equal(t, []int{0}, p.Milestones)
	assert.True(t, p.Best.Eq(dec(500)))
	assert.True(t, p.Unlocked)
	assert.True(t, g.Player.Points.IsZero())
}

func TestCustomResetHookReplacesDataReset(t *testing.T) {
	defs := testDefs()
	var trigger string
	defs[0].Hooks.Reset = func(c layer.Context, from string) error {
		trigger = from
		return nil
	}
	g := newGame(t, defs)
	p := g.Player.Layer("p")
	p.Points = dec(500)
	p.ActiveChallenge = 12
	g.updateDerived()

	require.True(t, g.DoReset("b", false))
	assert.Equal(t, "b", trigger)
	assert.Zero(t, p.ActiveChallenge)
	assert.True(t, p.Points.Eq(dec(500)), "the hook owns the layer's data")
}

func TestTrackersNeverDecrease(t *testing.T) {
	g := newGame(t, testDefs())
	p := g.Player.Layer("p")
	best, total := p.Best, p.Total
	for i := range 6 {
		withPoints(g, float64(100*(i+1)))
		g.DoReset("p", i%2 == 1)
		g.Tick(1)
		g.DoReset("b", true)
		assert.True(t, p.Best.Gte(best), "best after round %d", i)
		assert.True(t, p.Total.Gte(total), "total after round %d", i)
		best, total = p.Best, p.Total
	}
	assert.True(t, total.Gt(bignum.Zero))
}

func TestTickSanitizesDiff(t *testing.T) {
	g := newGame(t, testDefs())
	g.Tick(math.NaN())
	assert.Zero(t, g.Player.TotalTime)
	g.Tick(-3)
	assert.Zero(t, g.Player.TotalTime)
	g.Tick(1e9)
	assert.Equal(t, 3600.0, g.Player.TotalTime)

	g.Player.GameEnded = true
	g.Tick(5)
	assert.Equal(t, 3600.0, g.Player.TotalTime)
	g.SetKeepGoing(true)
	g.Tick(5)
	assert.Equal(t, 3605.0, g.Player.TotalTime)
}

func TestTickDropsReentrantCall(t *testing.T) {
	g := newGame(t, testDefs())
	g.ticking.Store(true)
	assert.False(t, g.Tick(1))
	assert.False(t, g.Advance(1))
	assert.Zero(t, g.Player.TotalTime)

	g.ticking.Store(false)
	assert.True(t, g.Tick(1))
	assert.Equal(t, 1.0, g.Player.TotalTime)
}

func TestPointGenAndPassiveGeneration(t *testing.T) {
	defs := testDefs()
	defs[0].PassiveGeneration = layer.Lit(dec(0.5))
	reg, err := layer.NewRegistry(defs...)
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.PointGen = layer.Lit(bignum.Zero)
	g := New(reg, opts)
	withPoints(g, 100)

	require.True(t, g.Tick(2))
	assert.True(t, g.Player.Layer("p").Points.Eq(dec(10)))

	opts.PointGen = layer.Lit(dec(3))
	g2 := New(reg, opts)
	g2.Tick(2)
	assert.True(t, g2.Player.Points.Eq(dec(6)))
}

func TestAutoPrestigeAndAutoUpgrade(t *testing.T) {
	defs := testDefs()
	defs[0].AutoPrestige = layer.Lit(true)
	defs[0].AutoUpgrade = layer.Lit(true)
	g := newGame(t, defs)
	withPoints(g, 100)

	g.Tick(0)
	p := g.Player.Layer("p")
	assert.True(t, p.HasUpgrade(11))
	assert.True(t, p.Points.Eq(dec(9)), "10 gained, 1 spent")
}

func TestHookFailuresAreContained(t *testing.T) {
	defs := testDefs()
	defs[0].Hooks.Update = func(layer.Context, float64) error { panic("broken mod") }
	called := false
	defs[1].Hooks.Update = func(layer.Context, float64) error { called = true; return nil }
	defs[0].Formula = layer.Normal{
		Requirement: layer.Lit(bignum.Ten),
		Exponent:    layer.Computed(func(layer.Context) bignum.Decimal { panic("bad exponent") }),
	}
	g := newGame(t, defs)
	withPoints(g, 100)

	assert.True(t, g.Tick(1))
	assert.True(t, called)
	assert.Equal(t, 1.0, g.Player.TotalTime)
	assert.True(t, g.ResetGain("p").Eq(dec(10)), "exponent falls back to 1")
}

func TestFixNaNsRunsAfterTick(t *testing.T) {
	g := newGame(t, testDefs())
	g.Player.Layer("p").Points = bignum.NaN()
	g.Tick(1)
	assert.True(t, g.Player.Layer("p").Points.IsZero())
}

func TestUnlockCondition(t *testing.T) {
	defs := testDefs()
	defs[1].Unlocked = layer.Computed(func(c layer.Context) bool { return c.Points("p").Gte(dec(50)) })
	g := newGame(t, defs)
	g.Tick(1)
	assert.False(t, g.Player.Layer("b").Unlocked)
	g.Player.Layer("p").Points = dec(60)
	g.Tick(1)
	assert.True(t, g.Player.Layer("b").Unlocked)
}

func TestOfflineCatchUp(t *testing.T) {
	g := newGame(t, testDefs())
	g.AddOfflineTime(100)

	require.True(t, g.Advance(1))
	assert.Equal(t, 11.0, g.Player.TotalTime)
	require.NotNil(t, g.Player.OffTime)
	assert.InDelta(t, 90, g.Player.OffTime.Remain, 1e-9)

	steps := 1
	for g.Player.OffTime != nil && steps < 1000 {
		g.Advance(1)
		steps++
	}
	assert.Nil(t, g.Player.OffTime)
	assert.InDelta(t, 100+float64(steps), g.Player.TotalTime, 1e-6)
}

func TestOfflineLimit(t *testing.T) {
	reg, err := layer.NewRegistry(testDefs()...)
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.OfflineLimit = 0.01 // 36 seconds
	g := New(reg, opts)
	g.AddOfflineTime(1000)
	g.Advance(0)
	assert.InDelta(t, 3.6, g.Player.TotalTime, 1e-9)
	assert.InDelta(t, 32.4, g.Player.OffTime.Remain, 1e-9)
}

func TestResetRow(t *testing.T) {
	g := newGame(t, testDefs())
	g.Player.Layer("p").Points = dec(500)
	g.updateDerived()
	require.True(t, g.DoReset("b", false))
	g.Player.Layer("b").UnlockOrder = 2

	assert.True(t, g.ResetRow(1))
	assert.False(t, g.Player.Layer("b").Unlocked)
	assert.Zero(t, g.Player.Layer("b").UnlockOrder)
	assert.False(t, g.ResetRow(5))
}

func TestRowResetFromHigherTrigger(t *testing.T) {
	g := newGame(t, testDefs())
	g.Player.Layer("p").Points = dec(3)
	require.True(t, g.BuyUpgrade("p", 11))
	g.Player.Layer("p").Milestones = []int{0}
	g.Player.Points = dec(42)

	g.RowReset(0, "p")
	assert.True(t, g.Player.Layer("p").HasUpgrade(11), "same-row trigger keeps data")

	g.RowReset(0, "b")
	p := g.Player.Layer("p")
	assert.False(t, p.HasUpgrade(11))
	assert.True(t, p.Points.IsZero())
	assert.True(t, p.Unlocked)
	assert.Equal(t, []int{0}, p.Milestones)
	assert.True(t, g.Player.Points.Eq(dec(42)), "global points are not part of a row")

	g.RowReset(0, "zz")
}

func TestLayerDataResetKeepsRequestedFields(t *testing.T) {
	g := newGame(t, testDefs())
	p := g.Player.Layer("p")
	p.Points = dec(40)
	p.Upgrades = []int{11}
	p.Achievements = []int{3}

	g.LayerDataReset("p", "upgrades")
	p = g.Player.Layer("p")
	assert.True(t, p.Points.IsZero())
	assert.Equal(t, []int{11}, p.Upgrades)
	assert.Equal(t, []int{3}, p.Achievements)
	assert.True(t, p.Unlocked)
}

func TestBuyUpgrade(t *testing.T) {
	g := newGame(t, testDefs())
	assert.False(t, g.BuyUpgrade("p", 11), "cannot afford")
	g.Player.Layer("p").Points = dec(3)
	assert.True(t, g.BuyUpgrade("p", 11))
	assert.False(t, g.BuyUpgrade("p", 11), "already owned")
	assert.True(t, g.Player.Layer("p").Points.Eq(dec(2)))
	assert.False(t, g.BuyUpgrade("p", 99))
}

func TestHardReset(t *testing.T) {
	g := newGame(t, testDefs())
	old := g.Player.ID
	withPoints(g, 100)
	g.DoReset("p", false)
	require.True(t, g.Tick(1))
	require.NotEmpty(t, g.RecentEvents(0))

	g.HardReset()
	assert.NotEqual(t, old, g.Player.ID)
	assert.True(t, g.Player.Layer("p").Points.IsZero())
	events := g.RecentEvents(0)
	require.Len(t, events, 1)
	assert.Equal(t, "hard reset", events[0].Description)

	_, saved, tick := g.Checkpoint()
	assert.Len(t, saved, 1)
	assert.Zero(t, tick)
}

func TestViews(t *testing.T) {
	g := newGame(t, testDefs())
	st := g.Status()
	assert.Len(t, st.Layers, 3)
	assert.Equal(t, "p", st.Layers[0].ID)
	assert.Equal(t, "normal_display", st.Display.Rule)

	v, ok := g.Layer("p")
	require.True(t, ok)
	assert.Equal(t, "normal", v.Type)
	assert.Len(t, v.Upgrades, 1)
	assert.Len(t, v.Challenges, 2)
	_, ok = g.Layer("zz")
	assert.False(t, ok)
}

func TestPlayTime(t *testing.T) {
	assert.Equal(t, "0m 05s", PlayTime(5))
	assert.Equal(t, "1h 02m 05s", PlayTime(3725))
	assert.Equal(t, "1d 1h 01m 01s", PlayTime(90061))
}

func TestEngineStep(t *testing.T) {
	g := newGame(t, testDefs())
	e := NewEngine(g)
	e.AutosaveEvery = 2
	saves := 0
	e.OnAutosave = func(uint64) { saves++ }

	for range 4 {
		e.Step(1)
	}
	assert.Equal(t, uint64(4), e.Steps())
	assert.Equal(t, 2, saves)
	assert.Equal(t, 4.0, g.Player.TotalTime)

	g.SetDevSpeed(2)
	e.Step(1)
	assert.Equal(t, 6.0, g.Player.TotalTime)
}

func TestEngineRunStop(t *testing.T) {
	g := newGame(t, testDefs())
	e := NewEngine(g)
	e.Interval = time.Millisecond

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()
	require.Eventually(t, e.Running, time.Second, time.Millisecond)
	e.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run loop did not stop")
	}
	assert.False(t, e.Running())
}
