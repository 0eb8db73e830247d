package autoplay

import (
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/retribution/internal/api"
	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/engine"
	"github.com/talgya/retribution/internal/layer"
)

func newGameServer(t *testing.T) (*engine.Game, *httptest.Server) {
	t.Helper()
	reg, err := layer.NewRegistry(
		&layer.Definition{
			ID: "p", Name: "Prestige", Row: 0, StartUnlocked: true,
			Formula:  layer.Normal{Requirement: layer.Lit(bignum.Ten)},
			Upgrades: []layer.Upgrade{{ID: 11, Title: "Begin", Cost: layer.Lit(bignum.One)}},
		},
	)
	require.NoError(t, err)
	g := engine.New(reg, engine.DefaultOptions())
	g.Player.Points = bignum.FromFloat(100)
	require.True(t, g.Tick(0))

	srv := httptest.NewServer((&api.Server{Game: g}).Handler())
	t.Cleanup(srv.Close)
	return g, srv
}

func TestCyclePlaysThroughAPI(t *testing.T) {
	g, srv := newGameServer(t)
	mem := &CycleMemory{Path: filepath.Join(t.TempDir(), "memory.json")}
	p := NewPlayer(srv.URL)
	p.Memory = mem

	rec, err := p.Cycle()
	require.NoError(t, err)
	require.Len(t, rec.Taken, 1)
	assert.Equal(t, ActReset, rec.Taken[0].Kind)
	assert.True(t, g.Player.Layer("p").Points.Eq(bignum.Ten))

	rec, err = p.Cycle()
	require.NoError(t, err)
	require.Len(t, rec.Taken, 1)
	assert.Equal(t, ActUpgrade, rec.Taken[0].Kind)
	assert.Equal(t, 11, rec.Taken[0].ID)
	assert.True(t, g.Player.Layer("p").HasUpgrade(11))

	assert.Len(t, mem.Records, 2)
	assert.Equal(t, 1, mem.Resets("p"))

	loaded := LoadMemory(mem.Path)
	assert.Len(t, loaded.Records, 2)
}

func TestObserveError(t *testing.T) {
	srv := httptest.NewServer(nil)
	srv.Close()
	_, err := NewObserver(srv.URL).Observe()
	assert.ErrorContains(t, err, "fetch status")
}

func view(id string, row int) engine.LayerView {
	v := engine.LayerView{ResetGain: "0", PointsExact: "0"}
	v.ID, v.Row, v.Unlocked = id, row, true
	return v
}

func TestDecideOrder(t *testing.T) {
	low := view("a", 0)
	low.CanReset, low.ResetGain, low.PointsExact = true, "5", "10"
	low.Upgrades = []engine.UpgradeView{
		{ID: 11, Unlocked: true, CanAfford: true},
		{ID: 12, Unlocked: true, Bought: true, CanAfford: true},
		{ID: 13, Unlocked: false, CanAfford: true},
	}

	high := view("b", 1)
	high.CanReset, high.ResetGain, high.PointsExact = true, "20", "10"
	high.Challenges = []engine.ChallengeView{{ID: 11, Active: true, CanComplete: true}}

	locked := view("c", 2)
	locked.Unlocked = false
	locked.CanReset, locked.ResetGain = true, "1e10"

	snap := &Snapshot{Layers: []engine.LayerView{low, high, locked}}
	got := Decide(snap, DefaultPolicy())
	require.Len(t, got, 3)
	assert.Equal(t, ActComplete, got[0].Kind)
	assert.Equal(t, "b", got[0].Layer)
	assert.Equal(t, ActUpgrade, got[1].Kind)
	assert.Equal(t, 11, got[1].ID)
	assert.Equal(t, ActReset, got[2].Kind)
	assert.Equal(t, "b", got[2].Layer, "a's gain does not double its points")

	pol := DefaultPolicy()
	pol.ResetRatio = 0.5
	pol.MaxActions = 3
	got = Decide(snap, pol)
	assert.Len(t, got, 3, "capped")

	snap.Status.Game.GameEnded = true
	assert.Empty(t, Decide(snap, pol))
}

func TestWorthResetting(t *testing.T) {
	v := view("a", 0)
	v.ResetGain, v.PointsExact = "1", "0"
	assert.True(t, worthResetting(v, 1), "any gain on empty layer")

	v.ResetGain = "0"
	assert.False(t, worthResetting(v, 1))

	v.ResetGain, v.PointsExact = "e1e50", "1e300"
	assert.True(t, worthResetting(v, 1))

	v.ResetGain = "NaN"
	assert.False(t, worthResetting(v, 1))
}
