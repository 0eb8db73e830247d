package modpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"

	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/layer"
	"github.com/talgya/retribution/internal/state"
)

func dec(f float64) bignum.Decimal { return bignum.FromFloat(f) }

func TestLoadDemo(t *testing.T) {
	content, err := Load("testdata/demo.cue")
	require.NoError(t, err)

	assert.Equal(t, "Demo", content.Name)
	require.Len(t, content.Layers, 2)
	assert.True(t, content.Options.StartPoints.Eq(dec(10)))

	p := content.Layers[0]
	assert.Equal(t, "p", p.ID)
	assert.Equal(t, layer.TypeNormal, p.Type())
	assert.True(t, p.StartUnlocked)
	assert.Len(t, p.Upgrades, 2)
	assert.Equal(t, 1, p.Challenges[0].CompletionLimit)
	assert.Contains(t, p.StartFields, "dust")

	b := content.Layers[1]
	assert.Equal(t, layer.TypeStatic, b.Type())
	assert.Equal(t, 1, b.Row)
	assert.True(t, b.Unlocked.IsSet())
}

func TestDemoPlays(t *testing.T) {
	content, err := Load("testdata/demo.cue")
	require.NoError(t, err)
	g, err := content.NewGame()
	require.NoError(t, err)

	require.True(t, g.Tick(1))
	assert.True(t, g.Player.Points.Eq(dec(11)), "points: %s", g.Player.Points)

	p := g.Player.Layer("p")
	dust, ok := p.Field("dust")
	require.True(t, ok)
	assert.True(t, dust.Eq(bignum.One), "update hook gathers dust")
	assert.True(t, p.HasAchievement(11))
	assert.True(t, p.Points.Eq(bignum.One), "achievement reward adds a prestige point")
	assert.False(t, p.HasMilestone(0))

	require.True(t, g.BuyUpgrade("p", 11))
	assert.True(t, p.Points.IsZero())

	require.True(t, g.Tick(1))
	assert.True(t, g.Player.Points.Eq(dec(13)), "echo doubles generation: %s", g.Player.Points)

	assert.False(t, g.Player.Layer("b").Unlocked)
	g.Player.Points = dec(200)
	require.True(t, g.Tick(0))
	assert.True(t, g.Player.Layer("b").Unlocked)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "unknown field",
			src:  `name: "x", layers: [{id: "a", row: 0, bogus: 1}]`,
			want: "bogus",
		},
		{
			name: "no layers",
			src:  `name: "x", layers: []`,
			want: "validate",
		},
		{
			name: "missing function",
			src: `name: "x", point_gen: "@nope", script: """
				def other():
				    return 1
				""", layers: [{id: "a", row: 0}]`,
			want: `"nope" not defined`,
		},
		{
			name: "reference without script",
			src:  `name: "x", point_gen: "@nope", layers: [{id: "a", row: 0}]`,
			want: "mod has no script",
		},
		{
			name: "custom without gain",
			src:  `name: "x", layers: [{id: "a", row: 0, type: "custom"}]`,
			want: "gain function",
		},
		{
			name: "bad number",
			src:  `name: "x", layers: [{id: "a", row: 0, start_points: "lots"}]`,
			want: "start_points",
		},
		{
			name: "script error",
			src:  `name: "x", script: "x = 1 +", layers: [{id: "a", row: 0}]`,
			want: "script",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("test.cue", []byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecimalValue(t *testing.T) {
	s, err := compileScript("test.star", `
x = D("1e10") * 2
y = (x / 2).log10().float()
z = 3 * D(2) - 1
huge = tetrate10(3) > D("1e308")
neg = -D(5)
small = D(2).lt(3)
`)
	require.NoError(t, err)

	y, ok := s.globals["y"].(starlark.Float)
	require.True(t, ok)
	assert.InDelta(t, 10, float64(y), 1e-9)

	z, err := ToDecimal(s.globals["z"])
	require.NoError(t, err)
	assert.True(t, z.Eq(dec(5)))

	assert.Equal(t, "True", s.globals["huge"].String())
	assert.Equal(t, "True", s.globals["small"].String())

	neg, err := ToDecimal(s.globals["neg"])
	require.NoError(t, err)
	assert.True(t, neg.Eq(dec(-5)))
}

func TestBuiltinsNeedContext(t *testing.T) {
	_, err := compileScript("test.star", "p = points()\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only available inside mod callbacks")
}

func TestCallWithContext(t *testing.T) {
	s, err := compileScript("test.star", `
def double():
    return layer_points() * 2

def stash(amount):
    set_field("p", "stash", amount)
    return field("p", "stash")

def owned():
    return has_upgrade("p", 11) and not has_upgrade("p", 12)
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"double", "owned", "stash"}, s.Functions())

	p := state.NewPlayer()
	p.Layers["p"] = &state.LayerData{Points: dec(5), Upgrades: []int{11}}
	c := layer.Context{Player: p, Layer: "p"}

	fn, err := s.Func("double")
	require.NoError(t, err)
	out, err := s.Call(c, fn)
	require.NoError(t, err)
	d, err := ToDecimal(out)
	require.NoError(t, err)
	assert.True(t, d.Eq(dec(10)))

	fn, err = s.Func("stash")
	require.NoError(t, err)
	_, err = s.Call(c, fn, Decimal{dec(7)})
	require.NoError(t, err)
	v, ok := p.Layers["p"].Field("stash")
	require.True(t, ok)
	assert.True(t, v.Eq(dec(7)))

	fn, err = s.Func("owned")
	require.NoError(t, err)
	out, err = s.Call(c, fn)
	require.NoError(t, err)
	assert.Equal(t, "True", out.String())

	_, err = s.Func("missing")
	assert.Error(t, err)
}
