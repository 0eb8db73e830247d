package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/engine"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "retribution.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(AdminKeyEnv, "")
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, engine.DefaultInterval, c.Game.TickInterval)
	assert.Equal(t, 3600.0, c.Game.MaxTickLength)
	assert.Equal(t, 8760.0, c.Game.OfflineLimit)
	assert.True(t, *c.Game.OfflineProd)
	assert.Equal(t, 1.0, c.Game.DevSpeed)
	assert.Equal(t, "data/retribution.db", c.Storage.Path)
	assert.Equal(t, 8080, c.API.Port)
	assert.Empty(t, c.API.AdminKey)

	opts := engine.DefaultOptions()
	opts.StartPoints = bignum.FromFloat(10)
	opts = c.Apply(opts)
	assert.True(t, opts.StartPoints.Eq(bignum.FromFloat(10)), "unset start points keep the mod's")
}

func TestLoadFile(t *testing.T) {
	t.Setenv(AdminKeyEnv, "s3cret")
	path := writeConfig(t, `
game:
  tick_interval: 100ms
  max_tick_length: 60
  offline_prod: false
  start_points: "1e10"
display:
  precision: 4
  omega_threshold: "10^^9e99"
api:
  port: 9000
mod:
  file: mods/demo.cue
log:
  level: debug
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 100*time.Millisecond, c.Game.TickInterval)
	assert.Equal(t, 60.0, c.Game.MaxTickLength)
	assert.False(t, *c.Game.OfflineProd)
	assert.Equal(t, 9000, c.API.Port)
	assert.Equal(t, "mods/demo.cue", c.Mod.File)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "s3cret", c.API.AdminKey)

	opts := c.Apply(engine.DefaultOptions())
	assert.Equal(t, 60.0, opts.MaxTickLength)
	assert.False(t, opts.OfflineProd)
	assert.Equal(t, 4, opts.Formatter.Precision)
	assert.True(t, opts.StartPoints.Eq(bignum.FromFloat(1e10)))
	assert.True(t, opts.OmegaThreshold.Eq(bignum.Tetrate10(9e99)))
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load(writeConfig(t, "game:\n  start_points: lots\n"))
	assert.ErrorContains(t, err, "start_points")

	_, err = Load(writeConfig(t, "api:\n  port: 70000\n"))
	assert.ErrorContains(t, err, "api.port")

	_, err = Load(writeConfig(t, "game: [1, 2"))
	assert.ErrorContains(t, err, "parse config")
}
