// Package config loads the server settings from a YAML file, with secrets
// taken from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/engine"
)

// AdminKeyEnv names the variable holding the admin bearer token.
const AdminKeyEnv = "RETRIBUTION_ADMIN_KEY"

type Config struct {
	Game    GameConfig    `yaml:"game" json:"game"`
	Display DisplayConfig `yaml:"display" json:"display"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	API     APIConfig     `yaml:"api" json:"api"`
	Mod     ModConfig     `yaml:"mod" json:"mod"`
	Log     LogConfig     `yaml:"log" json:"log"`
}

type GameConfig struct {
	TickInterval  time.Duration `yaml:"tick_interval" json:"tick_interval"`
	MaxTickLength float64       `yaml:"max_tick_length" json:"max_tick_length"` // seconds
	OfflineLimit  float64       `yaml:"offline_limit" json:"offline_limit"`     // hours
	OfflineProd   *bool         `yaml:"offline_prod" json:"offline_prod"`
	DevSpeed      float64       `yaml:"dev_speed" json:"dev_speed"`
	StartPoints   string        `yaml:"start_points" json:"start_points"`
	AutosaveTicks uint64        `yaml:"autosave_ticks" json:"autosave_ticks"`
}

type DisplayConfig struct {
	Precision      int     `yaml:"precision" json:"precision"`
	PlainCutoff    float64 `yaml:"plain_cutoff" json:"plain_cutoff"`
	OmegaThreshold string  `yaml:"omega_threshold" json:"omega_threshold"`
}

type StorageConfig struct {
	Path string `yaml:"path" json:"path"`
}

type APIConfig struct {
	Port     int    `yaml:"port" json:"port"`
	AdminKey string `yaml:"-" json:"-"`
}

// ModConfig selects the content. An empty file runs the built-in mod.
type ModConfig struct {
	File string `yaml:"file" json:"file"`
}

type LogConfig struct {
	Level   string `yaml:"level" json:"level"`
	Journal bool   `yaml:"journal" json:"journal"`
}

// Default returns the stock settings.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Game.TickInterval <= 0 {
		c.Game.TickInterval = engine.DefaultInterval
	}
	if c.Game.MaxTickLength <= 0 {
		c.Game.MaxTickLength = 3600
	}
	if c.Game.OfflineLimit <= 0 {
		c.Game.OfflineLimit = 8760
	}
	if c.Game.OfflineProd == nil {
		on := true
		c.Game.OfflineProd = &on
	}
	if c.Game.DevSpeed <= 0 {
		c.Game.DevSpeed = 1
	}
	if c.Game.AutosaveTicks == 0 {
		c.Game.AutosaveTicks = 600 // 30s at the default interval
	}
	if c.Display.Precision <= 0 {
		c.Display.Precision = 10
	}
	if c.Display.PlainCutoff <= 0 {
		c.Display.PlainCutoff = 1e9
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/retribution.db"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Load reads path, applies defaults and the environment. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	c.ApplyDefaults()
	c.FromEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// FromEnv applies environment overrides.
func (c *Config) FromEnv() {
	if key := os.Getenv(AdminKeyEnv); key != "" {
		c.API.AdminKey = key
	}
	if p := os.Getenv("RETRIBUTION_DB"); p != "" {
		c.Storage.Path = p
	}
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Game.StartPoints != "" {
		if _, err := bignum.Parse(c.Game.StartPoints); err != nil {
			return fmt.Errorf("game.start_points: %w", err)
		}
	}
	if c.Display.OmegaThreshold != "" {
		if _, err := bignum.Parse(c.Display.OmegaThreshold); err != nil {
			return fmt.Errorf("display.omega_threshold: %w", err)
		}
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	return nil
}

// Apply copies the game and display settings onto engine options. Start
// points and the omega threshold are only overridden when set, so a mod keeps
// its own.
func (c *Config) Apply(opts engine.Options) engine.Options {
	opts.MaxTickLength = c.Game.MaxTickLength
	opts.OfflineLimit = c.Game.OfflineLimit
	opts.OfflineProd = *c.Game.OfflineProd
	if c.Game.StartPoints != "" {
		if v, err := bignum.Parse(c.Game.StartPoints); err == nil {
			opts.StartPoints = v
		}
	}
	f := bignum.DefaultFormatter()
	f.Precision = c.Display.Precision
	f.PlainCutoff = c.Display.PlainCutoff
	opts.Formatter = f
	if c.Display.OmegaThreshold != "" {
		if v, err := bignum.Parse(c.Display.OmegaThreshold); err == nil {
			opts.OmegaThreshold = v
		}
	}
	return opts
}
