// Command retribution runs the Retribution Incremental progression server.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/talgya/retribution/internal/api"
	"github.com/talgya/retribution/internal/config"
	"github.com/talgya/retribution/internal/engine"
	"github.com/talgya/retribution/internal/logs"
	"github.com/talgya/retribution/internal/modpack"
	"github.com/talgya/retribution/internal/mods"
	"github.com/talgya/retribution/internal/persistence"
)

func main() {
	cfgPath := os.Getenv("RETRIBUTION_CONFIG")
	if cfgPath == "" {
		cfgPath = "retribution.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}
	if err := logs.Setup(os.Stdout, cfg.Log.Level, cfg.Log.Journal); err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
		os.MkdirAll(dir, 0755)
	}
	db, err := persistence.Open(cfg.Storage.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Storage.Path)

	// ── Content ───────────────────────────────────────────────────────
	content := mods.Retribution()
	if cfg.Mod.File != "" {
		if content, err = modpack.Load(cfg.Mod.File); err != nil {
			slog.Error("failed to load mod", "file", cfg.Mod.File, "error", err)
			os.Exit(1)
		}
	}
	content.Options = cfg.Apply(content.Options)

	game, err := content.NewGame()
	if err != nil {
		slog.Error("invalid mod", "error", err)
		os.Exit(1)
	}
	slog.Info("mod ready", "name", content.Name, "layers", len(game.Registry.IDs()), "rows", game.Registry.Rows())

	// ── Load or Start Fresh ───────────────────────────────────────────
	p, tick, err := db.LoadState()
	switch {
	case errors.Is(err, persistence.ErrNoSave):
		slog.Info("no saved game found, starting fresh", "id", game.Player.ID)
		if err := db.SaveGame(game); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	case err != nil:
		slog.Error("failed to load save", "error", err)
		os.Exit(1)
	default:
		offline := db.OfflineSeconds()
		game.Load(p)
		game.LastTick = tick
		game.AddOfflineTime(offline)
		slog.Info("save restored",
			"id", p.ID,
			"tick", tick,
			"play_time", engine.PlayTime(p.TotalTime),
			"offline", engine.PlayTime(offline),
		)
	}
	if cfg.Game.DevSpeed != 1 {
		game.SetDevSpeed(cfg.Game.DevSpeed)
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(game)
	eng.Interval = cfg.Game.TickInterval
	eng.AutosaveEvery = cfg.Game.AutosaveTicks
	eng.OnAutosave = func(step uint64) {
		if err := db.SaveGame(game); err != nil {
			slog.Error("autosave failed", "step", step, "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.AdminKey == "" {
		slog.Warn(config.AdminKeyEnv + " not set, admin endpoints will be disabled")
	}
	apiServer := &api.Server{
		Game:     game,
		Eng:      eng,
		DB:       db,
		Port:     cfg.API.Port,
		AdminKey: cfg.API.AdminKey,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	st := game.Status()
	fmt.Printf("\n%s: %s points, display %s.\n", content.Name, st.Points, st.Display.Mode)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	fmt.Println("Starting progression... (Ctrl+C to stop)")

	eng.Run()

	slog.Info("final save...")
	if err := db.SaveGame(game); err != nil {
		slog.Error("final save failed", "error", err)
	}
	fmt.Println("Stopped. Game saved.")
}
