// Command autoplayer plays a running Retribution server through its public
// API: it observes the game, decides on purchases and resets, and acts.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/retribution/internal/autoplay"
	"github.com/talgya/retribution/internal/logs"
)

func main() {
	if err := logs.Setup(os.Stdout, envOrDefault("AUTOPLAY_LOG_LEVEL", "info"), false); err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}

	// Configuration from environment.
	apiURL := envOrDefault("RETRIBUTION_API_URL", "http://localhost:8080")
	intervalSec := envIntOrDefault("AUTOPLAY_INTERVAL", 5)
	interval := time.Duration(intervalSec) * time.Second

	player := autoplay.NewPlayer(apiURL)
	if v := os.Getenv("AUTOPLAY_RESET_RATIO"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil && r > 0 {
			player.Policy.ResetRatio = r
		}
	}
	player.Memory = autoplay.LoadMemory(envOrDefault("AUTOPLAY_MEMORY", "autoplay_memory.json"))

	slog.Info("autoplayer starting",
		"api_url", apiURL,
		"interval", interval,
		"reset_ratio", player.Policy.ResetRatio,
		"remembered_cycles", len(player.Memory.Records),
	)

	slog.Info("waiting for retribution API...")
	waitForAPI(apiURL)

	runCycle(player)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runCycle(player)
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			fmt.Println("Autoplayer stopped.")
			return
		}
	}
}

func runCycle(player *autoplay.Player) {
	rec, err := player.Cycle()
	if err != nil {
		slog.Error("autoplay cycle failed", "error", err)
		return
	}
	slog.Info("autoplay cycle complete",
		"tick", rec.Tick,
		"taken", len(rec.Taken),
		"refused", rec.Refused,
	)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds. Exits after 5 minutes if the API never becomes ready.
func waitForAPI(apiURL string) {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		resp, err := http.Get(apiURL + "/api/v1/status")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("retribution API is ready")
				return
			}
		}
		if time.Now().After(deadline) {
			slog.Error("retribution API did not become ready within 5 minutes")
			os.Exit(1)
		}
		slog.Info("API not ready, retrying...", "backoff", backoff)
		time.Sleep(backoff)
		backoff = min(backoff*2, maxBackoff)
	}
}
