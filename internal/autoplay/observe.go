// Package autoplay implements an automated player for a running server.
// It observes the game through the public API, decides on purchases, resets
// and challenge completions with a fixed policy, and acts through the player
// endpoints.
package autoplay

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/retribution/internal/engine"
)

// Snapshot holds all data collected during an observation cycle.
type Snapshot struct {
	Status ServerStatus       `json:"status"`
	Layers []engine.LayerView `json:"layers"`
}

// ServerStatus mirrors GET /api/v1/status.
type ServerStatus struct {
	Name    string        `json:"name"`
	Running bool          `json:"running"`
	Steps   uint64        `json:"steps"`
	Game    engine.Status `json:"game"`
}

// Observer fetches game state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches the status and every layer view.
func (o *Observer) Observe() (*Snapshot, error) {
	snap := &Snapshot{}

	if err := o.fetchJSON("/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON("/api/v1/layers", &snap.Layers); err != nil {
		return nil, fmt.Errorf("fetch layers: %w", err)
	}

	return snap, nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(path string, target any) error {
	resp, err := o.HTTPClient.Get(o.BaseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
