package autoplay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ActionResult is the response of the player endpoints.
type ActionResult struct {
	OK bool `json:"ok"`
}

// Actor executes actions via the player API.
type Actor struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL.
func NewActor(baseURL string) *Actor {
	return &Actor{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Act sends one action. A refused action (409) reports false without error.
func (a *Actor) Act(act Action) (bool, error) {
	path := "/api/v1/" + act.Kind
	payload := map[string]any{"layer": act.Layer, "id": act.ID}
	if act.Kind == ActComplete {
		path = "/api/v1/challenge"
		payload["action"] = "complete"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal action: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, a.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusConflict:
	default:
		return false, fmt.Errorf("%s %s failed (%d): %s", act.Kind, act.Layer, resp.StatusCode, string(respBody))
	}

	var result ActionResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return result.OK, nil
}
