package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/engine"
	"github.com/talgya/retribution/internal/layer"
)

const adminKey = "test-key"

func newServer(t *testing.T) *Server {
	t.Helper()
	reg, err := layer.NewRegistry(
		&layer.Definition{
			ID: "p", Name: "Prestige", Row: 0, StartUnlocked: true,
			Formula:    layer.Normal{Requirement: layer.Lit(bignum.Ten)},
			Upgrades:   []layer.Upgrade{{ID: 11, Title: "Begin", Cost: layer.Lit(bignum.One)}},
			Challenges: []layer.Challenge{{ID: 11, Name: "Trial", Goal: layer.Lit(bignum.FromFloat(100))}},
		},
		&layer.Definition{ID: "q", Name: "Second", Row: 1, Formula: layer.Normal{Requirement: layer.Lit(bignum.Ten)}},
	)
	require.NoError(t, err)
	g := engine.New(reg, engine.DefaultOptions())
	g.Player.Points = bignum.FromFloat(100)
	require.True(t, g.Tick(0))
	return &Server{Game: g, AdminKey: adminKey, StreamInterval: 10 * time.Millisecond}
}

func do(t *testing.T, h http.Handler, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	if auth {
		r.Header.Set("Authorization", "Bearer "+adminKey)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) actionResult {
	t.Helper()
	var res actionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestStatusAndLayers(t *testing.T) {
	s := newServer(t)
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/api/v1/status", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		Name string        `json:"name"`
		Game engine.Status `json:"game"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "Retribution", status.Name)
	assert.Equal(t, s.Game.Player.ID, status.Game.ID)
	assert.Len(t, status.Game.Layers, 2)

	w = do(t, h, http.MethodGet, "/api/v1/layers", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var layers []engine.LayerView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &layers))
	require.Len(t, layers, 2)
	assert.Equal(t, "p", layers[0].ID)

	w = do(t, h, http.MethodGet, "/api/v1/layer/p", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var lv engine.LayerView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lv))
	assert.True(t, lv.CanReset)
	require.Len(t, lv.Upgrades, 1)
	assert.Equal(t, "Begin", lv.Upgrades[0].Title)

	w = do(t, h, http.MethodGet, "/api/v1/layer/nope", "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusWhileEngineRuns(t *testing.T) {
	s := newServer(t)
	s.Eng = engine.NewEngine(s.Game)
	s.Eng.Interval = time.Millisecond
	go s.Eng.Run()
	t.Cleanup(s.Eng.Stop)
	h := s.Handler()

	var status struct {
		Running bool   `json:"running"`
		Steps   uint64 `json:"steps"`
	}
	for range 50 {
		w := do(t, h, http.MethodGet, "/api/v1/status", "", false)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	}
	require.Eventually(t, func() bool {
		w := do(t, h, http.MethodGet, "/api/v1/status", "", false)
		return json.Unmarshal(w.Body.Bytes(), &status) == nil && status.Steps > 0
	}, time.Second, 5*time.Millisecond)
	assert.True(t, status.Running)
}

func TestResetAction(t *testing.T) {
	s := newServer(t)
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/reset", `{"layer":"p"}`, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeResult(t, w).OK)
	assert.True(t, s.Game.Player.Layer("p").Points.Eq(bignum.Ten))
	assert.True(t, s.Game.Player.Points.IsZero())

	w = do(t, h, http.MethodPost, "/api/v1/reset", `{"layer":"p"}`, false)
	assert.Equal(t, http.StatusConflict, w.Code, "nothing left to reset for")
	assert.False(t, decodeResult(t, w).OK)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/v1/reset", `{"layer":"zz"}`, false).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/reset", `{`, false).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/v1/reset", "", false).Code)
}

func TestPurchaseAndChallengeActions(t *testing.T) {
	s := newServer(t)
	h := s.Handler()
	s.Game.Player.Layer("p").Points = bignum.FromFloat(5)

	w := do(t, h, http.MethodPost, "/api/v1/upgrade", `{"layer":"p","id":11}`, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, s.Game.Player.Layer("p").HasUpgrade(11))

	w = do(t, h, http.MethodPost, "/api/v1/challenge", `{"layer":"p","id":11,"action":"enter"}`, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 11, s.Game.Player.Layer("p").ActiveChallenge)

	w = do(t, h, http.MethodPost, "/api/v1/challenge", `{"layer":"p","id":11}`, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, s.Game.Player.Layer("p").ActiveChallenge)

	w = do(t, h, http.MethodPost, "/api/v1/challenge", `{"layer":"p","id":11,"action":"dance"}`, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRowResetNeedsConfirmation(t *testing.T) {
	s := newServer(t)
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/row-reset", `{"row":0,"confirmation":"yes"}`, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := `{"row":0,"confirmation":"` + engine.ResetConfirmation + `"}`
	w = do(t, h, http.MethodPost, "/api/v1/row-reset", body, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeResult(t, w).OK)
	assert.False(t, s.Game.Player.Layer("p").Unlocked)
}

func TestAdminEndpoints(t *testing.T) {
	s := newServer(t)
	h := s.Handler()

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/v1/devspeed", `{"speed":2}`, false).Code)

	w := do(t, h, http.MethodPost, "/api/v1/devspeed", `{"speed":2}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, s.Game.Player.DevSpeed)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/devspeed", `{"speed":-1}`, true).Code)

	w = do(t, h, http.MethodGet, "/api/v1/devspeed", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"dev_speed": 2`)

	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/api/v1/save", "", true).Code)

	id := s.Game.Player.ID
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/hard-reset", `{}`, true).Code)
	w = do(t, h, http.MethodPost, "/api/v1/hard-reset", `{"confirmation":"`+engine.ResetConfirmation+`"}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, id, s.Game.Player.ID)
	assert.True(t, s.Game.Player.Points.IsZero())
}

func TestAdminDisabledWithoutKey(t *testing.T) {
	s := newServer(t)
	s.AdminKey = ""
	w := do(t, s.Handler(), http.MethodPost, "/api/v1/devspeed", `{"speed":2}`, true)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestEventsFilter(t *testing.T) {
	s := newServer(t)
	h := s.Handler()
	s.Game.EmitEvent(engine.Event{Description: "hello", Category: "system"})
	require.True(t, s.Game.DoReset("p", false))

	w := do(t, h, http.MethodGet, "/api/v1/events?category=system", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var events []engine.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "hello", events[0].Description)

	w = do(t, h, http.MethodGet, "/api/v1/events?limit=1", "", false)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	assert.Len(t, events, 1)
}

func TestSchema(t *testing.T) {
	w := do(t, newServer(t).Handler(), http.MethodGet, "/api/v1/schema", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Contains(t, doc, "status")
	assert.Contains(t, string(doc["layer"]), "reset_gain")
}

func TestStream(t *testing.T) {
	s := newServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	for range 2 {
		var st engine.Status
		require.NoError(t, conn.ReadJSON(&st))
		assert.Equal(t, s.Game.Player.ID, st.ID)
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"))
	assert.Equal(t, 60, rl.RetryAfter("1.2.3.4"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("1.2.3.4"))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(r))
}
