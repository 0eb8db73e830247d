package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/talgya/retribution/internal/engine"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Game.Status()
	running := false
	var steps uint64
	if s.Eng != nil {
		running = s.Eng.Running()
		steps = s.Eng.Steps()
	}
	writeJSON(w, map[string]any{
		"name":    "Retribution",
		"running": running,
		"steps":   steps,
		"game":    st,
	})
}

func (s *Server) handleLayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Game.Layers())
}

// handleLayerDetail serves GET /api/v1/layer/:id.
func (s *Server) handleLayerDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/layer/")
	if id == "" {
		http.Error(w, "missing layer id", http.StatusBadRequest)
		return
	}
	v, ok := s.Game.Layer(id)
	if !ok {
		http.Error(w, "layer not found", http.StatusNotFound)
		return
	}
	writeJSON(w, v)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	events := s.Game.RecentEvents(0)

	// Optional category filter.
	if cat := r.URL.Query().Get("category"); cat != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.Category == cat {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	writeJSON(w, events[start:])
}

// handleSchema describes the read-only views as JSON Schema.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	reflector := &jsonschema.Reflector{DoNotReference: true}
	writeJSON(w, map[string]any{
		"status": reflector.Reflect(&engine.Status{}),
		"layer":  reflector.Reflect(&engine.LayerView{}),
		"event":  reflector.Reflect(&engine.Event{}),
	})
}

type layerAction struct {
	Layer string `json:"layer"`
	ID    int    `json:"id"`
}

type actionResult struct {
	OK     bool          `json:"ok"`
	Status engine.Status `json:"status"`
}

func (s *Server) respond(w http.ResponseWriter, ok bool) {
	if !ok {
		w.WriteHeader(http.StatusConflict)
	}
	writeJSON(w, actionResult{OK: ok, Status: s.Game.Status()})
}

func (s *Server) knownLayer(w http.ResponseWriter, id string) bool {
	if _, ok := s.Game.Registry.Get(id); !ok {
		http.Error(w, "layer not found", http.StatusNotFound)
		return false
	}
	return true
}

// handleReset prestiges a layer.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req layerAction
	if !decode(w, r, &req) || !s.knownLayer(w, req.Layer) {
		return
	}
	s.respond(w, s.Game.DoReset(req.Layer, false))
}

// handleChallenge enters, leaves or completes a challenge. Action is
// "toggle" (default), "enter" or "complete".
func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		layerAction
		Action string `json:"action"`
	}
	if !decode(w, r, &req) || !s.knownLayer(w, req.Layer) {
		return
	}
	var ok bool
	switch req.Action {
	case "", "toggle":
		ok = s.Game.ToggleChallenge(req.Layer, req.ID)
	case "enter":
		ok = s.Game.EnterChallenge(req.Layer, req.ID)
	case "complete":
		ok = s.Game.FinalizeChallenge(req.Layer, req.ID)
	default:
		http.Error(w, "action must be toggle, enter or complete", http.StatusBadRequest)
		return
	}
	s.respond(w, ok)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	var req layerAction
	if !decode(w, r, &req) || !s.knownLayer(w, req.Layer) {
		return
	}
	s.respond(w, s.Game.BuyUpgrade(req.Layer, req.ID))
}

func (s *Server) handleBuyable(w http.ResponseWriter, r *http.Request) {
	var req layerAction
	if !decode(w, r, &req) || !s.knownLayer(w, req.Layer) {
		return
	}
	s.respond(w, s.Game.BuyBuyable(req.Layer, req.ID))
}

func (s *Server) handleClickable(w http.ResponseWriter, r *http.Request) {
	var req layerAction
	if !decode(w, r, &req) || !s.knownLayer(w, req.Layer) {
		return
	}
	s.respond(w, s.Game.Click(req.Layer, req.ID))
}

// handleRowReset wipes a whole row. The request must carry the typed
// confirmation phrase.
func (s *Server) handleRowReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Row          int    `json:"row"`
		Confirmation string `json:"confirmation"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Confirmation != engine.ResetConfirmation {
		http.Error(w, "confirmation must be "+strconv.Quote(engine.ResetConfirmation), http.StatusBadRequest)
		return
	}
	s.respond(w, s.Game.ResetRow(req.Row))
}

func (s *Server) handleKeepGoing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KeepGoing bool `json:"keep_going"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.Game.SetKeepGoing(req.KeepGoing)
	s.respond(w, true)
}

func (s *Server) handleDevSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if !decode(w, r, &req) {
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Game.SetDevSpeed(req.Speed)
	}
	writeJSON(w, map[string]float64{"dev_speed": s.Game.Status().DevSpeed})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "no database configured", http.StatusServiceUnavailable)
		return
	}
	if err := s.DB.SaveGame(s.Game); err != nil {
		slog.Error("manual save failed", "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]bool{"saved": true})
}

// handleHardReset discards all progress, in memory and on disk.
func (s *Server) handleHardReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirmation string `json:"confirmation"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Confirmation != engine.ResetConfirmation {
		http.Error(w, "confirmation must be "+strconv.Quote(engine.ResetConfirmation), http.StatusBadRequest)
		return
	}
	s.Game.HardReset()
	if s.DB != nil {
		if err := s.DB.Clear(); err != nil {
			slog.Error("clearing save failed", "error", err)
			http.Error(w, "clear save failed", http.StatusInternalServerError)
			return
		}
	}
	slog.Warn("hard reset via API", "remote", r.RemoteAddr)
	s.respond(w, true)
}
