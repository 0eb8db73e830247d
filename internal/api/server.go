// Package api provides the HTTP API for playing and observing a game.
// GET endpoints are public and read-only. Player actions are public POSTs
// behind a rate limiter; control endpoints require the admin bearer token.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/talgya/retribution/internal/engine"
	"github.com/talgya/retribution/internal/persistence"
)

const maxStreamConns = 8

// Server serves a game over HTTP.
type Server struct {
	Game     *engine.Game
	Eng      *engine.Engine
	DB       *persistence.DB // optional; save and hard reset touch it
	Port     int
	AdminKey string // Bearer token for admin endpoints. Empty = admin disabled.

	// StreamInterval is the time between status pushes on the stream.
	StreamInterval time.Duration

	streamConns int32
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	actionLimiter := NewRateLimiter(1200, time.Minute)
	act := func(h http.HandlerFunc) http.HandlerFunc {
		return RateLimitMiddleware(actionLimiter, postOnly(h))
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/layers", s.handleLayers)
	mux.HandleFunc("/api/v1/layer/", s.handleLayerDetail)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/schema", s.handleSchema)
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// Player actions (POST).
	mux.HandleFunc("/api/v1/reset", act(s.handleReset))
	mux.HandleFunc("/api/v1/challenge", act(s.handleChallenge))
	mux.HandleFunc("/api/v1/upgrade", act(s.handleUpgrade))
	mux.HandleFunc("/api/v1/buyable", act(s.handleBuyable))
	mux.HandleFunc("/api/v1/clickable", act(s.handleClickable))
	mux.HandleFunc("/api/v1/row-reset", act(s.handleRowReset))
	mux.HandleFunc("/api/v1/keep-going", act(s.handleKeepGoing))

	// Admin endpoints (require bearer token).
	mux.HandleFunc("/api/v1/devspeed", s.adminOnly(s.handleDevSpeed))
	mux.HandleFunc("/api/v1/save", s.adminOnly(postOnly(s.handleSave)))
	mux.HandleFunc("/api/v1/hard-reset", s.adminOnly(postOnly(s.handleHardReset)))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := http.ListenAndServe(addr, s.Handler()); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra origins.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no RETRIBUTION_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
