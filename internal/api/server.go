// Package api exposes the read-only dashboard HTTP API and the WebSocket
// hub that streams coaching messages to connected dashboards.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/DarrylTHJ/derivcoach/internal/coach"
	"github.com/DarrylTHJ/derivcoach/internal/model"
	"github.com/DarrylTHJ/derivcoach/internal/session"
	"github.com/DarrylTHJ/derivcoach/internal/store"
)

const defaultListLimit = 50

// Service handles dashboard queries. All endpoints are read-only except
// the pause dismissal, which cancels an active forced-pause countdown.
type Service struct {
	store  store.Store
	engine *session.Engine
	pause  *coach.PauseController
}

// NewService creates a new dashboard service.
func NewService(st store.Store, engine *session.Engine, pause *coach.PauseController) *Service {
	return &Service{store: st, engine: engine, pause: pause}
}

// LiveStatusResponse is the JSON body returned from GET /api/v1/status.
type LiveStatusResponse struct {
	Connected   bool                `json:"connected"`
	Session     *model.SessionState `json:"session,omitempty"`
	PauseActive bool                `json:"pause_active"`
}

// GetStatus handles GET /api/v1/status
// Returns the live session snapshot, or connected=false between sessions.
func (s *Service) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := LiveStatusResponse{PauseActive: s.pause.Active()}
	if state, ok := s.engine.Snapshot(); ok {
		resp.Connected = true
		resp.Session = &state
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ListSessions handles GET /api/v1/sessions
// Returns the most recent sessions, newest first. Optional ?limit=<n>.
func (s *Service) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []model.SessionRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessions)
}

// GetSession handles GET /api/v1/sessions/{sessionID}
func (s *Service) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	rec, err := s.store.GetSession(r.Context(), sessionID)
	if err != nil {
		writeError(w, "session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// GetSessionEvents handles GET /api/v1/sessions/{sessionID}/events
// Returns coaching events for a session, newest first. Optional ?limit=<n>.
func (s *Service) GetSessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	events, err := s.store.GetEventsBySession(r.Context(), sessionID, queryLimit(r))
	if err != nil {
		writeError(w, "failed to get session events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []model.EventRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

// DismissPause handles POST /api/v1/pause/dismiss
// Cancels an active countdown. Returns 409 when there is nothing to
// dismiss or the pause is non-dismissible (harsh mode).
func (s *Service) DismissPause(w http.ResponseWriter, r *http.Request) {
	if !s.pause.Dismiss() {
		writeError(w, "no dismissible pause active", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "dismissed"})
}

// queryLimit parses the optional ?limit=<n> query parameter.
func queryLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return defaultListLimit
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
