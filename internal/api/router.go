package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/spbnode/internal/journal"
	"github.com/nerrad567/spbnode/internal/sparkplug"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "not found")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/session", s.handleSession)

		r.Route("/journal", func(r chi.Router) {
			r.Get("/", s.handleListJournal)
			r.Get("/death/{sessionID}", s.handleLastDeath)
		})
	})

	return r
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Session    string            `json:"session"`
	Components map[string]string `json:"components,omitempty"`
}

// handleHealth runs every registered component check.
//
// It answers 200 when all components are healthy and 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.version,
		Session: s.session.Snapshot().State,
	}

	if len(s.checks) > 0 {
		names := make([]string, 0, len(s.checks))
		for name := range s.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		resp.Components = make(map[string]string, len(names))
		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := s.checks[name].HealthCheck(ctx)
			cancel()

			if err != nil {
				resp.Status = "degraded"
				resp.Components[name] = err.Error()
				continue
			}
			resp.Components[name] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleSession returns the current session snapshot.
func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

// handleListJournal returns recent journal entries with optional filters.
//
// Query parameters:
//   - session_id: filter by session
//   - type: filter by message type (NBIRTH, NDATA, NDEATH)
//   - limit: max results (default 50, max 500)
func (s *Server) handleListJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeNotFound(w, "message journal not configured")
		return
	}

	q := r.URL.Query()
	filter := journal.Filter{
		SessionID: q.Get("session_id"),
		Type:      sparkplug.MessageType(q.Get("type")),
	}
	switch filter.Type {
	case "", sparkplug.NBirth, sparkplug.NData, sparkplug.NDeath:
	default:
		writeBadRequest(w, "type must be NBIRTH, NDATA or NDEATH")
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}

	entries, err := s.journal.Recent(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list journal entries", "error", err)
		writeInternalError(w, "failed to list journal entries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleLastDeath returns the NDEATH recorded for a session.
func (s *Server) handleLastDeath(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeNotFound(w, "message journal not configured")
		return
	}

	entry, err := s.journal.LastDeath(r.Context(), chi.URLParam(r, "sessionID"))
	if errors.Is(err, journal.ErrNotFound) {
		writeNotFound(w, "no death recorded for session")
		return
	}
	if err != nil {
		s.logger.Error("failed to load death entry", "error", err)
		writeInternalError(w, "failed to load death entry")
		return
	}

	writeJSON(w, http.StatusOK, entry)
}
