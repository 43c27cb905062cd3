package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/spbnode/internal/infrastructure/config"
	"github.com/nerrad567/spbnode/internal/infrastructure/database"
	"github.com/nerrad567/spbnode/internal/infrastructure/logging"
	"github.com/nerrad567/spbnode/internal/journal"
	"github.com/nerrad567/spbnode/internal/session"
	"github.com/nerrad567/spbnode/internal/sparkplug"
	"github.com/nerrad567/spbnode/migrations"
)

// stubSession returns a fixed snapshot.
type stubSession struct {
	snap session.Snapshot
}

func (s stubSession) Snapshot() session.Snapshot { return s.snap }

// stubChecker returns a fixed health result.
type stubChecker struct {
	err error
}

func (c stubChecker) HealthCheck(context.Context) error { return c.err }

// panicSession panics on every snapshot.
type panicSession struct{}

func (panicSession) Snapshot() session.Snapshot { panic("boom") }

func liveSnapshot() session.Snapshot {
	return session.Snapshot{
		ID:       "sess-1",
		State:    session.StateLive.String(),
		Group:    "plant_a",
		Node:     "line_1",
		Sequence: 3,
		Values:   sparkplug.Values{"temp": float32(21.5)},
		Published: map[sparkplug.MessageType]int{
			sparkplug.NBirth: 1,
			sparkplug.NData:  2,
		},
	}
}

// testServer creates a Server with the given overrides applied to default deps.
func testServer(t *testing.T, mutate func(*Deps)) *Server {
	t.Helper()

	deps := Deps{
		Config: config.StatusConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.StatusTimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		Logger:  logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard),
		Session: stubSession{snap: liveSnapshot()},
		Version: "test",
	}
	if mutate != nil {
		mutate(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

// openTestJournal creates a migrated journal database.
func openTestJournal(t *testing.T) (*database.DB, *journal.SQLiteRepository) {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db, journal.NewSQLiteRepository(db.DB)
}

// get performs a GET against the server's router.
func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_MissingDeps(t *testing.T) {
	logger := logging.NewWithWriter(config.LoggingConfig{}, "test", io.Discard)

	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Session: stubSession{}}},
		{"no session", Deps{Logger: logger}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

// =============================================================================
// Health
// =============================================================================

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]HealthChecker
		wantStatus int
		wantBody   string
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name: "all healthy",
			checks: map[string]HealthChecker{
				"mqtt":     stubChecker{},
				"database": stubChecker{},
			},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name: "one failing",
			checks: map[string]HealthChecker{
				"mqtt":     stubChecker{err: errors.New("mqtt: not connected")},
				"database": stubChecker{},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, func(d *Deps) { d.Checks = tt.checks })

			rec := get(t, srv, "/api/v1/health")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var resp HealthResponse
			decode(t, rec, &resp)
			if resp.Status != tt.wantBody {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantBody)
			}
			if resp.Session != "live" {
				t.Errorf("session = %q, want live", resp.Session)
			}
			if len(resp.Components) != len(tt.checks) {
				t.Errorf("components = %v, want %d entries", resp.Components, len(tt.checks))
			}
		})
	}
}

func TestHandleHealth_ReportsFailure(t *testing.T) {
	srv := testServer(t, func(d *Deps) {
		d.Checks = map[string]HealthChecker{"mqtt": stubChecker{err: errors.New("mqtt: not connected")}}
	})

	var resp HealthResponse
	decode(t, get(t, srv, "/api/v1/health"), &resp)
	if resp.Components["mqtt"] != "mqtt: not connected" {
		t.Errorf("components[mqtt] = %q", resp.Components["mqtt"])
	}
}

// =============================================================================
// Session and Metrics
// =============================================================================

func TestHandleSession(t *testing.T) {
	srv := testServer(t, nil)

	rec := get(t, srv, "/api/v1/session")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var snap session.Snapshot
	decode(t, rec, &snap)
	if snap.ID != "sess-1" || snap.Sequence != 3 || snap.State != "live" {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Published[sparkplug.NData] != 2 {
		t.Errorf("published[NDATA] = %d, want 2", snap.Published[sparkplug.NData])
	}
}

func TestHandleMetrics(t *testing.T) {
	db, _ := openTestJournal(t)
	srv := testServer(t, func(d *Deps) { d.DB = db })

	rec := get(t, srv, "/api/v1/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var m SystemMetrics
	decode(t, rec, &m)
	if m.Version != "test" {
		t.Errorf("version = %q, want test", m.Version)
	}
	if m.Runtime.Goroutines == 0 {
		t.Error("runtime.goroutines = 0")
	}
	if !m.Session.Connected || m.Session.Births != 1 || m.Session.Data != 2 || m.Session.Deaths != 0 {
		t.Errorf("session = %+v", m.Session)
	}
	if m.Database == nil {
		t.Error("database metrics missing")
	}
}

func TestHandleMetrics_NoDatabase(t *testing.T) {
	srv := testServer(t, nil)

	var m SystemMetrics
	decode(t, get(t, srv, "/api/v1/metrics"), &m)
	if m.Database != nil {
		t.Errorf("database = %+v, want nil", m.Database)
	}
}

// =============================================================================
// Journal
// =============================================================================

func TestHandleListJournal(t *testing.T) {
	_, repo := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	for i, e := range []*journal.Entry{
		{SessionID: "sess-1", Type: sparkplug.NBirth, Topic: "spBv1.0/plant_a/NBIRTH/line_1", Seq: 0, Payload: []byte{1}},
		{SessionID: "sess-1", Type: sparkplug.NData, Topic: "spBv1.0/plant_a/NDATA/line_1", Seq: 1, Payload: []byte{2}},
		{SessionID: "sess-1", Type: sparkplug.NData, Topic: "spBv1.0/plant_a/NDATA/line_1", Seq: 2, Payload: []byte{3}},
	} {
		e.PublishedAt = base.Add(time.Duration(i) * time.Second)
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	srv := testServer(t, func(d *Deps) { d.Journal = repo })

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{"all", "", http.StatusOK, 3},
		{"by type", "?type=NDATA", http.StatusOK, 2},
		{"limit", "?limit=1", http.StatusOK, 1},
		{"other session", "?session_id=sess-2", http.StatusOK, 0},
		{"bad type", "?type=DBIRTH", http.StatusBadRequest, 0},
		{"bad limit", "?limit=ten", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, srv, "/api/v1/journal/"+tt.query)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp struct {
				Entries []journal.Entry `json:"entries"`
				Count   int             `json:"count"`
			}
			decode(t, rec, &resp)
			if resp.Count != tt.wantCount || len(resp.Entries) != tt.wantCount {
				t.Errorf("count = %d (%d entries), want %d", resp.Count, len(resp.Entries), tt.wantCount)
			}
		})
	}
}

func TestHandleListJournal_NotConfigured(t *testing.T) {
	srv := testServer(t, nil)

	rec := get(t, srv, "/api/v1/journal/")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleLastDeath(t *testing.T) {
	_, repo := openTestJournal(t)
	death := &journal.Entry{
		SessionID: "sess-1",
		Type:      sparkplug.NDeath,
		Topic:     "spBv1.0/plant_a/NDEATH/line_1",
		Seq:       4,
		Payload:   []byte{0x0a},
	}
	if err := repo.Record(context.Background(), death); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	srv := testServer(t, func(d *Deps) { d.Journal = repo })

	rec := get(t, srv, "/api/v1/journal/death/sess-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got journal.Entry
	decode(t, rec, &got)
	if got.Seq != 4 || got.Type != sparkplug.NDeath {
		t.Errorf("entry = %+v", got)
	}

	rec = get(t, srv, "/api/v1/journal/death/unknown")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", rec.Code)
	}
}

// =============================================================================
// Middleware and Routing
// =============================================================================

func TestRequestID(t *testing.T) {
	srv := testServer(t, nil)

	rec := get(t, srv, "/api/v1/session")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec = httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc123" {
		t.Errorf("X-Request-ID = %q, want abc123", got)
	}
}

func TestRecovery(t *testing.T) {
	srv := testServer(t, func(d *Deps) { d.Session = panicSession{} })

	rec := get(t, srv, "/api/v1/session")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRouting_Errors(t *testing.T) {
	srv := testServer(t, nil)

	rec := get(t, srv, "/api/v1/nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want 404", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session", nil)
	rec = httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
	var apiErr Error
	decode(t, rec, &apiErr)
	if apiErr.Code != ErrCodeMethodNotAllow {
		t.Errorf("code = %q, want %q", apiErr.Code, ErrCodeMethodNotAllow)
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestServer_StartClose(t *testing.T) {
	srv := testServer(t, nil)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestServer_CloseNotStarted(t *testing.T) {
	srv := testServer(t, nil)
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if srv.Addr() != "" {
		t.Errorf("Addr() = %q, want empty", srv.Addr())
	}
}

func TestServer_StartAppliesTimeouts(t *testing.T) {
	srv := testServer(t, func(d *Deps) {
		d.Config.Timeouts = config.StatusTimeoutConfig{Read: 7, Write: 0, Idle: 30}
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { srv.Close() }) //nolint:errcheck // Test cleanup

	srv.mu.Lock()
	hs := srv.server
	srv.mu.Unlock()

	if hs.ReadTimeout != 7*time.Second || hs.ReadHeaderTimeout != 7*time.Second {
		t.Errorf("read timeouts = %v/%v, want 7s", hs.ReadTimeout, hs.ReadHeaderTimeout)
	}
	if hs.WriteTimeout != config.DefaultStatusTimeout {
		t.Errorf("WriteTimeout = %v, want default %v", hs.WriteTimeout, config.DefaultStatusTimeout)
	}
	if hs.IdleTimeout != 30*time.Second {
		t.Errorf("IdleTimeout = %v, want 30s", hs.IdleTimeout)
	}
}
