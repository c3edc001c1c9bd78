package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	_ "github.com/mattn/go-sqlite3"

	"github.com/airsentinel/airsentinel-core/internal/aircon"
	"github.com/airsentinel/airsentinel-core/internal/infrastructure/config"
	"github.com/airsentinel/airsentinel-core/internal/infrastructure/logging"
	"github.com/airsentinel/airsentinel-core/internal/reconcile"
	"github.com/airsentinel/airsentinel-core/internal/unit"
)

const testJWTSecret = "test-secret-key-at-least-32-characters-long"

// mockPublisher is a test implementation of CommandPublisher.
type mockPublisher struct {
	mu         sync.Mutex
	topics     []string
	payloads   [][]byte
	connected  bool
	publishErr error
}

func (m *mockPublisher) Publish(topic string, payload []byte, _ byte, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.topics = append(m.topics, topic)
	m.payloads = append(m.payloads, payload)
	return nil
}

func (m *mockPublisher) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// setupTestDB creates an in-memory SQLite database with the units and
// override_events tables.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE units (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			host TEXT NOT NULL,
			generation TEXT NOT NULL,
			capabilities TEXT NOT NULL DEFAULT '[]',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE INDEX idx_units_generation ON units(generation);

		CREATE TABLE override_events (
			id TEXT PRIMARY KEY,
			unit_id TEXT NOT NULL,
			category TEXT NOT NULL,
			divergences TEXT NOT NULL DEFAULT '[]',
			detected_at TEXT NOT NULL
		) STRICT;
		CREATE INDEX idx_override_events_unit ON override_events(unit_id, detected_at);
	`

	if _, execErr := db.Exec(schema); execErr != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", execErr)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// testServer creates a Server with a real unit registry backed by in-memory
// SQLite, a real reconciliation engine, and a mock command publisher.
func testServer(t *testing.T) (*Server, *unit.Registry, *reconcile.Engine, *mockPublisher) {
	t.Helper()

	db := setupTestDB(t)
	repo := unit.NewSQLiteRepository(db)
	registry := unit.NewRegistry(repo)
	if err := registry.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	engine := reconcile.NewEngine()
	pub := &mockPublisher{connected: true}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{
				Secret:         testJWTSecret,
				AccessTokenTTL: 15,
			},
		},
		Logger:   log,
		Registry: registry,
		Engine:   engine,
		History:  unit.NewSQLiteOverrideHistory(db),
		MQTT:     pub,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Initialise hub for tests
	srv.hub = NewHub(srv.wsCfg, log)
	go srv.hub.Run(context.Background())

	return srv, registry, engine, pub
}

// signToken builds a valid HS256 bearer token for the test secret.
func signToken(t *testing.T, secret string) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   "test-user",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return token
}

// authRequest builds a request carrying a valid bearer token.
func authRequest(t *testing.T, method, target string, body string) *http.Request {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Authorization", "Bearer "+signToken(t, testJWTSecret))
	return req
}

// createTestUnit inserts a unit through the registry and registers it with
// the engine, mirroring what the create handler does.
func createTestUnit(t *testing.T, registry *unit.Registry, engine *reconcile.Engine, name string) *unit.Unit {
	t.Helper()

	u := &unit.Unit{
		Name:         name,
		Host:         "192.168.1.50",
		Generation:   unit.GenerationBRP069,
		Capabilities: []unit.Capability{unit.CapCool, unit.CapHeat},
		Enabled:      true,
	}
	if err := registry.CreateUnit(context.Background(), u); err != nil {
		t.Fatalf("CreateUnit: %v", err)
	}

	opts := reconcile.DefaultOptions()
	opts.ProtectionWindow = u.Generation.DefaultProtectionWindow()
	if err := engine.Register(u.ID, opts); err != nil {
		t.Fatalf("engine Register: %v", err)
	}
	return u
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestHealth_ContentType(t *testing.T) {
	srv, _, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	ct := w.Header().Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	srv, _, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv, _, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv, _, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestNotFound(t *testing.T) {
	srv, _, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Auth Tests ────────────────────────────────────────────────────

func TestAuth_MissingToken(t *testing.T) {
	srv, _, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/units", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	srv, _, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/units", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuth_WrongSecret(t *testing.T) {
	srv, _, _, _ := testServer(t)
	router := srv.buildRouter()

	token := signToken(t, "a-completely-different-signing-secret-here")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/units", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuth_TokenQueryParam(t *testing.T) {
	srv, _, _, _ := testServer(t)
	router := srv.buildRouter()

	token := signToken(t, testJWTSecret)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/units?token="+token, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestAuth_ExpiredToken(t *testing.T) {
	srv, _, _, _ := testServer(t)
	router := srv.buildRouter()

	claims := jwt.RegisteredClaims{
		Subject:   "test-user",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/units", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// ─── Unit CRUD Tests ───────────────────────────────────────────────

func TestListUnits_Empty(t *testing.T) {
	srv, _, _, _ := testServer(t)
	router := srv.buildRouter()

	req := authRequest(t, http.MethodGet, "/api/v1/units", "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if int(resp["count"].(float64)) != 0 {
		t.Errorf("count = %v, want 0", resp["count"])
	}
}

func TestCreateAndGetUnit(t *testing.T) {
	srv, _, engine, _ := testServer(t)
	router := srv.buildRouter()

	body := `{
		"name": "Living Room AC",
		"host": "192.168.1.50",
		"generation": "brp069",
		"capabilities": ["cool", "heat", "fan_rate"],
		"enabled": true
	}`

	req := authRequest(t, http.MethodPost, "/api/v1/units", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var created unit.Unit
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal created: %v", err)
	}

	if created.ID == "" {
		t.Error("expected unit ID to be auto-generated")
	}
	if created.Slug != "living-room-ac" {
		t.Errorf("slug = %q, want %q", created.Slug, "living-room-ac")
	}

	// The handler registers the unit with the reconciliation engine
	if _, err := engine.ConfirmedState(created.ID); err != nil {
		t.Errorf("ConfirmedState after create: %v", err)
	}

	// Get unit by ID
	req = authRequest(t, http.MethodGet, "/api/v1/units/"+created.ID, "")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", w.Code, http.StatusOK)
	}

	var got unit.Unit
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal got: %v", err)
	}

	if got.Name != "Living Room AC" {
		t.Errorf("name = %q, want %q", got.Name, "Living Room AC")
	}
	if got.Generation != unit.GenerationBRP069 {
		t.Errorf("generation = %q, want %q", got.Generation, unit.GenerationBRP069)
	}
}

func TestCreateUnit_InvalidJSON(t *testing.T) {
	srv, _, _, _ := testServer(t)
	router := srv.buildRouter()

	req := authRequest(t, http.MethodPost, "/api/v1/units", "not json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCreateUnit_UnknownGeneration(t *testing.T) {
	srv, _, _, _ := testServer(t)
	router := srv.buildRouter()

	body := `{"name": "Mystery Unit", "host": "10.0.0.2", "generation": "brp999"}`
	req := authRequest(t, http.MethodPost, "/api/v1/units", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestCreateUnit_DuplicateSlug(t *testing.T) {
	srv, registry, engine, _ := testServer(t)
	router := srv.buildRouter()

	createTestUnit(t, registry, engine, "Bedroom AC")

	body := `{"name": "Bedroom AC", "host": "192.168.1.51", "generation": "brp072"}`
	req := authRequest(t, http.MethodPost, "/api/v1/units", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusConflict, w.Body.String())
	}
}

func TestGetUnit_NotFound(t *testing.T) {
	srv, _, _, _ := testServer(t)
	router := srv.buildRouter()

	req := authRequest(t, http.MethodGet, "/api/v1/units/nonexistent-id", "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestUpdateUnit(t *testing.T) {
	srv, registry, engine, _ := testServer(t)
	router := srv.buildRouter()

	u := createTestUnit(t, registry, engine, "Original")

	body := `{"name": "Updated"}`
	req := authRequest(t, http.MethodPatch, "/api/v1/units/"+u.ID, body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var updated unit.Unit
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if updated.Name != "Updated" {
		t.Errorf("name = %q, want %q", updated.Name, "Updated")
	}
	if updated.ID != u.ID {
		t.Errorf("ID = %q, want %q (ID must be immutable)", updated.ID, u.ID)
	}
}

func TestDeleteUnit(t *testing.T) {
	srv, registry, engine, _ := testServer(t)
	router := srv.buildRouter()

	u := createTestUnit(t, registry, engine, "ToDelete")

	req := authRequest(t, http.MethodDelete, "/api/v1/units/"+u.ID, "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want %d", w.Code, http.StatusNoContent)
	}

	// Confirm gone from registry
	req = authRequest(t, http.MethodGet, "/api/v1/units/"+u.ID, "")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", w.Code, http.StatusNotFound)
	}

	// Confirm deregistered from the engine
	if _, err := engine.ConfirmedState(u.ID); !errors.Is(err, reconcile.ErrUnitNotRegistered) {
		t.Errorf("ConfirmedState after delete = %v, want ErrUnitNotRegistered", err)
	}
}

func TestListUnits_FilterByGeneration(t *testing.T) {
	srv, registry, engine, _ := testServer(t)
	router := srv.buildRouter()

	createTestUnit(t, registry, engine, "Kitchen AC")

	req := authRequest(t, http.MethodGet, "/api/v1/units?generation=brp069", "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if int(resp["count"].(float64)) != 1 {
		t.Errorf("count = %v, want 1", resp["count"])
	}

	// Filter by a generation with no units
	req = authRequest(t, http.MethodGet, "/api/v1/units?generation=skyfi", "")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if int(resp["count"].(float64)) != 0 {
		t.Errorf("count for skyfi = %v, want 0", resp["count"])
	}
}

func TestUnitStats(t *testing.T) {
	srv, registry, engine, _ := testServer(t)
	router := srv.buildRouter()

	createTestUnit(t, registry, engine, "Stats Unit")

	req := authRequest(t, http.MethodGet, "/api/v1/units/stats", "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var stats unit.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if stats.TotalUnits != 1 {
		t.Errorf("TotalUnits = %d, want 1", stats.TotalUnits)
	}
}

// ─── Confirmed State Tests ─────────────────────────────────────────

func TestGetUnitState(t *testing.T) {
	srv, registry, engine, _ := testServer(t)
	router := srv.buildRouter()

	u := createTestUnit(t, registry, engine, "Stateful AC")

	pollAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := aircon.NewSnapshot(map[aircon.Field]string{
		aircon.FieldPower:      "1",
		aircon.FieldMode:       "cool",
		aircon.FieldTargetTemp: "23.0",
	}, pollAt, aircon.OriginPoll)

	if _, err := engine.OnPoll(u.ID, snap, pollAt); err != nil {
		t.Fatalf("OnPoll: %v", err)
	}

	req := authRequest(t, http.MethodGet, "/api/v1/units/"+u.ID+"/state", "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp UnitStateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.UnitID != u.ID {
		t.Errorf("unit_id = %q, want %q", resp.UnitID, u.ID)
	}
	if resp.Fields["pow"] != "1" {
		t.Errorf("fields[pow] = %q, want %q", resp.Fields["pow"], "1")
	}
	if resp.Fields["mode"] != "cool" {
		t.Errorf("fields[mode] = %q, want %q", resp.Fields["mode"], "cool")
	}
	if resp.TakenAt == nil || !resp.TakenAt.Equal(pollAt) {
		t.Errorf("taken_at = %v, want %v", resp.TakenAt, pollAt)
	}
}

func TestGetUnitState_NotRegistered(t *testing.T) {
	srv, _, _, _ := testServer(t)
	router := srv.buildRouter()

	req := authRequest(t, http.MethodGet, "/api/v1/units/ghost/state", "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Override History Tests ────────────────────────────────────────

func TestListOverrides(t *testing.T) {
	srv, registry, engine, _ := testServer(t)
	router := srv.buildRouter()

	u := createTestUnit(t, registry, engine, "Overridden AC")

	evt := reconcile.OverrideEvent{
		ID:       "evt-001",
		UnitID:   u.ID,
		Category: reconcile.CategoryPower,
		Divergences: []reconcile.Divergence{
			{Field: aircon.FieldPower, Expected: "1", Actual: "0", Source: aircon.OriginPoll},
		},
		DetectedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := srv.history.RecordOverride(context.Background(), evt); err != nil {
		t.Fatalf("RecordOverride: %v", err)
	}

	req := authRequest(t, http.MethodGet, "/api/v1/units/"+u.ID+"/overrides", "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Overrides []reconcile.OverrideEvent `json:"overrides"`
		Count     int                       `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	if resp.Overrides[0].Category != reconcile.CategoryPower {
		t.Errorf("category = %q, want %q", resp.Overrides[0].Category, reconcile.CategoryPower)
	}
}

func TestListOverrides_InvalidLimit(t *testing.T) {
	srv, registry, engine, _ := testServer(t)
	router := srv.buildRouter()

	u := createTestUnit(t, registry, engine, "Limit AC")

	req := authRequest(t, http.MethodGet, "/api/v1/units/"+u.ID+"/overrides?limit=banana", "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestListOverrides_UnknownUnit(t *testing.T) {
	srv, _, _, _ := testServer(t)
	router := srv.buildRouter()

	req := authRequest(t, http.MethodGet, "/api/v1/units/ghost/overrides", "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Command Tests ─────────────────────────────────────────────────

func TestUnitCommand(t *testing.T) {
	srv, registry, engine, pub := testServer(t)
	router := srv.buildRouter()

	u := createTestUnit(t, registry, engine, "Commanded AC")

	body := `{"fields": {"pow": "1", "mode": "3"}}`
	req := authRequest(t, http.MethodPost, "/api/v1/units/"+u.ID+"/command", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusAccepted, w.Body.String())
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()

	if len(pub.topics) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.topics))
	}
	wantTopic := "airsentinel/command/" + u.ID
	if pub.topics[0] != wantTopic {
		t.Errorf("topic = %q, want %q", pub.topics[0], wantTopic)
	}

	var payload struct {
		UnitID string            `json:"unit_id"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(pub.payloads[0], &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.UnitID != u.ID {
		t.Errorf("payload unit_id = %q, want %q", payload.UnitID, u.ID)
	}
	// Legacy mode code is normalised before publishing
	if payload.Fields["mode"] != "cool" {
		t.Errorf("payload mode = %q, want %q", payload.Fields["mode"], "cool")
	}
}

func TestUnitCommand_BusDisconnected(t *testing.T) {
	srv, registry, engine, pub := testServer(t)
	router := srv.buildRouter()

	u := createTestUnit(t, registry, engine, "Offline Bus AC")
	pub.mu.Lock()
	pub.connected = false
	pub.mu.Unlock()

	body := `{"fields": {"pow": "1"}}`
	req := authRequest(t, http.MethodPost, "/api/v1/units/"+u.ID+"/command", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestUnitCommand_UnknownField(t *testing.T) {
	srv, registry, engine, _ := testServer(t)
	router := srv.buildRouter()

	u := createTestUnit(t, registry, engine, "Strict AC")

	body := `{"fields": {"warp_drive": "engage"}}`
	req := authRequest(t, http.MethodPost, "/api/v1/units/"+u.ID+"/command", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestUnitCommand_EmptyFields(t *testing.T) {
	srv, registry, engine, _ := testServer(t)
	router := srv.buildRouter()

	u := createTestUnit(t, registry, engine, "Empty Command AC")

	req := authRequest(t, http.MethodPost, "/api/v1/units/"+u.ID+"/command", `{"fields": {}}`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestUnitCommand_DisabledUnit(t *testing.T) {
	srv, registry, _, _ := testServer(t)
	router := srv.buildRouter()

	u := &unit.Unit{
		Name:       "Disabled AC",
		Host:       "192.168.1.60",
		Generation: unit.GenerationBRP072,
		Enabled:    false,
	}
	if err := registry.CreateUnit(context.Background(), u); err != nil {
		t.Fatalf("CreateUnit: %v", err)
	}

	body := `{"fields": {"pow": "1"}}`
	req := authRequest(t, http.MethodPost, "/api/v1/units/"+u.ID+"/command", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestUnitCommand_UnknownUnit(t *testing.T) {
	srv, _, _, _ := testServer(t)
	router := srv.buildRouter()

	body := `{"fields": {"pow": "1"}}`
	req := authRequest(t, http.MethodPost, "/api/v1/units/ghost/command", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Metrics Tests ─────────────────────────────────────────────────

func TestMetrics(t *testing.T) {
	srv, registry, engine, _ := testServer(t)
	router := srv.buildRouter()

	createTestUnit(t, registry, engine, "Metric AC")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var metrics SystemMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &metrics); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if metrics.Version != "test" {
		t.Errorf("version = %q, want test", metrics.Version)
	}
	if metrics.Units.Total != 1 {
		t.Errorf("units total = %d, want 1", metrics.Units.Total)
	}
	if !metrics.MQTT.Connected {
		t.Error("expected MQTT connected = true")
	}
	if metrics.Ingest != nil {
		t.Error("ingest metrics should be omitted when no ingest service is wired")
	}
}

// ─── Validation Helper Tests ───────────────────────────────────────

func TestIsValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"ErrInvalidUnit", unit.ErrInvalidUnit, true},
		{"ErrInvalidName", unit.ErrInvalidName, true},
		{"ErrInvalidSlug", unit.ErrInvalidSlug, true},
		{"ErrInvalidHost", unit.ErrInvalidHost, true},
		{"ErrInvalidGeneration", unit.ErrInvalidGeneration, true},
		{"ErrInvalidCapability", unit.ErrInvalidCapability, true},
		{"random error", errors.New("random"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isValidationError(tt.err); got != tt.want {
				t.Errorf("isValidationError() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ─── WebSocket Hub Tests ───────────────────────────────────────────

func TestHub_BroadcastToSubscribed(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelOverrideDetected: {}},
	}
	hub.Register(client)

	hub.Broadcast([]byte(`{"unit_id":"living-room-ac","category":"power"}`))

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.Type != WSTypeEvent {
			t.Errorf("type = %q, want %q", wsMsg.Type, WSTypeEvent)
		}
		if wsMsg.EventType != ChannelOverrideDetected {
			t.Errorf("event_type = %q, want %q", wsMsg.EventType, ChannelOverrideDetected)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// Client subscribed to a different channel
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"unit.state_changed": {}},
	}
	hub.Register(client)

	hub.Broadcast([]byte(`{"unit_id":"kitchen-ac"}`))

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
		// OK, no message received
	}
}

func TestHub_ClientCount(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)

	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_UnregisterTwice(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, log)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)

	// Second unregister must not panic on a closed send channel
	hub.Unregister(client)
	hub.Unregister(client)
}

// ─── WebSocket Integration Tests ───────────────────────────────────

// testServerWithRealListener creates a server that actually listens on a port.
func testServerWithRealListener(t *testing.T, port int) (*Server, string) {
	t.Helper()

	srv, _, _, _ := testServer(t)
	srv.cfg.Port = port
	srv.hub = nil // Start() creates its own

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(func() { srv.Close() })

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	// Wait for the listener to come up
	time.Sleep(100 * time.Millisecond)

	return srv, fmt.Sprintf("127.0.0.1:%d", port)
}

// connectWebSocket dials the override stream with a valid token.
func connectWebSocket(t *testing.T, addr string) *websocket.Conn {
	t.Helper()

	wsURL := "ws://" + addr + "/api/v1/ws?token=" + signToken(t, testJWTSecret)
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket connect failed: %v", err)
	}
	return ws
}

func TestServer_StartAndClose(t *testing.T) {
	srv, addr := testServerWithRealListener(t, 19080)

	resp, err := http.Get("http://" + addr + "/api/v1/health")
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("health check status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if _, err = http.Get("http://" + addr + "/api/v1/health"); err == nil {
		t.Error("server still responding after Close()")
	}
}

func TestWebSocket_FullConnection(t *testing.T) {
	srv, addr := testServerWithRealListener(t, 19081)

	ws := connectWebSocket(t, addr)
	defer ws.Close()

	// New clients are subscribed to the override channel by default;
	// a broadcast should arrive without an explicit subscribe.
	srv.hub.Broadcast([]byte(`{"unit_id":"living-room-ac","category":"power"}`))

	//nolint:errcheck // Deadline on a live test connection
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}

	if msg.Type != WSTypeEvent {
		t.Errorf("type = %q, want %q", msg.Type, WSTypeEvent)
	}
	if msg.EventType != ChannelOverrideDetected {
		t.Errorf("event_type = %q, want %q", msg.EventType, ChannelOverrideDetected)
	}

	if srv.hub.ClientCount() != 1 {
		t.Errorf("hub client count = %d, want 1", srv.hub.ClientCount())
	}
}

func TestWebSocket_SubscribeUnsubscribe(t *testing.T) {
	_, addr := testServerWithRealListener(t, 19082)

	ws := connectWebSocket(t, addr)
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{"unit.state_changed"}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	//nolint:errcheck // Deadline on a live test connection
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}
	if resp.Type != WSTypeResponse {
		t.Errorf("subscribe response type = %q, want %q", resp.Type, WSTypeResponse)
	}
	if resp.ID != "sub-1" {
		t.Errorf("response ID = %q, want sub-1", resp.ID)
	}

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeUnsubscribe,
		ID:      "unsub-1",
		Payload: WSSubscribePayload{Channels: []string{"unit.state_changed"}},
	}); err != nil {
		t.Fatalf("write unsubscribe: %v", err)
	}

	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read unsubscribe response: %v", err)
	}
	if resp.Type != WSTypeResponse {
		t.Errorf("unsubscribe response type = %q, want %q", resp.Type, WSTypeResponse)
	}
}

func TestWebSocket_Ping(t *testing.T) {
	_, addr := testServerWithRealListener(t, 19083)

	ws := connectWebSocket(t, addr)
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "ping-1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	//nolint:errcheck // Deadline on a live test connection
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read pong: %v", err)
	}

	if resp.Type != WSTypePong {
		t.Errorf("response type = %q, want pong", resp.Type)
	}
	if resp.ID != "ping-1" {
		t.Errorf("response ID = %q, want ping-1", resp.ID)
	}
}

func TestWebSocket_InvalidMessage(t *testing.T) {
	_, addr := testServerWithRealListener(t, 19084)

	ws := connectWebSocket(t, addr)
	defer ws.Close()

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write invalid message: %v", err)
	}

	//nolint:errcheck // Deadline on a live test connection
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read error response: %v", err)
	}

	if resp.Type != WSTypeError {
		t.Errorf("response type = %q, want error", resp.Type)
	}
}

func TestWebSocket_NoToken(t *testing.T) {
	_, addr := testServerWithRealListener(t, 19085)

	wsURL := "ws://" + addr + "/api/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected error connecting without token")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}
