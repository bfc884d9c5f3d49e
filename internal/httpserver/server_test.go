package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwmdev/transitspawn/internal/contentapi"
	"github.com/jwmdev/transitspawn/internal/geoservice"
	"github.com/jwmdev/transitspawn/internal/geostore"
	"github.com/jwmdev/transitspawn/internal/manifest"
	"github.com/jwmdev/transitspawn/internal/metrics"
	"github.com/jwmdev/transitspawn/internal/model"
	"github.com/jwmdev/transitspawn/internal/repository"
	"github.com/jwmdev/transitspawn/internal/spawner"
	"github.com/jwmdev/transitspawn/internal/telemetry"
)

type stubSpawner struct {
	reqs []model.SpawnRequest
}

func (s *stubSpawner) Name() string { return "route:R1" }
func (s *stubSpawner) Spawn(ctx context.Context, t time.Time, dt time.Duration) ([]model.SpawnRequest, error) {
	return s.reqs, nil
}
func (s *stubSpawner) SpawnAndStore(ctx context.Context, t time.Time, dt time.Duration) (int, error) {
	return len(s.reqs), nil
}
func (s *stubSpawner) Stats() spawner.Stats { return spawner.Stats{} }

type stubLookup struct {
	byName map[string]spawner.Spawner
}

func (l *stubLookup) Lookup(name string) (spawner.Spawner, bool) {
	s, ok := l.byName[name]
	return s, ok
}

type fakeBackend struct {
	passengers []model.Passenger
}

func (f *fakeBackend) CreatePassenger(ctx context.Context, p model.Passenger) error {
	f.passengers = append(f.passengers, p)
	return nil
}
func (f *fakeBackend) UpdatePassengerStatus(ctx context.Context, id string, status model.Status) error {
	return nil
}
func (f *fakeBackend) DeletePassenger(ctx context.Context, id string) error { return nil }
func (f *fakeBackend) ListActivePassengers(ctx context.Context, opts contentapi.ListOptions) ([]model.Passenger, error) {
	return f.passengers, nil
}
func (f *fakeBackend) ListPassengers(ctx context.Context, opts contentapi.ListOptions) ([]model.Passenger, error) {
	return f.passengers, nil
}

func buildTestServer(t *testing.T, authToken string) *Server {
	return buildTestServerWithCoord(t, authToken, nil)
}

func buildTestServerWithCoord(t *testing.T, authToken string, coord SpawnerLookup) *Server {
	t.Helper()

	store := geostore.New()
	geoSvc := geoservice.New(store)
	geoHandler := geoservice.NewHandler(geoSvc)

	repo := repository.New(&fakeBackend{}, nil)
	enricher := manifest.New(geoSvc, 2)
	manifestSvc := manifest.NewService(repo, store, enricher)
	manifestHandler := manifest.NewHandler(manifestSvc)

	telStore := telemetry.New()
	telHandler := telemetry.NewHandler(telStore)

	reg := metrics.New()
	janitor := telemetry.NewJanitor(telStore, repo, 0, nil, reg)

	return NewServer(Config{AuthToken: authToken}, geoHandler, manifestHandler, telHandler, reg, janitor, coord, nil)
}

func TestHealthz_AlwaysOK(t *testing.T) {
	s := buildTestServer(t, "supersecret")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetrics_ExposedWithoutAuth(t *testing.T) {
	s := buildTestServer(t, "supersecret")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoute_RejectsMissingToken(t *testing.T) {
	s := buildTestServer(t, "supersecret")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/manifest", nil)
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoute_NoAuthTokenConfiguredAllowsThrough(t *testing.T) {
	s := buildTestServer(t, "")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/manifest", nil)
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTelemetryHeartbeat_ReachableThroughRouter(t *testing.T) {
	s := buildTestServer(t, "")
	body, _ := json.Marshal(map[string]any{"device_id": "bus-1", "latitude": 1.0, "longitude": 2.0})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/telemetry/heartbeat", bytes.NewReader(body))
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestSpawnStream_EmitsNDJSONPerRoute(t *testing.T) {
	stub := &stubSpawner{reqs: []model.SpawnRequest{
		{PassengerID: "p1", RouteID: "R1"},
		{PassengerID: "p2", RouteID: "R1"},
	}}
	lookup := &stubLookup{byName: map[string]spawner.Spawner{"route:R1": stub}}
	s := buildTestServerWithCoord(t, "", lookup)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/spawn/route/R1?time=09:00:00&day=Monday&window=60", nil)
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	lines := bytes.Split(bytes.TrimSpace(rec.Body.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	var first model.SpawnRequest
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "p1", first.PassengerID)
}

func TestSpawnStream_UnknownRouteReturnsError(t *testing.T) {
	lookup := &stubLookup{byName: map[string]spawner.Spawner{}}
	s := buildTestServerWithCoord(t, "", lookup)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/spawn/route/unknown", nil)
	s.Router().ServeHTTP(rec, req)

	assert.NotEqual(t, http.StatusOK, rec.Code)
}
