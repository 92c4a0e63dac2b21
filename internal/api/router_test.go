package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"restock-route-service/internal/adapters/oracle"
	"restock-route-service/internal/adapters/repositories"
	"restock-route-service/internal/platform/db"
	"restock-route-service/internal/services"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	conn, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ctx := context.Background()
	require.NoError(t, repositories.InitSchema(ctx, conn))

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repositories.Load(ctx, conn, "sqlite", repositories.Seed{
		Locations: []repositories.LocationSeed{
			{ID: "a", Title: "A", Address: "A St"},
			{ID: "b", Title: "B", Address: "B St"},
			{ID: "c", Title: "C", Address: "C St"},
		},
		Runs: []repositories.RunSeed{
			{ID: "r1", Name: "Monday", DepotAddress: "Depot Rd", StartAt: &start, Stops: []string{"a", "b", "c"}},
			{ID: "lost", Name: "Lost", DepotAddress: "Atlantis", StartAt: &start, Stops: []string{"a"}},
		},
	}))

	mock := oracle.NewMockOracle(
		[]oracle.MockPlace{
			{Address: "Depot Rd", Label: "Depot", Lat: 40.70, Lon: -74.0},
			{Address: "A St", Label: "A", Lat: 40.71, Lon: -74.0},
			{Address: "B St", Label: "B", Lat: 40.72, Lon: -74.0},
			{Address: "C St", Label: "C", Lat: 40.73, Lon: -74.0},
		},
		[]oracle.MockPair{
			{From: "Depot", To: "A", Seconds: 600}, {From: "Depot", To: "B", Seconds: 1800}, {From: "Depot", To: "C", Seconds: 300},
			{From: "A", To: "Depot", Seconds: 600}, {From: "B", To: "Depot", Seconds: 1800}, {From: "C", To: "Depot", Seconds: 300},
			{From: "A", To: "B", Seconds: 720}, {From: "A", To: "C", Seconds: 480},
			{From: "B", To: "A", Seconds: 720}, {From: "B", To: "C", Seconds: 1200},
			{From: "C", To: "A", Seconds: 480}, {From: "C", To: "B", Seconds: 1200},
		},
	)

	sessions := services.NewSessionRegistry(func() (*services.Session, error) {
		return services.NewSession(mock, mock, services.DefaultSessionConfig())
	}, time.Minute)
	planner := services.NewRunPlanner(repositories.NewSQLRunRepository(conn, "sqlite"), sessions)

	srv := httptest.NewServer(NewRouter(planner))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestListStops(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, http.MethodGet, "/runs/r1/stops", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["stops"], 3)

	resp, _ = do(t, srv, http.MethodGet, "/runs/missing/stops", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOptimize(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, http.MethodPost, "/runs/r1/optimize", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, []any{"c", "a", "b"}, body["order"])
	assert.EqualValues(t, 3300, body["total_seconds"])
	assert.Len(t, body["legs"], 4)
	assert.Equal(t, false, body["degraded"])
	assert.Equal(t, []any{}, body["notices"])
}

func TestOptimize_Errors(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, http.MethodPost, "/runs/lost/optimize", "{}")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, services.ErrDepotNotFound.Error(), body["error"])

	resp, _ = do(t, srv, http.MethodPost, "/runs/r1/optimize", `{"start_at": "soon"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/runs/r1/optimize", `{"vehicles": 3}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/runs/r1/optimize", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestEstimate(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, http.MethodPost, "/runs/r1/estimate", `{"order": ["c", "a", "b"], "start_at": "2026-03-02T09:00:00Z"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"c", "a", "b"}, body["order"])
	assert.EqualValues(t, 3300, body["total_seconds"])

	resp, _ = do(t, srv, http.MethodPost, "/runs/r1/estimate", `{"order": ["z"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSaveOrder(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := do(t, srv, http.MethodPut, "/runs/r1/order", `{"order": ["c", null, "a", "b"]}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, body := do(t, srv, http.MethodGet, "/runs/r1/stops", "")
	stops := body["stops"].([]any)
	assert.Equal(t, "c", stops[0].(map[string]any)["id"])

	resp, _ = do(t, srv, http.MethodPut, "/runs/r1/order", `{"order": ["c", "c"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPut, "/runs/r1/order", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPut, "/runs/missing/order", `{"order": []}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
