package repositories

import (
	"context"
	"os"
	"path/filepath"
	"restock-route-service/internal/platform/db"
	"restock-route-service/internal/ports"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func newTestRepo(t *testing.T) *SQLRunRepository {
	t.Helper()

	conn, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ctx := context.Background()
	require.NoError(t, InitSchema(ctx, conn))

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, Load(ctx, conn, "sqlite", Seed{
		Locations: []LocationSeed{
			{ID: "a", Title: "Gym", Address: "1 A St", OpeningMinutes: ptr(480), ClosingMinutes: ptr(1020)},
			{ID: "b", Title: "Library", Address: "2 B St", DwellMinutes: ptr(10)},
			{ID: "c", Title: "Station", Address: "3 C St"},
		},
		Runs: []RunSeed{
			{ID: "r1", Name: "Monday", DepotAddress: "9 Depot Rd", StartAt: &start, Stops: []string{"a", "b", "c"}},
		},
	}))

	return NewSQLRunRepository(conn, "sqlite")
}

func ids(t *testing.T, repo *SQLRunRepository, runID string) []string {
	t.Helper()
	records, err := repo.ListRunStops(context.Background(), runID)
	require.NoError(t, err)

	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestGetRun(t *testing.T) {
	repo := newTestRepo(t)

	run, err := repo.GetRun(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "Monday", run.Name)
	assert.Equal(t, "9 Depot Rd", run.DepotAddress)
	assert.True(t, run.StartAt.Equal(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))

	_, err = repo.GetRun(context.Background(), "missing")
	require.ErrorIs(t, err, ports.ErrRunNotFound)
}

func TestListRunStops_NullableSchedules(t *testing.T) {
	repo := newTestRepo(t)

	records, err := repo.ListRunStops(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, 480, *records[0].OpeningMinutes)
	assert.Equal(t, 1020, *records[0].ClosingMinutes)
	assert.Nil(t, records[0].DwellMinutes)
	assert.Equal(t, 10, *records[1].DwellMinutes)
	assert.Nil(t, records[2].OpeningMinutes)

	_, err = repo.ListRunStops(context.Background(), "missing")
	require.ErrorIs(t, err, ports.ErrRunNotFound)
}

func TestSaveOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveOrder(ctx, "r1", []*string{ptr("c"), nil, ptr("a")}))
	assert.Equal(t, []string{"c", "a", "b"}, ids(t, repo, "r1"))

	pos, err := repo.UnassignedPosition(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, 1, *pos)

	require.NoError(t, repo.SaveOrder(ctx, "r1", []*string{ptr("b"), ptr("a"), ptr("c")}))
	assert.Equal(t, []string{"b", "a", "c"}, ids(t, repo, "r1"))

	pos, err = repo.UnassignedPosition(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestSaveOrder_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		run   string
		order []*string
		want  error
	}{
		{"unknown run", "missing", []*string{ptr("a")}, ports.ErrRunNotFound},
		{"foreign stop", "r1", []*string{ptr("z")}, ports.ErrInvalidOrder},
		{"duplicate stop", "r1", []*string{ptr("a"), ptr("a")}, ports.ErrInvalidOrder},
		{"two markers", "r1", []*string{nil, ptr("a"), nil}, ports.ErrInvalidOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepo(t)
			err := repo.SaveOrder(context.Background(), tt.run, tt.order)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, []string{"a", "b", "c"}, ids(t, repo, "r1"), "failed save leaves order intact")
		})
	}
}

func TestSeedFromJSON(t *testing.T) {
	conn, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer conn.Close()

	ctx := context.Background()
	require.NoError(t, InitSchema(ctx, conn))

	path := filepath.Join(t.TempDir(), "runs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"locations": [{"id": "x", "title": "Kiosk", "address": "5 X St"}],
		"runs": [{"id": "r", "name": "Solo", "depot_address": "Depot", "stops": ["x"]}]
	}`), 0o600))

	require.NoError(t, SeedFromJSON(ctx, conn, "sqlite", path))
	// Seeding twice replaces rather than duplicates.
	require.NoError(t, SeedFromJSON(ctx, conn, "sqlite", path))

	repo := NewSQLRunRepository(conn, "sqlite")
	assert.Equal(t, []string{"x"}, ids(t, repo, "r"))

	run, err := repo.GetRun(ctx, "r")
	require.NoError(t, err)
	assert.True(t, run.StartAt.IsZero())
}

func TestLoad_UnknownLocation(t *testing.T) {
	conn, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer conn.Close()

	err = Load(context.Background(), conn, "sqlite", Seed{
		Runs: []RunSeed{{ID: "r", Stops: []string{"nope"}}},
	})
	require.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := "UPDATE t SET a = ? WHERE b = ? AND c = ?;"
	assert.Equal(t, q, rebind("sqlite", q))
	assert.Equal(t, "UPDATE t SET a = $1 WHERE b = $2 AND c = $3;", rebind("pgx", q))
}
