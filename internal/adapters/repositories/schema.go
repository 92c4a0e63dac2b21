package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// InitSchema creates the run tables. The statements are valid for both
// SQLite and Postgres.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createLocationsQuery := `
	CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		subtitle TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL,
		opening_minutes INTEGER,
		closing_minutes INTEGER,
		dwell_minutes INTEGER
	);
	`

	createRunsQuery := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		depot_address TEXT NOT NULL,
		start_at TEXT NOT NULL DEFAULT '',
		unassigned_position INTEGER
	);
	`

	createRunStopsQuery := `
	CREATE TABLE IF NOT EXISTS run_stops (
		run_id TEXT NOT NULL REFERENCES runs(id),
		location_id TEXT NOT NULL REFERENCES locations(id),
		position INTEGER NOT NULL,
		PRIMARY KEY (run_id, location_id)
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_run_stops_run_position
	ON run_stops(run_id, position);
	`

	statements := []string{
		createLocationsQuery,
		createRunsQuery,
		createRunStopsQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type LocationSeed struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Subtitle       string `json:"subtitle"`
	Address        string `json:"address"`
	OpeningMinutes *int   `json:"opening_minutes"`
	ClosingMinutes *int   `json:"closing_minutes"`
	DwellMinutes   *int   `json:"dwell_minutes"`
}

type RunSeed struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	DepotAddress string     `json:"depot_address"`
	StartAt      *time.Time `json:"start_at"`
	Stops        []string   `json:"stops"`
}

type Seed struct {
	Locations []LocationSeed `json:"locations"`
	Runs      []RunSeed      `json:"runs"`
}

// SeedFromJSON populates locations and runs from a JSON file. Existing rows
// with the same IDs are replaced.
func SeedFromJSON(ctx context.Context, db *sql.DB, driver, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed runs: read %q: %w", jsonPath, err)
	}

	var data Seed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed runs: parse json: %w", err)
	}

	return Load(ctx, db, driver, data)
}

// Load writes seed data in one transaction.
func Load(ctx context.Context, db *sql.DB, driver string, data Seed) error {
	known := make(map[string]struct{}, len(data.Locations))
	for i, l := range data.Locations {
		if strings.TrimSpace(l.ID) == "" {
			return fmt.Errorf("seed runs: location at index %d: id cannot be empty", i+1)
		}
		if strings.TrimSpace(l.Address) == "" {
			return fmt.Errorf("seed runs: location %q: address cannot be empty", l.ID)
		}
		known[l.ID] = struct{}{}
	}
	for i, r := range data.Runs {
		if strings.TrimSpace(r.ID) == "" {
			return fmt.Errorf("seed runs: run at index %d: id cannot be empty", i+1)
		}
		for _, id := range r.Stops {
			if _, ok := known[id]; !ok {
				return fmt.Errorf("seed runs: run %q: unknown location %q", r.ID, id)
			}
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed runs: begin tx: %w", err)
	}
	defer tx.Rollback()

	locationQuery := rebind(driver, `
	INSERT INTO locations (
		id,
		title,
		subtitle,
		address,
		opening_minutes,
		closing_minutes,
		dwell_minutes
	)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		title = excluded.title,
		subtitle = excluded.subtitle,
		address = excluded.address,
		opening_minutes = excluded.opening_minutes,
		closing_minutes = excluded.closing_minutes,
		dwell_minutes = excluded.dwell_minutes;
	`)
	for _, l := range data.Locations {
		if _, err := tx.ExecContext(ctx, locationQuery,
			l.ID, strings.TrimSpace(l.Title), l.Subtitle, strings.TrimSpace(l.Address),
			l.OpeningMinutes, l.ClosingMinutes, l.DwellMinutes,
		); err != nil {
			return fmt.Errorf("seed runs: insert location %q: %w", l.ID, err)
		}
	}

	runQuery := rebind(driver, `
	INSERT INTO runs (id, name, depot_address, start_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		depot_address = excluded.depot_address,
		start_at = excluded.start_at;
	`)
	clearStopsQuery := rebind(driver, `DELETE FROM run_stops WHERE run_id = ?;`)
	stopQuery := rebind(driver, `INSERT INTO run_stops (run_id, location_id, position) VALUES (?, ?, ?);`)

	for _, r := range data.Runs {
		if _, err := tx.ExecContext(ctx, runQuery, r.ID, r.Name, r.DepotAddress, formatTime(r.StartAt)); err != nil {
			return fmt.Errorf("seed runs: insert run %q: %w", r.ID, err)
		}
		if _, err := tx.ExecContext(ctx, clearStopsQuery, r.ID); err != nil {
			return fmt.Errorf("seed runs: clear stops of %q: %w", r.ID, err)
		}
		for pos, id := range r.Stops {
			if _, err := tx.ExecContext(ctx, stopQuery, r.ID, id, pos); err != nil {
				return fmt.Errorf("seed runs: insert stop %q of %q: %w", id, r.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed runs: commit tx: %w", err)
	}

	return nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
