package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"restock-route-service/internal/domain"
	"restock-route-service/internal/platform/obs"
	"restock-route-service/internal/ports"
	"strconv"
	"strings"
	"time"
)

// SQLRunRepository implements ports.RunRepository over database/sql.
// Driver is "sqlite" or "pgx" and selects the placeholder style.
type SQLRunRepository struct {
	DB     *sql.DB
	Driver string
}

func NewSQLRunRepository(db *sql.DB, driver string) *SQLRunRepository {
	return &SQLRunRepository{DB: db, Driver: driver}
}

func (s *SQLRunRepository) GetRun(ctx context.Context, runID string) (_ domain.Run, err error) {
	defer obs.Time(ctx, "runs.GetRun")(&err)

	if s.DB == nil {
		return domain.Run{}, errors.New("sql run repository: DB is nil")
	}

	query := rebind(s.Driver, `
	SELECT
		id,
		name,
		depot_address,
		start_at
	FROM runs
	WHERE id = ?;
	`)

	var run domain.Run
	var startAt string
	err = s.DB.QueryRowContext(ctx, query, runID).Scan(&run.ID, &run.Name, &run.DepotAddress, &startAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Run{}, fmt.Errorf("get run %q: %w", runID, ports.ErrRunNotFound)
	}
	if err != nil {
		return domain.Run{}, fmt.Errorf("get run %q: query runs table: %w", runID, err)
	}

	if startAt != "" {
		run.StartAt, err = time.Parse(time.RFC3339, startAt)
		if err != nil {
			return domain.Run{}, fmt.Errorf("get run %q: parse start_at %q: %w", runID, startAt, err)
		}
	}

	return run, nil
}

func (s *SQLRunRepository) ListRunStops(ctx context.Context, runID string) (_ []domain.StopRecord, err error) {
	defer obs.Time(ctx, "runs.ListRunStops")(&err)

	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, fmt.Errorf("list run stops: %w", err)
	}

	query := rebind(s.Driver, `
	SELECT
		l.id,
		l.title,
		l.subtitle,
		l.address,
		l.opening_minutes,
		l.closing_minutes,
		l.dwell_minutes
	FROM run_stops rs
	JOIN locations l ON l.id = rs.location_id
	WHERE rs.run_id = ?
	ORDER BY rs.position, l.id;
	`)
	rows, err := s.DB.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list run stops: query run_stops table: %w", err)
	}
	defer rows.Close()

	records := make([]domain.StopRecord, 0, 16)
	for rows.Next() {
		var r domain.StopRecord
		var opening, closing, dwell sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Title, &r.Subtitle, &r.Address, &opening, &closing, &dwell); err != nil {
			return nil, fmt.Errorf("list run stops: scan row: %w", err)
		}
		r.OpeningMinutes = nullableInt(opening)
		r.ClosingMinutes = nullableInt(closing)
		r.DwellMinutes = nullableInt(dwell)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list run stops: row iteration: %w", err)
	}

	return records, nil
}

// SaveOrder rewrites stop positions for a run. The single nil entry, if any,
// marks where the unassigned bucket sits. Stops absent from order keep their
// relative order after the listed ones.
func (s *SQLRunRepository) SaveOrder(ctx context.Context, runID string, order []*string) (err error) {
	defer obs.Time(ctx, "runs.SaveOrder")(&err)

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save order: begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, rebind(s.Driver, `SELECT 1 FROM runs WHERE id = ?;`), runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("save order %q: %w", runID, ports.ErrRunNotFound)
	}
	if err != nil {
		return fmt.Errorf("save order %q: query runs table: %w", runID, err)
	}

	current, err := currentOrder(ctx, tx, s.Driver, runID)
	if err != nil {
		return fmt.Errorf("save order %q: %w", runID, err)
	}

	member := make(map[string]bool, len(current))
	for _, id := range current {
		member[id] = false
	}

	var unassigned *int
	positions := make([]string, 0, len(current))
	for i, id := range order {
		if id == nil {
			if unassigned != nil {
				return fmt.Errorf("save order %q: %w: more than one unassigned marker", runID, ports.ErrInvalidOrder)
			}
			pos := len(positions)
			unassigned = &pos
			continue
		}

		placed, ok := member[*id]
		if !ok {
			return fmt.Errorf("save order %q: %w: entry %d: %q is not a stop of this run", runID, ports.ErrInvalidOrder, i, *id)
		}
		if placed {
			return fmt.Errorf("save order %q: %w: %q listed twice", runID, ports.ErrInvalidOrder, *id)
		}
		member[*id] = true
		positions = append(positions, *id)
	}
	for _, id := range current {
		if !member[id] {
			positions = append(positions, id)
		}
	}

	update := rebind(s.Driver, `UPDATE run_stops SET position = ? WHERE run_id = ? AND location_id = ?;`)
	for pos, id := range positions {
		if _, err := tx.ExecContext(ctx, update, pos, runID, id); err != nil {
			return fmt.Errorf("save order %q: update %q: %w", runID, id, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		rebind(s.Driver, `UPDATE runs SET unassigned_position = ? WHERE id = ?;`),
		unassigned, runID,
	); err != nil {
		return fmt.Errorf("save order %q: update unassigned position: %w", runID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save order %q: commit tx: %w", runID, err)
	}

	return nil
}

// UnassignedPosition returns where the unassigned bucket was saved, or nil.
func (s *SQLRunRepository) UnassignedPosition(ctx context.Context, runID string) (*int, error) {
	var pos sql.NullInt64
	err := s.DB.QueryRowContext(ctx,
		rebind(s.Driver, `SELECT unassigned_position FROM runs WHERE id = ?;`), runID,
	).Scan(&pos)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unassigned position %q: %w", runID, ports.ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("unassigned position %q: %w", runID, err)
	}
	return nullableInt(pos), nil
}

func currentOrder(ctx context.Context, tx *sql.Tx, driver, runID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		rebind(driver, `SELECT location_id FROM run_stops WHERE run_id = ? ORDER BY position, location_id;`),
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query run_stops table: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func rebind(driver, query string) string {
	if driver != "pgx" {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
