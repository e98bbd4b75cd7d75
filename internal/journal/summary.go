package journal

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// OpSummary aggregates the calls of one operation.
type OpSummary struct {
	Op       string
	Calls    int
	Failures int
	Average  time.Duration
}

// RunInfo is a stored run.
type RunInfo struct {
	ID         string
	Flow       string
	Seed       uint64
	Status     string
	StartedAt  string
	FinishedAt string
}

// Summary groups the calls of runID by operation, ordered by first use.
func Summary(ctx context.Context, db *sql.DB, runID string) ([]OpSummary, error) {
	rows, err := db.QueryContext(ctx, `
SELECT op, COUNT(*), SUM(CASE WHEN ok=0 THEN 1 ELSE 0 END), AVG(duration_ms), MIN(id) AS first_id
FROM calls WHERE run_id=? GROUP BY op ORDER BY first_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OpSummary
	for rows.Next() {
		var s OpSummary
		var avg float64
		var first int64
		if err := rows.Scan(&s.Op, &s.Calls, &s.Failures, &avg, &first); err != nil {
			return nil, err
		}
		s.Average = time.Duration(avg * float64(time.Millisecond))
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetRun loads a stored run.
func GetRun(ctx context.Context, db *sql.DB, runID string) (RunInfo, error) {
	var r RunInfo
	var seed int64
	var finished sql.NullString
	err := db.QueryRowContext(ctx, `SELECT id,flow,seed,status,started_at,finished_at FROM runs WHERE id=?`, runID).
		Scan(&r.ID, &r.Flow, &seed, &r.Status, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return RunInfo{}, ErrNotFound
	}
	if err != nil {
		return RunInfo{}, err
	}
	r.Seed = uint64(seed)
	r.FinishedAt = finished.String
	return r, nil
}

// Runs lists stored runs, newest first.
func Runs(ctx context.Context, db *sql.DB, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT id,flow,seed,status,started_at,finished_at FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunInfo
	for rows.Next() {
		var r RunInfo
		var seed int64
		var finished sql.NullString
		if err := rows.Scan(&r.ID, &r.Flow, &seed, &r.Status, &r.StartedAt, &finished); err != nil {
			return nil, err
		}
		r.Seed = uint64(seed)
		r.FinishedAt = finished.String
		out = append(out, r)
	}
	return out, rows.Err()
}
