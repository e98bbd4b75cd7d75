package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

type Run struct {
	ID      string
	Flow    string
	Seed    uint64
	BaseURL string
}

// Call is one remote call issued during a run.
type Call struct {
	Op       string
	Actor    string
	ItemID   string
	Err      error
	Duration time.Duration
}

// Writer appends runs and calls to the journal.
type Writer struct {
	DB    *sql.DB
	RunID string
	Now   func() time.Time
}

func (w Writer) now() string {
	if w.Now == nil {
		return time.Now().UTC().Format(time.RFC3339Nano)
	}
	return w.Now().UTC().Format(time.RFC3339Nano)
}

// BeginRun records a new run and returns a writer bound to it.
func (w Writer) BeginRun(ctx context.Context, run Run) (Writer, error) {
	_, err := w.DB.ExecContext(ctx, `INSERT INTO runs(id,flow,seed,base_url,status,started_at) VALUES (?,?,?,?,?,?)`,
		run.ID, run.Flow, int64(run.Seed), nullable(run.BaseURL), StatusRunning, w.now())
	if err != nil {
		return w, fmt.Errorf("insert run: %w", err)
	}
	w.RunID = run.ID
	return w, nil
}

// FinishRun stamps the bound run with its final status.
func (w Writer) FinishRun(ctx context.Context, status string) error {
	if w.RunID == "" {
		return fmt.Errorf("no run bound")
	}
	_, err := w.DB.ExecContext(ctx, `UPDATE runs SET status=?, finished_at=? WHERE id=?`, status, w.now(), w.RunID)
	return err
}

// Append records a call against the bound run.
func (w Writer) Append(ctx context.Context, c Call) error {
	if w.RunID == "" {
		return fmt.Errorf("no run bound")
	}
	ok := 1
	var errText any
	if c.Err != nil {
		ok = 0
		errText = c.Err.Error()
	}
	_, err := w.DB.ExecContext(ctx, `INSERT INTO calls(run_id,ts,op,actor,item_id,ok,error,duration_ms) VALUES (?,?,?,?,?,?,?,?)`,
		w.RunID, w.now(), c.Op, nullable(c.Actor), nullable(c.ItemID), ok, errText, c.Duration.Milliseconds())
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
