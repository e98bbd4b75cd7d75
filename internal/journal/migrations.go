package journal

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var schemaFS embed.FS

// step is one schema change. Steps are numbered from 1 without gaps; the
// database records the last applied number in PRAGMA user_version.
type step struct {
	n    int
	file string
	sql  string
}

// readSteps parses NNNN_name.sql files under dir.
func readSteps(fsys fs.FS, dir string) ([]step, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var steps []step
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		num, _, ok := strings.Cut(e.Name(), "_")
		n, err := strconv.Atoi(num)
		if !ok || err != nil || n <= 0 {
			return nil, fmt.Errorf("schema file %s: want NNNN_name.sql", e.Name())
		}
		body, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		steps = append(steps, step{n: n, file: e.Name(), sql: string(body)})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].n < steps[j].n })
	for i, s := range steps {
		if s.n != i+1 {
			return nil, fmt.Errorf("schema file %s: expected step %d", s.file, i+1)
		}
	}
	return steps, nil
}

func schemaVersion(q interface {
	QueryRow(query string, args ...any) *sql.Row
}) (int, error) {
	var v int
	if err := q.QueryRow(`PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// Migrate brings the journal schema up to date.
func Migrate(db *sql.DB) error {
	steps, err := readSteps(schemaFS, "sql")
	if err != nil {
		return err
	}
	return upgrade(db, steps)
}

// upgrade applies the steps above the stored version in one transaction. A
// database written by a newer build is refused rather than guessed at.
func upgrade(db *sql.DB, steps []step) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	have, err := schemaVersion(tx)
	if err != nil {
		return err
	}
	if have > len(steps) {
		return fmt.Errorf("journal schema v%d is newer than this build (v%d)", have, len(steps))
	}
	for _, s := range steps[have:] {
		if _, err := tx.Exec(s.sql); err != nil {
			return fmt.Errorf("schema %s: %w", s.file, err)
		}
	}
	if have == len(steps) {
		return nil
	}
	// pragmas take no bound parameters
	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, len(steps))); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}
