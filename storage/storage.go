// Package storage provides SQLite-based persistence for simulation runs.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/LostSunset/cantera/trajectory"
)

// Store handles SQLite database operations for run archiving.
type Store struct {
	db *sql.DB
}

// Run represents one archived simulation run.
type Run struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Columns    []string   `json:"columns"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	NumSamples int        `json:"num_samples"`
	FinalTime  float64    `json:"final_time"`
}

// Open creates a Store backed by the database at path. The schema is
// created on first use.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		columns TEXT NOT NULL,
		started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME,
		num_samples INTEGER DEFAULT 0,
		final_time REAL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		time REAL NOT NULL,
		state TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_samples_run ON samples(run_id);
	CREATE INDEX IF NOT EXISTS idx_samples_run_seq ON samples(run_id, seq);
	CREATE INDEX IF NOT EXISTS idx_runs_name ON runs(name);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for custom queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SaveRun archives a complete trajectory under a fresh run ID and
// returns that ID.
func (s *Store) SaveRun(name string, traj *trajectory.Trajectory) (string, error) {
	id := uuid.New().String()

	cols, err := json.Marshal(traj.Columns)
	if err != nil {
		return "", fmt.Errorf("encode columns: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	finalTime := 0.0
	if n := traj.NumSamples(); n > 0 {
		finalTime = traj.Samples[n-1].Time
	}

	now := time.Now().UTC()
	_, err = tx.Exec(
		`INSERT INTO runs (id, name, columns, started_at, finished_at, num_samples, final_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, name, string(cols), now, now, traj.NumSamples(), finalTime,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO samples (run_id, seq, time, state) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return "", fmt.Errorf("prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for i, sample := range traj.Samples {
		state, err := json.Marshal(sample.Values)
		if err != nil {
			return "", fmt.Errorf("encode sample %d: %w", i, err)
		}
		if _, err := stmt.Exec(id, i, sample.Time, string(state)); err != nil {
			return "", fmt.Errorf("insert sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// LoadRun reconstructs the trajectory archived under id.
func (s *Store) LoadRun(id string) (*trajectory.Trajectory, error) {
	row := s.db.QueryRow(`SELECT columns FROM runs WHERE id = ?`, id)

	var colsJSON string
	if err := row.Scan(&colsJSON); err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}

	var columns []string
	if err := json.Unmarshal([]byte(colsJSON), &columns); err != nil {
		return nil, fmt.Errorf("decode columns: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT time, state FROM samples WHERE run_id = ? ORDER BY seq`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("load samples: %w", err)
	}
	defer rows.Close()

	traj := &trajectory.Trajectory{Columns: columns}
	for rows.Next() {
		var t float64
		var stateJSON string
		if err := rows.Scan(&t, &stateJSON); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		var values []float64
		if err := json.Unmarshal([]byte(stateJSON), &values); err != nil {
			return nil, fmt.Errorf("decode sample: %w", err)
		}
		if len(values) != len(columns) {
			return nil, fmt.Errorf("sample has %d values, run has %d columns",
				len(values), len(columns))
		}
		traj.Samples = append(traj.Samples, trajectory.Sample{Time: t, Values: values})
	}
	return traj, rows.Err()
}

// GetRun retrieves run metadata by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(
		`SELECT id, name, columns, started_at, finished_at, num_samples, final_time
		 FROM runs WHERE id = ?`, id,
	)
	return scanRun(row)
}

// ListRuns retrieves metadata for all archived runs, newest first.
func (s *Store) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query(
		`SELECT id, name, columns, started_at, finished_at, num_samples, final_time
		 FROM runs ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its samples.
func (s *Store) DeleteRun(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM samples WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("delete samples: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var colsJSON string
	var finishedAt sql.NullTime
	err := row.Scan(&run.ID, &run.Name, &colsJSON, &run.StartedAt, &finishedAt,
		&run.NumSamples, &run.FinalTime)
	if err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	if err := json.Unmarshal([]byte(colsJSON), &run.Columns); err != nil {
		return nil, fmt.Errorf("decode columns: %w", err)
	}
	return &run, nil
}
