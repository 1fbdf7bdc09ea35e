package data

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	insertRunSQL = `INSERT INTO run (indication, starting_sequence, top_k, mode, generated, created_at, result)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	selectRunsSQL = `SELECT id, indication, starting_sequence, top_k, mode, generated, created_at
		FROM run
		WHERE indication = ? OR ? = ''
		ORDER BY id DESC
		LIMIT ?
	`

	selectRunSQL = `SELECT id, indication, starting_sequence, top_k, mode, generated, created_at, result
		FROM run
		WHERE id = ?
	`

	runTimeFormat = time.RFC3339Nano
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Run is a persisted optimization. Result holds the serialized outcome and
// is only populated by GetRun.
type Run struct {
	ID               int64     `json:"id" yaml:"id"`
	Indication       string    `json:"indication" yaml:"indication"`
	StartingSequence string    `json:"starting_sequence" yaml:"starting_sequence"`
	TopK             int       `json:"top_k" yaml:"top_k"`
	Mode             string    `json:"mode" yaml:"mode"`
	Generated        int       `json:"generated" yaml:"generated"`
	CreatedAt        time.Time `json:"created_at" yaml:"created_at"`
	Result           string    `json:"result,omitempty" yaml:"result,omitempty"`
}

// SaveRun inserts r and returns its id. A zero CreatedAt is set to now.
func SaveRun(db *sql.DB, r *Run) (int64, error) {
	if db == nil {
		return 0, errDBNotInitialized
	}
	if r == nil {
		return 0, errors.New("run is nil")
	}
	if r.Indication == "" || r.StartingSequence == "" {
		return 0, fmt.Errorf("indication: %q and starting sequence: %q are required", r.Indication, r.StartingSequence)
	}

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	res, err := db.Exec(insertRunSQL, r.Indication, r.StartingSequence, r.TopK, r.Mode, r.Generated,
		r.CreatedAt.UTC().Format(runTimeFormat), r.Result)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}
	r.ID = id

	return id, nil
}

// ListRuns returns up to limit runs, newest first, without their results. An
// empty indication matches all runs.
func ListRuns(db *sql.DB, indication string, limit int) ([]*Run, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if limit <= 0 {
		return nil, fmt.Errorf("invalid limit: %d", limit)
	}

	rows, err := db.Query(selectRunsSQL, indication, indication, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	list := make([]*Run, 0)
	for rows.Next() {
		r := &Run{}
		var created string
		if err := rows.Scan(&r.ID, &r.Indication, &r.StartingSequence, &r.TopK, &r.Mode, &r.Generated, &created); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if r.CreatedAt, err = time.Parse(runTimeFormat, created); err != nil {
			return nil, fmt.Errorf("failed to parse run %d created_at %q: %w", r.ID, created, err)
		}
		list = append(list, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run rows: %w", err)
	}

	return list, nil
}

// GetRun returns the run with id, including its result.
func GetRun(db *sql.DB, id int64) (*Run, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	r := &Run{}
	var created string
	err := db.QueryRow(selectRunSQL, id).Scan(&r.ID, &r.Indication, &r.StartingSequence, &r.TopK, &r.Mode,
		&r.Generated, &created, &r.Result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to query run %d: %w", id, err)
	}

	if r.CreatedAt, err = time.Parse(runTimeFormat, created); err != nil {
		return nil, fmt.Errorf("failed to parse run %d created_at %q: %w", id, created, err)
	}

	return r, nil
}
