package archive

import (
	"database/sql"
	"fmt"
	"time"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Item statuses.
const (
	ItemExported = "exported"
	ItemEmpty    = "empty"
	ItemSkipped  = "skipped"
)

type Run struct {
	ID         int64
	StudyID    int64
	Start      string
	End        string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string
	Note       string
}

type Item struct {
	ID     int64
	RunID  int64
	Kind   string
	Name   string
	Rows   int
	Status string
}

// StartRun records the beginning of one fetch invocation.
func (s *Store) StartRun(studyID int64, start, end string) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO fetch_runs (study_id, timestamp_start, timestamp_end, started_at, status)
		VALUES (?, ?, ?, ?, ?)
	`, studyID, start, end, time.Now().UTC(), RunRunning)
	if err != nil {
		return 0, fmt.Errorf("insert fetch run: %w", err)
	}
	return result.LastInsertId()
}

// FinishRun closes out a run with its final status.
func (s *Store) FinishRun(id int64, status, note string) error {
	_, err := s.db.Exec(`
		UPDATE fetch_runs SET finished_at = ?, status = ?, note = ? WHERE id = ?
	`, time.Now().UTC(), status, note, id)
	return err
}

// RecordItem logs the outcome of one table within a run: a metadata
// category or one sensor type's event export.
func (s *Store) RecordItem(runID int64, kind, name string, rows int, status string) error {
	_, err := s.db.Exec(`
		INSERT INTO fetch_items (run_id, kind, name, rows, status)
		VALUES (?, ?, ?, ?, ?)
	`, runID, kind, name, rows, status)
	return err
}

// GetRun retrieves a run by ID. Returns nil when it does not exist.
func (s *Store) GetRun(id int64) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, study_id, COALESCE(timestamp_start, ''), COALESCE(timestamp_end, ''),
		       started_at, finished_at, status, COALESCE(note, '')
		FROM fetch_runs WHERE id = ?
	`, id)

	var r Run
	err := row.Scan(&r.ID, &r.StudyID, &r.Start, &r.End, &r.StartedAt, &r.FinishedAt, &r.Status, &r.Note)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRunItems returns the items recorded for a run, in insertion order.
func (s *Store) GetRunItems(runID int64) ([]Item, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, kind, name, rows, status
		FROM fetch_items WHERE run_id = ? ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.RunID, &it.Kind, &it.Name, &it.Rows, &it.Status); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
