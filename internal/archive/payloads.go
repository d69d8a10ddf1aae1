package archive

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// RawPayload is a stored metadata response body.
type RawPayload struct {
	ID          int64
	RunID       sql.NullInt64
	FetchedAt   time.Time
	Entity      string
	StudyID     int64
	PayloadHash string
}

// StorePayload stores one response payload gzip-compressed. Identical
// payloads (same sha256) are kept once; storing a duplicate is not an
// error.
func (s *Store) StorePayload(runID int64, entity string, studyID int64, payload []byte) (int64, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return 0, fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("close gzip: %w", err)
	}

	hash := sha256.Sum256(payload)
	hashHex := hex.EncodeToString(hash[:])

	var run sql.NullInt64
	if runID != 0 {
		run = sql.NullInt64{Int64: runID, Valid: true}
	}

	result, err := s.db.Exec(`
		INSERT INTO raw_payloads (run_id, fetched_at, entity, study_id, payload_compressed, payload_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(payload_hash) DO NOTHING
	`, run, time.Now().UTC(), entity, studyID, buf.Bytes(), hashHex)
	if err != nil {
		return 0, fmt.Errorf("insert raw payload: %w", err)
	}

	// On conflict nothing was inserted and LastInsertId would report the
	// connection's previous insert; return the stored row's id instead.
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		existing, err := s.PayloadByHash(hashHex)
		if err != nil {
			return 0, fmt.Errorf("lookup deduplicated payload: %w", err)
		}
		if existing != nil {
			return existing.ID, nil
		}
	}

	return result.LastInsertId()
}

// Payload retrieves and decompresses a stored payload by ID.
func (s *Store) Payload(id int64) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(`SELECT payload_compressed FROM raw_payloads WHERE id = ?`, id).
		Scan(&compressed)
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// PayloadByHash looks up a payload record by its sha256 hex digest.
// Returns nil when no such payload is stored.
func (s *Store) PayloadByHash(hash string) (*RawPayload, error) {
	row := s.db.QueryRow(`
		SELECT id, run_id, fetched_at, entity, study_id, payload_hash
		FROM raw_payloads WHERE payload_hash = ?
	`, hash)

	var p RawPayload
	err := row.Scan(&p.ID, &p.RunID, &p.FetchedAt, &p.Entity, &p.StudyID, &p.PayloadHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CleanupOldPayloads deletes payloads older than retentionDays. Returns
// the number of deleted records.
func (s *Store) CleanupOldPayloads(retentionDays int) (int64, error) {
	result, err := s.db.Exec(`
		DELETE FROM raw_payloads
		WHERE fetched_at < DATE('now', '-' || ? || ' days')
	`, retentionDays)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
