package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := testStore(t)

	runID, err := s.StartRun(3445611111, "20240101000000000", "20240131000000000")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	run, err := s.GetRun(runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run == nil || run.Status != RunRunning {
		t.Fatalf("run = %+v, want running", run)
	}
	if run.StudyID != 3445611111 || run.Start != "20240101000000000" {
		t.Errorf("run = %+v", run)
	}

	if err := s.RecordItem(runID, "metadata", "individuals.csv", 12, ItemExported); err != nil {
		t.Fatalf("RecordItem: %v", err)
	}
	if err := s.RecordItem(runID, "events", "events_gps.csv", 3, ItemExported); err != nil {
		t.Fatalf("RecordItem: %v", err)
	}
	if err := s.RecordItem(runID, "events", "events_acceleration.csv", 0, ItemEmpty); err != nil {
		t.Fatalf("RecordItem: %v", err)
	}

	if err := s.FinishRun(runID, RunCompleted, ""); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	run, err = s.GetRun(runID)
	if err != nil {
		t.Fatalf("GetRun after finish: %v", err)
	}
	if run.Status != RunCompleted || !run.FinishedAt.Valid {
		t.Errorf("run = %+v, want completed with finished_at", run)
	}

	items, err := s.GetRunItems(runID)
	if err != nil {
		t.Fatalf("GetRunItems: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	if items[1].Name != "events_gps.csv" || items[1].Rows != 3 {
		t.Errorf("item = %+v", items[1])
	}
	if items[2].Status != ItemEmpty {
		t.Errorf("item = %+v, want empty status", items[2])
	}
}

func TestGetRun_Missing(t *testing.T) {
	s := testStore(t)

	run, err := s.GetRun(9999)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run != nil {
		t.Errorf("run = %+v, want nil", run)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	s := testStore(t)

	payload := []byte("id,name,license_type\n42,Storks,CC_BY\n")
	id, err := s.StorePayload(0, "study", 42, payload)
	if err != nil {
		t.Fatalf("StorePayload: %v", err)
	}

	got, err := s.Payload(id)
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("payload = %q, want original bytes back", got)
	}

	hash := sha256.Sum256(payload)
	rec, err := s.PayloadByHash(hex.EncodeToString(hash[:]))
	if err != nil {
		t.Fatalf("PayloadByHash: %v", err)
	}
	if rec == nil || rec.Entity != "study" || rec.StudyID != 42 {
		t.Errorf("record = %+v", rec)
	}
}

func TestStorePayload_Dedupes(t *testing.T) {
	s := testStore(t)

	payload := []byte("tag_id,sensor_type_id\n1,653\n")
	first, err := s.StorePayload(0, "sensor", 42, payload)
	if err != nil {
		t.Fatalf("first StorePayload: %v", err)
	}
	second, err := s.StorePayload(0, "sensor", 42, payload)
	if err != nil {
		t.Fatalf("duplicate StorePayload: %v", err)
	}
	if second != first {
		t.Errorf("duplicate store returned id %d, want existing id %d", second, first)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM raw_payloads`).Scan(&count); err != nil {
		t.Fatalf("count payloads: %v", err)
	}
	if count != 1 {
		t.Errorf("stored %d payloads, want 1", count)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := testStore(t)

	// Re-running migrations against an up-to-date database is a no-op.
	if err := s.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	v, err := s.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("version = %d, want %d", v, len(migrations))
	}
}
