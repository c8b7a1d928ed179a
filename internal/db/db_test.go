package db

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/toeirei/wardstone/internal/export"
	"github.com/toeirei/wardstone/internal/model"
	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) string {
	t.Helper()
	dsn := "file:test_" + t.Name() + "?mode=memory&cache=shared"
	if err := InitDB("sqlite", dsn); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	return dsn
}

func TestInitDB_Migrations_Applied(t *testing.T) {
	dsn := newTestDB(t)

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open sql.DB for inspection: %v", err)
	}
	defer func() { _ = sqlDB.Close() }()

	for _, table := range []string{"tracked_keys", "audit_records", "alerts", "audit_log", "schema_migrations"} {
		var name string
		err := sqlDB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Fatalf("expected table %s to exist after migrations: %v", table, err)
		}
	}
}

func TestRunDBMaintenance_Sqlite(t *testing.T) {
	dsn := newTestDB(t)

	// Maintenance runs against its own connection and must not disturb the
	// active store.
	if err := RunDBMaintenance("sqlite", dsn); err != nil {
		t.Fatalf("RunDBMaintenance(sqlite) failed: %v", err)
	}

	// The store is still usable afterwards.
	if _, err := AddTrackedKey("post-maintenance@host", "ssh-ed25519", "AAAAC3NzaC1lZDI1NTE5AAAAIdata", nil); err != nil {
		t.Fatalf("AddTrackedKey after maintenance failed: %v", err)
	}
	keys, err := GetAllTrackedKeys()
	if err != nil {
		t.Fatalf("GetAllTrackedKeys after maintenance failed: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected 1 tracked key after maintenance, got %d", len(keys))
	}
}

func TestRunDBMaintenance_UnsupportedType(t *testing.T) {
	if err := RunDBMaintenance("oracle", "dsn"); err == nil {
		t.Fatalf("expected error for unsupported db type")
	}
}

func TestTrackedKey_AddDuplicateBehavior(t *testing.T) {
	_ = newTestDB(t)

	id, err := AddTrackedKey("deploy@ci", "ssh-ed25519", "AAAAC3NzaC1lZDI1NTE5AAAAItestkeydata", nil)
	if err != nil {
		t.Fatalf("unexpected error adding tracked key: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected a non-zero key id")
	}

	if _, err := AddTrackedKey("deploy@ci", "ssh-ed25519", "AAAAC3NzaC1lZDI1NTE5AAAAIother", nil); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on duplicate identity, got: %v", err)
	}

	key, err := GetTrackedKeyByIdentity("deploy@ci")
	if err != nil {
		t.Fatalf("unexpected error fetching key: %v", err)
	}
	if key == nil || key.Algorithm != "ssh-ed25519" {
		t.Fatalf("expected stored key back, got %+v", key)
	}

	missing, err := GetTrackedKeyByIdentity("nobody@nowhere")
	if err != nil {
		t.Fatalf("unexpected error fetching missing key: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown identity, got %+v", missing)
	}
}

func TestTrackedKey_DeleteAndTouch(t *testing.T) {
	_ = newTestDB(t)

	if _, err := AddTrackedKey("backup@nas", "ssh-rsa", "AAAAB3NzaC1yc2Etestkeydata", nil); err != nil {
		t.Fatalf("unexpected error adding tracked key: %v", err)
	}

	seen := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	if err := TouchTrackedKey("backup@nas", seen); err != nil {
		t.Fatalf("unexpected error touching key: %v", err)
	}
	key, err := GetTrackedKeyByIdentity("backup@nas")
	if err != nil {
		t.Fatalf("unexpected error fetching key: %v", err)
	}
	if key.LastSeenAt == nil || !key.LastSeenAt.Equal(seen) {
		t.Fatalf("expected last_seen_at %v, got %v", seen, key.LastSeenAt)
	}

	if err := DeleteTrackedKey("backup@nas"); err != nil {
		t.Fatalf("unexpected error deleting key: %v", err)
	}
	if err := DeleteTrackedKey("backup@nas"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on deleting missing key, got: %v", err)
	}
}

func TestAuditRecord_RoundTrip(t *testing.T) {
	_ = newTestDB(t)

	prev := 90
	change := -10
	record := model.AuditRecord{
		ID:           1,
		Timestamp:    time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		OverallScore: 80,
		Critical:     1,
		Details: model.AuditDetails{
			Credential: model.CredentialAuditResult{
				Issues:    []model.Issue{{Severity: model.SeverityCritical, Category: "credential", Description: "expired key"}},
				TotalKeys: 3,
			},
			Encryption: model.EncryptionHealth{Status: model.EncryptionHealthy},
		},
		PreviousScore: &prev,
		ScoreChange:   &change,
	}
	if err := SaveAuditRecord(record); err != nil {
		t.Fatalf("unexpected error saving audit record: %v", err)
	}

	records, err := GetAuditRecordsSince(record.Timestamp.Add(-time.Hour))
	if err != nil {
		t.Fatalf("unexpected error loading audit records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.OverallScore != 80 || got.Critical != 1 {
		t.Fatalf("score state did not survive round trip: %+v", got)
	}
	if got.PreviousScore == nil || *got.PreviousScore != 90 || got.ScoreChange == nil || *got.ScoreChange != -10 {
		t.Fatalf("score deltas did not survive round trip: %+v", got)
	}
	if len(got.Details.Credential.Issues) != 1 || got.Details.Credential.Issues[0].Description != "expired key" {
		t.Fatalf("details did not survive round trip: %+v", got.Details)
	}

	// Records outside the window stay invisible.
	records, err = GetAuditRecordsSince(record.Timestamp.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error loading audit records: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records past the cutoff, got %d", len(records))
	}

	pruned, err := PruneAuditRecords(record.Timestamp)
	if err != nil {
		t.Fatalf("unexpected error pruning audit records: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned record, got %d", pruned)
	}
}

func TestAlert_Lifecycle(t *testing.T) {
	_ = newTestDB(t)

	alert := model.SecurityAlert{
		ID:                 "a1b2c3",
		Type:               model.AlertCriticalIssue,
		Severity:           model.SeverityCritical,
		Title:              "Critical security issues detected",
		Description:        "1 critical issue found",
		AffectedComponents: []string{"credential-audit"},
		Timestamp:          time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		Metadata:           map[string]string{"audit_id": "1"},
	}
	if err := SaveAlert(alert); err != nil {
		t.Fatalf("unexpected error saving alert: %v", err)
	}

	resolvedAt := alert.Timestamp.Add(time.Hour)
	alert.Resolved = true
	alert.ResolvedAt = &resolvedAt
	alert.Metadata["resolution_note"] = "rotated the key"
	if err := UpdateAlert(alert); err != nil {
		t.Fatalf("unexpected error updating alert: %v", err)
	}

	alerts, err := GetAllAlerts()
	if err != nil {
		t.Fatalf("unexpected error loading alerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	got := alerts[0]
	if !got.Resolved || got.ResolvedAt == nil || !got.ResolvedAt.Equal(resolvedAt) {
		t.Fatalf("resolution state did not survive round trip: %+v", got)
	}
	if got.Metadata["resolution_note"] != "rotated the key" {
		t.Fatalf("metadata did not survive round trip: %+v", got.Metadata)
	}
	if len(got.AffectedComponents) != 1 || got.AffectedComponents[0] != "credential-audit" {
		t.Fatalf("components did not survive round trip: %+v", got.AffectedComponents)
	}

	if err := UpdateAlert(model.SecurityAlert{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating unknown alert, got: %v", err)
	}

	if err := DeleteAlert("a1b2c3"); err != nil {
		t.Fatalf("unexpected error deleting alert: %v", err)
	}
	alerts, err = GetAllAlerts()
	if err != nil {
		t.Fatalf("unexpected error loading alerts: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts after delete, got %d", len(alerts))
	}
}

func TestAuditLog_RecordsActions(t *testing.T) {
	_ = newTestDB(t)

	if _, err := AddTrackedKey("www@web1", "ssh-ed25519", "AAAAC3NzaC1lZDI1NTE5AAAAIwebkey", nil); err != nil {
		t.Fatalf("unexpected error adding tracked key: %v", err)
	}
	if err := LogAction("TEST_ACTION", "details here"); err != nil {
		t.Fatalf("unexpected error logging action: %v", err)
	}

	entries, err := GetAllAuditLogEntries()
	if err != nil {
		t.Fatalf("unexpected error loading audit log: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected at least 2 audit log entries (key add + explicit), got %d", len(entries))
	}
	foundAdd := false
	for _, e := range entries {
		if e.Action == "ADD_TRACKED_KEY" {
			foundAdd = true
		}
	}
	if !foundAdd {
		t.Fatalf("expected ADD_TRACKED_KEY to be logged, entries: %+v", entries)
	}
}

func TestBackup_ExportImportRoundTrip(t *testing.T) {
	_ = newTestDB(t)

	if _, err := AddTrackedKey("deploy@ci", "ssh-ed25519", "AAAAC3NzaC1lZDI1NTE5AAAAIcikey", nil); err != nil {
		t.Fatalf("unexpected error adding tracked key: %v", err)
	}
	if err := SaveAuditRecord(model.AuditRecord{ID: 1, Timestamp: time.Now().UTC(), OverallScore: 95}); err != nil {
		t.Fatalf("unexpected error saving audit record: %v", err)
	}
	if err := SaveAlert(model.SecurityAlert{ID: "x1", Type: model.AlertCredentialExpiry, Severity: model.SeverityCritical, Title: "t", Timestamp: time.Now().UTC()}); err != nil {
		t.Fatalf("unexpected error saving alert: %v", err)
	}

	backup, err := ExportDataForBackup()
	if err != nil {
		t.Fatalf("unexpected error exporting backup: %v", err)
	}
	if backup.SchemaVersion != model.BackupSchemaVersion {
		t.Fatalf("expected schema version %d, got %d", model.BackupSchemaVersion, backup.SchemaVersion)
	}
	if len(backup.Keys) != 1 || len(backup.AuditRecords) != 1 || len(backup.Alerts) != 1 {
		t.Fatalf("unexpected backup contents: %d keys, %d records, %d alerts", len(backup.Keys), len(backup.AuditRecords), len(backup.Alerts))
	}

	// Mutate the live DB, then restore: the import wipes and replaces.
	if _, err := AddTrackedKey("extra@host", "ssh-rsa", "AAAAB3NzaC1yc2Eextra", nil); err != nil {
		t.Fatalf("unexpected error adding second key: %v", err)
	}
	if err := ImportDataFromBackup(backup); err != nil {
		t.Fatalf("unexpected error importing backup: %v", err)
	}

	keys, err := GetAllTrackedKeys()
	if err != nil {
		t.Fatalf("unexpected error loading keys: %v", err)
	}
	if len(keys) != 1 || keys[0].Identity != "deploy@ci" {
		t.Fatalf("expected restored inventory with 1 key, got %+v", keys)
	}
	records, err := GetAuditRecordsSince(time.Time{})
	if err != nil {
		t.Fatalf("unexpected error loading records: %v", err)
	}
	if len(records) != 1 || records[0].OverallScore != 95 {
		t.Fatalf("expected restored audit record, got %+v", records)
	}
}

// Covers the full restore pipeline a backup file goes through: export the
// store to a compressed file, read the file back, import it.
func TestBackup_FileRestorePipeline(t *testing.T) {
	_ = newTestDB(t)

	if _, err := AddTrackedKey("deploy@ci", "ssh-ed25519", "AAAAC3NzaC1lZDI1NTE5AAAAIcikey", nil); err != nil {
		t.Fatalf("unexpected error adding tracked key: %v", err)
	}
	if err := SaveAlert(model.SecurityAlert{ID: "x1", Type: model.AlertCriticalIssue, Severity: model.SeverityCritical, Title: "t", Timestamp: time.Now().UTC()}); err != nil {
		t.Fatalf("unexpected error saving alert: %v", err)
	}

	backup, err := ExportDataForBackup()
	if err != nil {
		t.Fatalf("unexpected error exporting backup: %v", err)
	}
	path := filepath.Join(t.TempDir(), "wardstone-backup.json.zst")
	if err := export.WriteBackupFile(backup, path); err != nil {
		t.Fatalf("unexpected error writing backup file: %v", err)
	}

	// Drift the live state away from the snapshot.
	if err := DeleteTrackedKey("deploy@ci"); err != nil {
		t.Fatalf("unexpected error deleting key: %v", err)
	}
	if _, err := AddTrackedKey("drifted@host", "ssh-rsa", "AAAAB3NzaC1yc2Edrift", nil); err != nil {
		t.Fatalf("unexpected error adding drifted key: %v", err)
	}

	restored, err := export.ReadBackupFile(path)
	if err != nil {
		t.Fatalf("unexpected error reading backup file: %v", err)
	}
	if err := ImportDataFromBackup(restored); err != nil {
		t.Fatalf("unexpected error importing backup: %v", err)
	}

	keys, err := GetAllTrackedKeys()
	if err != nil {
		t.Fatalf("unexpected error loading keys: %v", err)
	}
	if len(keys) != 1 || keys[0].Identity != "deploy@ci" {
		t.Fatalf("expected the snapshot inventory back, got %+v", keys)
	}
	alerts, err := GetAllAlerts()
	if err != nil {
		t.Fatalf("unexpected error loading alerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID != "x1" {
		t.Fatalf("expected the snapshot alert back, got %+v", alerts)
	}
}
