package export

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/toeirei/wardstone/internal/model"
)

func sampleBackup() *model.BackupData {
	expires := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	return &model.BackupData{
		SchemaVersion: model.BackupSchemaVersion,
		Keys: []model.TrackedKey{{
			ID:        1,
			Identity:  "deploy@ci",
			Algorithm: "ssh-ed25519",
			KeyData:   "AAAAC3NzaC1lZDI1NTE5AAAAIcikey",
			CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			ExpiresAt: &expires,
		}},
		AuditRecords: []model.AuditRecord{{
			ID:           1,
			Timestamp:    time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
			OverallScore: 95,
		}},
		Alerts: []model.SecurityAlert{{
			ID:        "a1",
			Type:      model.AlertCriticalIssue,
			Severity:  model.SeverityCritical,
			Title:     "Critical security issues detected",
			Timestamp: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		}},
		AuditLog: []model.AuditLogEntry{{ID: 1, Timestamp: "2026-08-20T12:00:00Z", Action: "ADD_TRACKED_KEY", Details: "identity: deploy@ci"}},
	}
}

func TestBackup_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBackup(sampleBackup(), &buf); err != nil {
		t.Fatalf("WriteBackup failed: %v", err)
	}

	restored, err := ReadBackup(&buf)
	if err != nil {
		t.Fatalf("ReadBackup failed: %v", err)
	}
	if len(restored.Keys) != 1 || restored.Keys[0].Identity != "deploy@ci" {
		t.Fatalf("keys did not survive round trip: %+v", restored.Keys)
	}
	if len(restored.AuditRecords) != 1 || restored.AuditRecords[0].OverallScore != 95 {
		t.Fatalf("records did not survive round trip: %+v", restored.AuditRecords)
	}
	if len(restored.Alerts) != 1 || restored.Alerts[0].Severity != model.SeverityCritical {
		t.Fatalf("alerts did not survive round trip: %+v", restored.Alerts)
	}
}

func TestBackup_OutputIsCompressed(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBackup(sampleBackup(), &buf); err != nil {
		t.Fatalf("WriteBackup failed: %v", err)
	}
	// zstd frame magic number
	magic := []byte{0x28, 0xb5, 0x2f, 0xfd}
	if !bytes.HasPrefix(buf.Bytes(), magic) {
		t.Fatalf("expected zstd frame magic, got % x", buf.Bytes()[:4])
	}
}

func TestBackupFile_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.zst")
	if err := WriteBackupFile(sampleBackup(), path); err != nil {
		t.Fatalf("WriteBackupFile failed: %v", err)
	}
	if err := WriteBackupFile(sampleBackup(), path); err == nil {
		t.Fatalf("expected error writing over an existing backup file")
	}

	restored, err := ReadBackupFile(path)
	if err != nil {
		t.Fatalf("ReadBackupFile failed: %v", err)
	}
	if restored.SchemaVersion != model.BackupSchemaVersion {
		t.Fatalf("unexpected schema version %d", restored.SchemaVersion)
	}
}

func TestReadBackup_RejectsNewerSchema(t *testing.T) {
	backup := sampleBackup()
	backup.SchemaVersion = model.BackupSchemaVersion + 1

	var buf bytes.Buffer
	if err := WriteBackup(backup, &buf); err != nil {
		t.Fatalf("WriteBackup failed: %v", err)
	}
	if _, err := ReadBackup(&buf); err == nil {
		t.Fatalf("expected newer schema version to be rejected")
	}
}

func TestReadBackupFile_MissingFile(t *testing.T) {
	if _, err := ReadBackupFile(filepath.Join(t.TempDir(), "nope.zst")); err == nil {
		t.Fatalf("expected error for missing backup file")
	}
}
