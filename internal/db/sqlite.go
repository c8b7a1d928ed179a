// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

// package db provides the data access layer for Wardstone.
// This file contains the SQLite implementation of the database store.
package db // import "github.com/toeirei/wardstone/internal/db"

import (
	"fmt"
	"time"

	"github.com/toeirei/wardstone/internal/model"
	"github.com/uptrace/bun"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SqliteStore is the SQLite implementation of the Store interface.
type SqliteStore struct {
	bun *bun.DB
}

// AddTrackedKey adds a new key to the tracked inventory.
func (s *SqliteStore) AddTrackedKey(identity, algorithm, keyData string, expiresAt *time.Time) (int, error) {
	id, err := AddTrackedKeyBun(s.bun, identity, algorithm, keyData, expiresAt)
	if err == nil {
		_ = s.LogAction("ADD_TRACKED_KEY", fmt.Sprintf("identity: %s, algorithm: %s", identity, algorithm))
	}
	return id, err
}

// GetAllTrackedKeys retrieves the full tracked-key inventory.
func (s *SqliteStore) GetAllTrackedKeys() ([]model.TrackedKey, error) {
	return GetAllTrackedKeysBun(s.bun)
}

// GetTrackedKeyByIdentity retrieves a single tracked key by its unique identity.
func (s *SqliteStore) GetTrackedKeyByIdentity(identity string) (*model.TrackedKey, error) {
	return GetTrackedKeyByIdentityBun(s.bun, identity)
}

// DeleteTrackedKey removes a key from the inventory by identity.
func (s *SqliteStore) DeleteTrackedKey(identity string) error {
	err := DeleteTrackedKeyBun(s.bun, identity)
	if err == nil {
		_ = s.LogAction("DELETE_TRACKED_KEY", fmt.Sprintf("identity: %s", identity))
	}
	return err
}

// TouchTrackedKey updates the last-seen timestamp of a tracked key.
func (s *SqliteStore) TouchTrackedKey(identity string, seenAt time.Time) error {
	// Called on every observation; logged at a higher level when relevant.
	return TouchTrackedKeyBun(s.bun, identity, seenAt)
}

// SaveAuditRecord mirrors a committed audit record to persistent storage.
func (s *SqliteStore) SaveAuditRecord(r model.AuditRecord) error {
	return SaveAuditRecordBun(s.bun, r)
}

// GetAuditRecordsSince retrieves persisted audit records newer than cutoff.
func (s *SqliteStore) GetAuditRecordsSince(cutoff time.Time) ([]model.AuditRecord, error) {
	return GetAuditRecordsSinceBun(s.bun, cutoff)
}

// PruneAuditRecords removes persisted audit records older than cutoff.
func (s *SqliteStore) PruneAuditRecords(cutoff time.Time) (int, error) {
	return PruneAuditRecordsBun(s.bun, cutoff)
}

// SaveAlert persists a newly generated security alert.
func (s *SqliteStore) SaveAlert(a model.SecurityAlert) error {
	return SaveAlertBun(s.bun, a)
}

// UpdateAlert persists a mutation (resolution) of an existing alert.
func (s *SqliteStore) UpdateAlert(a model.SecurityAlert) error {
	err := UpdateAlertBun(s.bun, a)
	if err == nil && a.Resolved {
		_ = s.LogAction("RESOLVE_ALERT", fmt.Sprintf("alert: %s, type: %s", a.ID, a.Type))
	}
	return err
}

// DeleteAlert removes an alert from persistent storage.
func (s *SqliteStore) DeleteAlert(id string) error {
	return DeleteAlertBun(s.bun, id)
}

// GetAllAlerts retrieves all persisted alerts.
func (s *SqliteStore) GetAllAlerts() ([]model.SecurityAlert, error) {
	return GetAllAlertsBun(s.bun)
}

// GetAllAuditLogEntries retrieves all entries from the audit log, most recent first.
func (s *SqliteStore) GetAllAuditLogEntries() ([]model.AuditLogEntry, error) {
	return GetAllAuditLogEntriesBun(s.bun)
}

// LogAction records an audit trail event.
func (s *SqliteStore) LogAction(action string, details string) error {
	return LogActionBun(s.bun, action, details)
}

// ExportDataForBackup retrieves all data from the database for a backup.
// It uses a transaction to ensure a consistent snapshot of the data.
func (s *SqliteStore) ExportDataForBackup() (*model.BackupData, error) {
	return ExportDataForBackupBun(s.bun)
}

// ImportDataFromBackup restores the database from a backup data structure.
// It performs a full wipe-and-replace within a single transaction to ensure atomicity.
func (s *SqliteStore) ImportDataFromBackup(backup *model.BackupData) error {
	err := ImportDataFromBackupBun(s.bun, backup)
	if err == nil {
		_ = s.LogAction("IMPORT_BACKUP", fmt.Sprintf("keys: %d, records: %d, alerts: %d", len(backup.Keys), len(backup.AuditRecords), len(backup.Alerts)))
	}
	return err
}
