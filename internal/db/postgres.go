// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

// This file contains the PostgreSQL implementation of the database store.
// All query logic lives in the shared Bun adapters; the per-backend types
// exist so backend-specific behavior has a place to go when it diverges.
package db

import (
	"fmt"
	"time"

	"github.com/toeirei/wardstone/internal/model"
	"github.com/uptrace/bun"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

// PostgresStore is the PostgreSQL implementation of the Store interface.
type PostgresStore struct {
	bun *bun.DB
}

func (s *PostgresStore) AddTrackedKey(identity, algorithm, keyData string, expiresAt *time.Time) (int, error) {
	id, err := AddTrackedKeyBun(s.bun, identity, algorithm, keyData, expiresAt)
	if err == nil {
		_ = s.LogAction("ADD_TRACKED_KEY", fmt.Sprintf("identity: %s, algorithm: %s", identity, algorithm))
	}
	return id, err
}

func (s *PostgresStore) GetAllTrackedKeys() ([]model.TrackedKey, error) {
	return GetAllTrackedKeysBun(s.bun)
}

func (s *PostgresStore) GetTrackedKeyByIdentity(identity string) (*model.TrackedKey, error) {
	return GetTrackedKeyByIdentityBun(s.bun, identity)
}

func (s *PostgresStore) DeleteTrackedKey(identity string) error {
	err := DeleteTrackedKeyBun(s.bun, identity)
	if err == nil {
		_ = s.LogAction("DELETE_TRACKED_KEY", fmt.Sprintf("identity: %s", identity))
	}
	return err
}

func (s *PostgresStore) TouchTrackedKey(identity string, seenAt time.Time) error {
	return TouchTrackedKeyBun(s.bun, identity, seenAt)
}

func (s *PostgresStore) SaveAuditRecord(r model.AuditRecord) error {
	return SaveAuditRecordBun(s.bun, r)
}

func (s *PostgresStore) GetAuditRecordsSince(cutoff time.Time) ([]model.AuditRecord, error) {
	return GetAuditRecordsSinceBun(s.bun, cutoff)
}

func (s *PostgresStore) PruneAuditRecords(cutoff time.Time) (int, error) {
	return PruneAuditRecordsBun(s.bun, cutoff)
}

func (s *PostgresStore) SaveAlert(a model.SecurityAlert) error {
	return SaveAlertBun(s.bun, a)
}

func (s *PostgresStore) UpdateAlert(a model.SecurityAlert) error {
	err := UpdateAlertBun(s.bun, a)
	if err == nil && a.Resolved {
		_ = s.LogAction("RESOLVE_ALERT", fmt.Sprintf("alert: %s, type: %s", a.ID, a.Type))
	}
	return err
}

func (s *PostgresStore) DeleteAlert(id string) error {
	return DeleteAlertBun(s.bun, id)
}

func (s *PostgresStore) GetAllAlerts() ([]model.SecurityAlert, error) {
	return GetAllAlertsBun(s.bun)
}

func (s *PostgresStore) GetAllAuditLogEntries() ([]model.AuditLogEntry, error) {
	return GetAllAuditLogEntriesBun(s.bun)
}

func (s *PostgresStore) LogAction(action string, details string) error {
	return LogActionBun(s.bun, action, details)
}

func (s *PostgresStore) ExportDataForBackup() (*model.BackupData, error) {
	return ExportDataForBackupBun(s.bun)
}

func (s *PostgresStore) ImportDataFromBackup(backup *model.BackupData) error {
	err := ImportDataFromBackupBun(s.bun, backup)
	if err == nil {
		_ = s.LogAction("IMPORT_BACKUP", fmt.Sprintf("keys: %d, records: %d, alerts: %d", len(backup.Keys), len(backup.AuditRecords), len(backup.Alerts)))
	}
	return err
}
