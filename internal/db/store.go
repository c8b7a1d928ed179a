// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"time"

	"github.com/toeirei/wardstone/internal/model"
)

// Store defines the interface for all database operations in Wardstone.
// This allows for multiple database backends to be implemented.
type Store interface {
	// Tracked key methods
	AddTrackedKey(identity, algorithm, keyData string, expiresAt *time.Time) (int, error)
	GetAllTrackedKeys() ([]model.TrackedKey, error)
	GetTrackedKeyByIdentity(identity string) (*model.TrackedKey, error)
	DeleteTrackedKey(identity string) error
	TouchTrackedKey(identity string, seenAt time.Time) error

	// Audit record methods
	SaveAuditRecord(r model.AuditRecord) error
	GetAuditRecordsSince(cutoff time.Time) ([]model.AuditRecord, error)
	PruneAuditRecords(cutoff time.Time) (int, error)

	// Alert methods
	SaveAlert(a model.SecurityAlert) error
	UpdateAlert(a model.SecurityAlert) error
	DeleteAlert(id string) error
	GetAllAlerts() ([]model.SecurityAlert, error)

	// Audit log methods
	LogAction(action string, details string) error
	GetAllAuditLogEntries() ([]model.AuditLogEntry, error)

	// Backup methods
	ExportDataForBackup() (*model.BackupData, error)
	ImportDataFromBackup(backup *model.BackupData) error
}
