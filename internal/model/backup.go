// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.
package model

// BackupData is a container for all data exported by `wardstone export`.
type BackupData struct {
	// SchemaVersion helps in handling migrations during restore.
	SchemaVersion int `json:"schema_version"`

	Keys         []TrackedKey    `json:"keys"`
	AuditRecords []AuditRecord   `json:"audit_records"`
	Alerts       []SecurityAlert `json:"alerts"`
	AuditLog     []AuditLogEntry `json:"audit_log"`
}

// BackupSchemaVersion is the current export format version.
const BackupSchemaVersion = 1
