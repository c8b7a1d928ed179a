// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/toeirei/wardstone/internal/model"
	"github.com/uptrace/bun"
)

// TrackedKeyModel maps the `tracked_keys` table for Bun queries.
type TrackedKeyModel struct {
	bun.BaseModel `bun:"table:tracked_keys"`
	ID            int          `bun:"id,pk,autoincrement"`
	Identity      string       `bun:"identity"`
	Algorithm     string       `bun:"algorithm"`
	KeyData       string       `bun:"key_data"`
	CreatedAt     time.Time    `bun:"created_at"`
	ExpiresAt     sql.NullTime `bun:"expires_at"`
	LastSeenAt    sql.NullTime `bun:"last_seen_at"`
}

// AuditRecordModel maps the `audit_records` table. The structured issue
// breakdown is stored as a JSON document; ids are assigned by the in-memory
// history store, not by the database.
type AuditRecordModel struct {
	bun.BaseModel `bun:"table:audit_records"`
	ID            int64         `bun:"id,pk"`
	Timestamp     time.Time     `bun:"timestamp"`
	OverallScore  int           `bun:"overall_score"`
	Critical      int           `bun:"critical_issues"`
	High          int           `bun:"high_issues"`
	Medium        int           `bun:"medium_issues"`
	Low           int           `bun:"low_issues"`
	Details       string        `bun:"details"`
	PreviousScore sql.NullInt64 `bun:"previous_score"`
	ScoreChange   sql.NullInt64 `bun:"score_change"`
}

// AlertModel maps the `alerts` table. Affected components and metadata are
// stored as JSON documents.
type AlertModel struct {
	bun.BaseModel      `bun:"table:alerts"`
	ID                 string       `bun:"id,pk"`
	Type               string       `bun:"type"`
	Severity           string       `bun:"severity"`
	Title              string       `bun:"title"`
	Description        string       `bun:"description"`
	AffectedComponents string       `bun:"affected_components"`
	Timestamp          time.Time    `bun:"timestamp"`
	Resolved           bool         `bun:"resolved"`
	ResolvedAt         sql.NullTime `bun:"resolved_at"`
	Metadata           string       `bun:"metadata"`
}

// AuditLogModel maps the audit_log table.
type AuditLogModel struct {
	bun.BaseModel `bun:"table:audit_log"`
	ID            int    `bun:"id,pk,autoincrement"`
	Timestamp     string `bun:"timestamp"`
	Action        string `bun:"action"`
	Details       string `bun:"details"`
}

// --- Mapping helpers (centralized conversions) ---

func trackedKeyModelToModel(m TrackedKeyModel) model.TrackedKey {
	k := model.TrackedKey{
		ID:        m.ID,
		Identity:  m.Identity,
		Algorithm: m.Algorithm,
		KeyData:   m.KeyData,
		CreatedAt: m.CreatedAt,
	}
	if m.ExpiresAt.Valid {
		t := m.ExpiresAt.Time
		k.ExpiresAt = &t
	}
	if m.LastSeenAt.Valid {
		t := m.LastSeenAt.Time
		k.LastSeenAt = &t
	}
	return k
}

func auditRecordToModel(r model.AuditRecord) (AuditRecordModel, error) {
	details, err := json.Marshal(r.Details)
	if err != nil {
		return AuditRecordModel{}, fmt.Errorf("failed to encode audit details: %w", err)
	}
	m := AuditRecordModel{
		ID:           r.ID,
		Timestamp:    r.Timestamp,
		OverallScore: r.OverallScore,
		Critical:     r.Critical,
		High:         r.High,
		Medium:       r.Medium,
		Low:          r.Low,
		Details:      string(details),
	}
	if r.PreviousScore != nil {
		m.PreviousScore = sql.NullInt64{Int64: int64(*r.PreviousScore), Valid: true}
	}
	if r.ScoreChange != nil {
		m.ScoreChange = sql.NullInt64{Int64: int64(*r.ScoreChange), Valid: true}
	}
	return m, nil
}

func auditRecordModelToModel(m AuditRecordModel) (model.AuditRecord, error) {
	r := model.AuditRecord{
		ID:           m.ID,
		Timestamp:    m.Timestamp,
		OverallScore: m.OverallScore,
		Critical:     m.Critical,
		High:         m.High,
		Medium:       m.Medium,
		Low:          m.Low,
	}
	if m.Details != "" {
		if err := json.Unmarshal([]byte(m.Details), &r.Details); err != nil {
			return model.AuditRecord{}, fmt.Errorf("failed to decode audit details for record %d: %w", m.ID, err)
		}
	}
	if m.PreviousScore.Valid {
		v := int(m.PreviousScore.Int64)
		r.PreviousScore = &v
	}
	if m.ScoreChange.Valid {
		v := int(m.ScoreChange.Int64)
		r.ScoreChange = &v
	}
	return r, nil
}

func alertToModel(a model.SecurityAlert) (AlertModel, error) {
	components, err := json.Marshal(a.AffectedComponents)
	if err != nil {
		return AlertModel{}, fmt.Errorf("failed to encode alert components: %w", err)
	}
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return AlertModel{}, fmt.Errorf("failed to encode alert metadata: %w", err)
	}
	m := AlertModel{
		ID:                 a.ID,
		Type:               string(a.Type),
		Severity:           string(a.Severity),
		Title:              a.Title,
		Description:        a.Description,
		AffectedComponents: string(components),
		Timestamp:          a.Timestamp,
		Resolved:           a.Resolved,
		Metadata:           string(metadata),
	}
	if a.ResolvedAt != nil {
		m.ResolvedAt = sql.NullTime{Time: *a.ResolvedAt, Valid: true}
	}
	return m, nil
}

func alertModelToModel(m AlertModel) (model.SecurityAlert, error) {
	a := model.SecurityAlert{
		ID:          m.ID,
		Type:        model.AlertType(m.Type),
		Severity:    model.Severity(m.Severity),
		Title:       m.Title,
		Description: m.Description,
		Timestamp:   m.Timestamp,
		Resolved:    m.Resolved,
	}
	if m.AffectedComponents != "" && m.AffectedComponents != "null" {
		if err := json.Unmarshal([]byte(m.AffectedComponents), &a.AffectedComponents); err != nil {
			return model.SecurityAlert{}, fmt.Errorf("failed to decode components for alert %s: %w", m.ID, err)
		}
	}
	if m.Metadata != "" && m.Metadata != "null" {
		if err := json.Unmarshal([]byte(m.Metadata), &a.Metadata); err != nil {
			return model.SecurityAlert{}, fmt.Errorf("failed to decode metadata for alert %s: %w", m.ID, err)
		}
	}
	if m.ResolvedAt.Valid {
		t := m.ResolvedAt.Time
		a.ResolvedAt = &t
	}
	return a, nil
}

// AddTrackedKeyBun inserts a new tracked key and returns its ID.
func AddTrackedKeyBun(bdb *bun.DB, identity, algorithm, keyData string, expiresAt *time.Time) (int, error) {
	ctx := context.Background()
	m := &TrackedKeyModel{
		Identity:  identity,
		Algorithm: algorithm,
		KeyData:   keyData,
		CreatedAt: time.Now().UTC(),
	}
	if expiresAt != nil {
		m.ExpiresAt = sql.NullTime{Time: *expiresAt, Valid: true}
	}
	// Insert only the populated columns so last_seen_at stays NULL until the
	// key is first observed in use.
	if _, err := bdb.NewInsert().Model(m).Column("identity", "algorithm", "key_data", "created_at", "expires_at").Returning("id").Exec(ctx); err != nil {
		return 0, MapDBError(err)
	}
	return m.ID, nil
}

// GetAllTrackedKeysBun returns the full inventory ordered by identity.
func GetAllTrackedKeysBun(bdb *bun.DB) ([]model.TrackedKey, error) {
	ctx := context.Background()
	var km []TrackedKeyModel
	if err := bdb.NewSelect().Model(&km).OrderExpr("identity").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.TrackedKey, 0, len(km))
	for _, k := range km {
		out = append(out, trackedKeyModelToModel(k))
	}
	return out, nil
}

// GetTrackedKeyByIdentityBun returns one tracked key, or (nil, nil) when no
// key with that identity exists.
func GetTrackedKeyByIdentityBun(bdb *bun.DB, identity string) (*model.TrackedKey, error) {
	ctx := context.Background()
	var km TrackedKeyModel
	err := bdb.NewSelect().Model(&km).Where("identity = ?", identity).Limit(1).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	k := trackedKeyModelToModel(km)
	return &k, nil
}

// DeleteTrackedKeyBun removes a tracked key by identity.
func DeleteTrackedKeyBun(bdb *bun.DB, identity string) error {
	ctx := context.Background()
	res, err := bdb.NewDelete().Model((*TrackedKeyModel)(nil)).Where("identity = ?", identity).Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchTrackedKeyBun updates the last-seen timestamp of a tracked key.
func TouchTrackedKeyBun(bdb *bun.DB, identity string, seenAt time.Time) error {
	ctx := context.Background()
	_, err := bdb.NewUpdate().Model((*TrackedKeyModel)(nil)).
		Set("last_seen_at = ?", seenAt).
		Where("identity = ?", identity).
		Exec(ctx)
	return err
}

// SaveAuditRecordBun persists one committed audit record.
func SaveAuditRecordBun(bdb *bun.DB, r model.AuditRecord) error {
	ctx := context.Background()
	m, err := auditRecordToModel(r)
	if err != nil {
		return err
	}
	_, err = bdb.NewInsert().Model(&m).Exec(ctx)
	return MapDBError(err)
}

// GetAuditRecordsSinceBun returns persisted records newer than cutoff,
// oldest first to match the in-memory history ordering.
func GetAuditRecordsSinceBun(bdb *bun.DB, cutoff time.Time) ([]model.AuditRecord, error) {
	ctx := context.Background()
	var rm []AuditRecordModel
	if err := bdb.NewSelect().Model(&rm).Where("timestamp > ?", cutoff).OrderExpr("timestamp, id").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.AuditRecord, 0, len(rm))
	for _, m := range rm {
		r, err := auditRecordModelToModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// PruneAuditRecordsBun deletes records at or before cutoff and reports how
// many were removed.
func PruneAuditRecordsBun(bdb *bun.DB, cutoff time.Time) (int, error) {
	ctx := context.Background()
	res, err := bdb.NewDelete().Model((*AuditRecordModel)(nil)).Where("timestamp <= ?", cutoff).Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

// SaveAlertBun inserts a newly generated alert.
func SaveAlertBun(bdb *bun.DB, a model.SecurityAlert) error {
	ctx := context.Background()
	m, err := alertToModel(a)
	if err != nil {
		return err
	}
	_, err = bdb.NewInsert().Model(&m).Exec(ctx)
	return MapDBError(err)
}

// UpdateAlertBun persists the resolution state of an existing alert.
func UpdateAlertBun(bdb *bun.DB, a model.SecurityAlert) error {
	ctx := context.Background()
	m, err := alertToModel(a)
	if err != nil {
		return err
	}
	res, err := bdb.NewUpdate().Model(&m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAlertBun removes an alert by id.
func DeleteAlertBun(bdb *bun.DB, id string) error {
	ctx := context.Background()
	_, err := bdb.NewDelete().Model((*AlertModel)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

// GetAllAlertsBun returns all persisted alerts, most recent first.
func GetAllAlertsBun(bdb *bun.DB) ([]model.SecurityAlert, error) {
	ctx := context.Background()
	var am []AlertModel
	if err := bdb.NewSelect().Model(&am).OrderExpr("timestamp DESC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.SecurityAlert, 0, len(am))
	for _, m := range am {
		a, err := alertModelToModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// GetAllAuditLogEntriesBun retrieves all action log entries, most recent first.
func GetAllAuditLogEntriesBun(bdb *bun.DB) ([]model.AuditLogEntry, error) {
	ctx := context.Background()
	var am []AuditLogModel
	if err := bdb.NewSelect().Model(&am).OrderExpr("timestamp DESC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.AuditLogEntry, 0, len(am))
	for _, a := range am {
		out = append(out, model.AuditLogEntry{ID: a.ID, Timestamp: a.Timestamp, Action: a.Action, Details: a.Details})
	}
	return out, nil
}

// LogActionBun inserts an audit log entry stamped with the current UTC time.
func LogActionBun(bdb *bun.DB, action string, details string) error {
	ctx := context.Background()
	ts := time.Now().UTC().Format(time.RFC3339)
	_, err := ExecRaw(ctx, bdb, "INSERT INTO audit_log (timestamp, action, details) VALUES (?, ?, ?)", ts, action, details)
	return MapDBError(err)
}

// ExportDataForBackupBun exports all tables' data into a model.BackupData using a Bun transaction.
func ExportDataForBackupBun(bdb *bun.DB) (*model.BackupData, error) {
	ctx := context.Background()
	var backup *model.BackupData
	err := WithTx(ctx, bdb, func(ctx context.Context, tx bun.Tx) error {
		backup = &model.BackupData{SchemaVersion: model.BackupSchemaVersion}

		// Tracked keys
		var keys []TrackedKeyModel
		if err := tx.NewSelect().Model(&keys).Scan(ctx); err != nil {
			return err
		}
		for _, k := range keys {
			backup.Keys = append(backup.Keys, trackedKeyModelToModel(k))
		}

		// Audit records
		var records []AuditRecordModel
		if err := tx.NewSelect().Model(&records).OrderExpr("timestamp, id").Scan(ctx); err != nil {
			return err
		}
		for _, m := range records {
			r, err := auditRecordModelToModel(m)
			if err != nil {
				return err
			}
			backup.AuditRecords = append(backup.AuditRecords, r)
		}

		// Alerts
		var alerts []AlertModel
		if err := tx.NewSelect().Model(&alerts).Scan(ctx); err != nil {
			return err
		}
		for _, m := range alerts {
			a, err := alertModelToModel(m)
			if err != nil {
				return err
			}
			backup.Alerts = append(backup.Alerts, a)
		}

		// Audit log
		var entries []AuditLogModel
		if err := tx.NewSelect().Model(&entries).Scan(ctx); err != nil {
			return err
		}
		for _, e := range entries {
			backup.AuditLog = append(backup.AuditLog, model.AuditLogEntry{ID: e.ID, Timestamp: e.Timestamp, Action: e.Action, Details: e.Details})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return backup, nil
}

// ImportDataFromBackupBun restores the database from a backup data structure.
// It performs a full wipe-and-replace within a single transaction to ensure atomicity.
func ImportDataFromBackupBun(bdb *bun.DB, backup *model.BackupData) error {
	ctx := context.Background()
	return WithTx(ctx, bdb, func(ctx context.Context, tx bun.Tx) error {
		// Wipe tables
		tables := []string{"audit_log", "alerts", "audit_records", "tracked_keys"}
		for _, t := range tables {
			if _, err := ExecRaw(ctx, tx, fmt.Sprintf("DELETE FROM %s", t)); err != nil {
				return err
			}
		}

		for _, k := range backup.Keys {
			var expires, seen interface{}
			if k.ExpiresAt != nil {
				expires = *k.ExpiresAt
			}
			if k.LastSeenAt != nil {
				seen = *k.LastSeenAt
			}
			if _, err := ExecRaw(ctx, tx, "INSERT INTO tracked_keys (id, identity, algorithm, key_data, created_at, expires_at, last_seen_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
				k.ID, k.Identity, k.Algorithm, k.KeyData, k.CreatedAt, expires, seen); err != nil {
				return MapDBError(err)
			}
		}
		for _, r := range backup.AuditRecords {
			m, err := auditRecordToModel(r)
			if err != nil {
				return err
			}
			if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
				return MapDBError(err)
			}
		}
		for _, a := range backup.Alerts {
			m, err := alertToModel(a)
			if err != nil {
				return err
			}
			if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
				return MapDBError(err)
			}
		}
		for _, e := range backup.AuditLog {
			if _, err := ExecRaw(ctx, tx, "INSERT INTO audit_log (timestamp, action, details) VALUES (?, ?, ?)", e.Timestamp, e.Action, e.Details); err != nil {
				return MapDBError(err)
			}
		}
		return nil
	})
}
