// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

// Package export writes and reads zstd-compressed JSON snapshots of the
// persisted monitoring state: tracked keys, audit records, alerts and the
// action log.
package export // import "github.com/toeirei/wardstone/internal/export"

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/toeirei/wardstone/internal/model"
)

// WriteBackup writes compressed JSON backup data to writer.
func WriteBackup(data *model.BackupData, w io.Writer) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	defer func() { _ = zw.Close() }()
	enc := json.NewEncoder(zw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return zw.Close()
}

// ReadBackup reads a zstd-compressed JSON backup and validates its schema
// version.
func ReadBackup(r io.Reader) (*model.BackupData, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()
	var data model.BackupData
	if err := json.NewDecoder(zr).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	if data.SchemaVersion > model.BackupSchemaVersion {
		return nil, fmt.Errorf("backup schema version %d is newer than supported version %d", data.SchemaVersion, model.BackupSchemaVersion)
	}
	return &data, nil
}

// WriteBackupFile writes the backup to a new file at path, refusing to
// overwrite an existing one.
func WriteBackupFile(data *model.BackupData, path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := WriteBackup(data, f); err != nil {
		return err
	}
	return f.Close()
}

// ReadBackupFile reads a backup previously written by WriteBackupFile.
func ReadBackupFile(path string) (*model.BackupData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open backup file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadBackup(f)
}
