// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

// Package envcheck inspects the runtime environment of the monitoring
// engine itself: configuration hygiene, file permissions and the presence
// of the encryption keyfile. Its findings feed the environment section of
// every audit cycle.
package envcheck // import "github.com/toeirei/wardstone/internal/envcheck"

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/toeirei/wardstone/internal/config"
	"github.com/toeirei/wardstone/internal/model"
)

// Checker produces environment findings. It implements the monitoring
// service's EnvironmentChecker.
type Checker struct {
	cfg        config.Config
	configPath string
	keyPath    string
}

// New builds a Checker for the given runtime configuration. configPath and
// keyPath may be empty when no config file or keyfile is in use; the
// corresponding checks are skipped or reported accordingly.
func New(cfg config.Config, configPath, keyPath string) *Checker {
	return &Checker{cfg: cfg, configPath: configPath, keyPath: keyPath}
}

// CheckEnvironment runs all environment checks and returns the findings.
func (c *Checker) CheckEnvironment(ctx context.Context) ([]model.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var issues []model.Issue

	if c.cfg.Debug {
		issues = append(issues, model.Issue{
			Severity:    model.SeverityLow,
			Category:    "environment",
			Description: "debug logging is enabled",
			Affected:    []string{"config: debug"},
		})
	}

	if strings.TrimSpace(c.cfg.Database.Dsn) == "" {
		issues = append(issues, model.Issue{
			Severity:    model.SeverityMedium,
			Category:    "environment",
			Description: "no database DSN configured, falling back to defaults",
			Affected:    []string{"config: database.dsn"},
		})
	}

	if c.keyPath != "" {
		if _, err := os.Stat(c.keyPath); os.IsNotExist(err) {
			issues = append(issues, model.Issue{
				Severity:    model.SeverityHigh,
				Category:    "environment",
				Description: "encryption master keyfile is missing",
				Affected:    []string{c.keyPath},
			})
		}
	}

	if runtime.GOOS != "windows" {
		if c.cfg.Database.Type == "sqlite" {
			if path := sqliteFilePath(c.cfg.Database.Dsn); path != "" {
				issues = append(issues, checkFilePerms(path, model.SeverityHigh, "database file")...)
			}
		}
		if c.configPath != "" {
			issues = append(issues, checkFilePerms(c.configPath, model.SeverityMedium, "config file")...)
		}
	}

	return issues, nil
}

// checkFilePerms flags a file readable or writable by group or other. A
// missing file is not a finding here; presence checks live elsewhere.
func checkFilePerms(path string, severity model.Severity, what string) []model.Issue {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	perm := info.Mode().Perm()
	if perm&0o077 == 0 {
		return nil
	}
	return []model.Issue{{
		Severity:    severity,
		Category:    "environment",
		Description: fmt.Sprintf("%s has permissive mode %04o", what, perm),
		Affected:    []string{path},
	}}
}

// sqliteFilePath extracts the on-disk path from a SQLite DSN, returning ""
// for in-memory databases.
func sqliteFilePath(dsn string) string {
	if dsn == "" || dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		return ""
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}
