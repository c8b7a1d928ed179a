package envcheck

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/toeirei/wardstone/internal/config"
	"github.com/toeirei/wardstone/internal/model"
)

func writeTempFile(t *testing.T, name string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("data"), perm))
	return path
}

func findByDescription(issues []model.Issue, substr string) *model.Issue {
	for i := range issues {
		if strings.Contains(issues[i].Description, substr) {
			return &issues[i]
		}
	}
	return nil
}

func TestCheckEnvironment_CleanSetup(t *testing.T) {
	db := writeTempFile(t, "wardstone.db", 0o600)
	cfgFile := writeTempFile(t, "config.yaml", 0o600)
	key := writeTempFile(t, "master.key", 0o600)

	var cfg config.Config
	cfg.Database.Type = "sqlite"
	cfg.Database.Dsn = db

	issues, err := New(cfg, cfgFile, key).CheckEnvironment(context.Background())
	require.NoError(t, err)
	require.Empty(t, issues)
}

func TestCheckEnvironment_DebugEnabled(t *testing.T) {
	var cfg config.Config
	cfg.Debug = true
	cfg.Database.Type = "sqlite"
	cfg.Database.Dsn = ":memory:"

	issues, err := New(cfg, "", "").CheckEnvironment(context.Background())
	require.NoError(t, err)

	issue := findByDescription(issues, "debug logging")
	require.NotNil(t, issue)
	require.Equal(t, model.SeverityLow, issue.Severity)
}

func TestCheckEnvironment_EmptyDSN(t *testing.T) {
	var cfg config.Config
	cfg.Database.Type = "sqlite"

	issues, err := New(cfg, "", "").CheckEnvironment(context.Background())
	require.NoError(t, err)

	issue := findByDescription(issues, "no database DSN")
	require.NotNil(t, issue)
	require.Equal(t, model.SeverityMedium, issue.Severity)
}

func TestCheckEnvironment_MissingKeyfile(t *testing.T) {
	var cfg config.Config
	cfg.Database.Type = "sqlite"
	cfg.Database.Dsn = ":memory:"

	issues, err := New(cfg, "", filepath.Join(t.TempDir(), "missing.key")).CheckEnvironment(context.Background())
	require.NoError(t, err)

	issue := findByDescription(issues, "keyfile is missing")
	require.NotNil(t, issue)
	require.Equal(t, model.SeverityHigh, issue.Severity)
}

func TestCheckEnvironment_LooseDatabasePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}
	db := writeTempFile(t, "wardstone.db", 0o666)

	var cfg config.Config
	cfg.Database.Type = "sqlite"
	cfg.Database.Dsn = db

	issues, err := New(cfg, "", "").CheckEnvironment(context.Background())
	require.NoError(t, err)

	issue := findByDescription(issues, "database file")
	require.NotNil(t, issue)
	require.Equal(t, model.SeverityHigh, issue.Severity)
}

func TestCheckEnvironment_LooseConfigPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}
	cfgFile := writeTempFile(t, "config.yaml", 0o644)

	var cfg config.Config
	cfg.Database.Type = "postgres"
	cfg.Database.Dsn = "postgres://localhost/wardstone"

	issues, err := New(cfg, cfgFile, "").CheckEnvironment(context.Background())
	require.NoError(t, err)

	issue := findByDescription(issues, "config file")
	require.NotNil(t, issue)
	require.Equal(t, model.SeverityMedium, issue.Severity)
}

func TestSqliteFilePath(t *testing.T) {
	require.Equal(t, "", sqliteFilePath(":memory:"))
	require.Equal(t, "", sqliteFilePath("file:test?mode=memory&cache=shared"))
	require.Equal(t, "/var/lib/wardstone.db", sqliteFilePath("file:/var/lib/wardstone.db?cache=shared"))
	require.Equal(t, "wardstone.db", sqliteFilePath("wardstone.db"))
}
