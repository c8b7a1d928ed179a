package keyaudit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/toeirei/wardstone/internal/config"
	"github.com/toeirei/wardstone/internal/model"
)

// A structurally valid ed25519 public key for parser-dependent paths.
const validEd25519 = "AAAAC3NzaC1lZDI1NTE5AAAAIOMqqnkVzrm0SdG6UOoqKLsabgH5C9okWi0dh2l9GKJl"

type fakeInventory struct {
	keys      []model.TrackedKey
	deleteErr map[string]error
	deleted   []string
	actions   []string
}

func (f *fakeInventory) GetAllTrackedKeys() ([]model.TrackedKey, error) {
	return f.keys, nil
}

func (f *fakeInventory) DeleteTrackedKey(identity string) error {
	if err := f.deleteErr[identity]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, identity)
	return nil
}

func (f *fakeInventory) LogAction(action, details string) error {
	f.actions = append(f.actions, action)
	return nil
}

func testAuditConfig() config.Monitoring {
	var m config.Monitoring
	m.ExpiryWarningDays = 14
	m.StaleKeyDays = 90
	m.CleanupGraceDays = 7
	return m
}

func newTestAuditor(keys ...model.TrackedKey) (*Auditor, *fakeInventory) {
	inv := &fakeInventory{keys: keys, deleteErr: map[string]error{}}
	a := New(inv, testAuditConfig())
	a.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	return a, inv
}

func healthyKey(identity string) model.TrackedKey {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	expires := now.AddDate(1, 0, 0)
	seen := now.Add(-24 * time.Hour)
	return model.TrackedKey{
		Identity:   identity,
		Algorithm:  "ssh-ed25519",
		KeyData:    validEd25519,
		CreatedAt:  now.AddDate(0, -6, 0),
		ExpiresAt:  &expires,
		LastSeenAt: &seen,
	}
}

func TestAuditCredentials_CleanInventory(t *testing.T) {
	a, _ := newTestAuditor(healthyKey("deploy@ci"), healthyKey("www@web1"))

	result, err := a.AuditCredentials(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.TotalKeys)
	require.Empty(t, result.Issues)
	require.Empty(t, result.ExpiredKeys)
	require.Empty(t, result.ExpiringKeys)
}

func TestAuditCredentials_ExpiredKey(t *testing.T) {
	key := healthyKey("old@legacy")
	expired := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	key.ExpiresAt = &expired
	a, _ := newTestAuditor(key)

	result, err := a.AuditCredentials(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Issues, 1)
	require.Equal(t, model.SeverityCritical, result.Issues[0].Severity)
	require.Equal(t, []string{"old@legacy"}, result.ExpiredKeys)
}

func TestAuditCredentials_ExpiringSoon(t *testing.T) {
	key := healthyKey("deploy@ci")
	expires := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC) // 9 days out, window is 14
	key.ExpiresAt = &expires
	a, _ := newTestAuditor(key)

	result, err := a.AuditCredentials(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Issues, 1)
	require.Equal(t, model.SeverityHigh, result.Issues[0].Severity)
	require.Equal(t, []string{"deploy@ci"}, result.ExpiringKeys)
	require.Empty(t, result.ExpiredKeys)
}

func TestAuditCredentials_NoExpiry(t *testing.T) {
	key := healthyKey("forever@host")
	key.ExpiresAt = nil
	a, _ := newTestAuditor(key)

	result, err := a.AuditCredentials(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Issues, 1)
	require.Equal(t, model.SeverityLow, result.Issues[0].Severity)
}

func TestAuditCredentials_UnparseableKeyData(t *testing.T) {
	key := healthyKey("corrupt@host")
	key.KeyData = "not-valid-base64!!!"
	a, _ := newTestAuditor(key)

	result, err := a.AuditCredentials(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Issues, 1)
	require.Equal(t, model.SeverityMedium, result.Issues[0].Severity)
	require.Contains(t, result.Issues[0].Description, "unparseable")
}

func TestAuditCredentials_DeprecatedDSS(t *testing.T) {
	key := healthyKey("ancient@host")
	key.Algorithm = "ssh-dss"
	key.KeyData = "AAAAB3NzaC1kc3MAAACBAP filler"
	a, _ := newTestAuditor(key)

	result, err := a.AuditCredentials(context.Background())
	require.NoError(t, err)

	// The deprecated algorithm is flagged from the declared type even though
	// the key material itself also fails to parse.
	severities := make(map[model.Severity]int)
	for _, issue := range result.Issues {
		severities[issue.Severity]++
	}
	require.Equal(t, 1, severities[model.SeverityCritical])
	require.Equal(t, 1, severities[model.SeverityMedium])
}

func TestAuditCredentials_StaleKey(t *testing.T) {
	key := healthyKey("dusty@host")
	seen := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) // ~180 days before audit
	key.LastSeenAt = &seen
	a, _ := newTestAuditor(key)

	result, err := a.AuditCredentials(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Issues, 1)
	require.Equal(t, model.SeverityMedium, result.Issues[0].Severity)
	require.Contains(t, result.Issues[0].Description, "has not been seen")
}

func TestAuditCredentials_NeverSeenFallsBackToCreation(t *testing.T) {
	key := healthyKey("unused@host")
	key.LastSeenAt = nil
	key.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a, _ := newTestAuditor(key)

	result, err := a.AuditCredentials(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Issues, 1)
	require.Equal(t, model.SeverityMedium, result.Issues[0].Severity)
}

func TestClassifyRSA(t *testing.T) {
	tests := []struct {
		bits     int
		severity model.Severity
		weak     bool
	}{
		{1024, model.SeverityCritical, true},
		{2047, model.SeverityCritical, true},
		{2048, model.SeverityHigh, true},
		{3071, model.SeverityHigh, true},
		{3072, "", false},
		{4096, "", false},
	}
	for _, tt := range tests {
		severity, weak := classifyRSA(tt.bits)
		require.Equal(t, tt.weak, weak, "bits=%d", tt.bits)
		require.Equal(t, tt.severity, severity, "bits=%d", tt.bits)
	}
}

func TestCleanup_RemovesOnlyPastGrace(t *testing.T) {
	longGone := healthyKey("longgone@host")
	expired := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC) // a month past
	longGone.ExpiresAt = &expired

	recent := healthyKey("recent@host")
	justExpired := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC) // 3 days, grace is 7
	recent.ExpiresAt = &justExpired

	a, inv := newTestAuditor(longGone, recent, healthyKey("alive@host"))

	result, err := a.CleanupStaleCredentials(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, result.Examined)
	require.Equal(t, []string{"longgone@host"}, result.Cleaned)
	require.Empty(t, result.Errors)
	require.Equal(t, []string{"longgone@host"}, inv.deleted)
	require.Contains(t, inv.actions, "CLEANUP_EXPIRED_KEY")
}

func TestCleanup_CollectsPerItemErrors(t *testing.T) {
	locked := healthyKey("locked@host")
	gone := healthyKey("gone@host")
	expired := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	locked.ExpiresAt = &expired
	gone.ExpiresAt = &expired

	a, inv := newTestAuditor(locked, gone)
	inv.deleteErr["locked@host"] = errors.New("permission denied")

	result, err := a.CleanupStaleCredentials(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"gone@host"}, result.Cleaned)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "locked@host")
}
