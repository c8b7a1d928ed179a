// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

// Package keyaudit scans the tracked credential inventory and reports
// categorized security findings: expired or soon-expiring keys, weak
// algorithms, undersized RSA moduli, unparseable key material and keys that
// have gone stale. It feeds the credential section of every audit cycle and
// provides the stale-key cleanup sweep.
package keyaudit // import "github.com/toeirei/wardstone/internal/keyaudit"

import (
	"context"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/toeirei/wardstone/internal/config"
	"github.com/toeirei/wardstone/internal/model"
	"golang.org/x/crypto/ssh"
)

// Inventory is the subset of the data store the auditor needs. Implemented
// by db.Store.
type Inventory interface {
	GetAllTrackedKeys() ([]model.TrackedKey, error)
	DeleteTrackedKey(identity string) error
	LogAction(action string, details string) error
}

// Auditor inspects tracked keys and produces credential findings.
type Auditor struct {
	inv Inventory
	cfg config.Monitoring
	now func() time.Time
}

// New constructs an Auditor over the given inventory.
func New(inv Inventory, cfg config.Monitoring) *Auditor {
	return &Auditor{inv: inv, cfg: cfg, now: time.Now}
}

// AuditCredentials scans the full inventory and reports one issue per
// finding per key. The same key can contribute several findings (for
// example expired and weak at once).
func (a *Auditor) AuditCredentials(ctx context.Context) (model.CredentialAuditResult, error) {
	keys, err := a.inv.GetAllTrackedKeys()
	if err != nil {
		return model.CredentialAuditResult{}, fmt.Errorf("failed to load tracked keys: %w", err)
	}

	now := a.now()
	warningWindow := time.Duration(a.cfg.ExpiryWarningDays) * 24 * time.Hour
	staleWindow := time.Duration(a.cfg.StaleKeyDays) * 24 * time.Hour

	result := model.CredentialAuditResult{TotalKeys: len(keys)}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return model.CredentialAuditResult{}, err
		}
		result.Issues = append(result.Issues, a.auditExpiry(key, now, warningWindow, &result)...)
		result.Issues = append(result.Issues, auditStrength(key)...)
		if staleSince(key, now) > staleWindow {
			result.Issues = append(result.Issues, model.Issue{
				Severity:    model.SeverityMedium,
				Category:    "credential",
				Description: fmt.Sprintf("key %s has not been seen in over %d days", key, a.cfg.StaleKeyDays),
				Affected:    []string{key.Identity},
			})
		}
	}
	return result, nil
}

// auditExpiry reports expiry-related findings for one key and records the
// identity in the result's expired/expiring lists.
func (a *Auditor) auditExpiry(key model.TrackedKey, now time.Time, warningWindow time.Duration, result *model.CredentialAuditResult) []model.Issue {
	if key.ExpiresAt == nil {
		return []model.Issue{{
			Severity:    model.SeverityLow,
			Category:    "credential",
			Description: fmt.Sprintf("key %s has no expiry date", key),
			Affected:    []string{key.Identity},
		}}
	}
	if key.IsExpired(now) {
		result.ExpiredKeys = append(result.ExpiredKeys, key.Identity)
		return []model.Issue{{
			Severity:    model.SeverityCritical,
			Category:    "credential",
			Description: fmt.Sprintf("key %s expired on %s", key, key.ExpiresAt.Format("2006-01-02")),
			Affected:    []string{key.Identity},
		}}
	}
	if key.ExpiresAt.Sub(now) <= warningWindow {
		result.ExpiringKeys = append(result.ExpiringKeys, key.Identity)
		return []model.Issue{{
			Severity:    model.SeverityHigh,
			Category:    "credential",
			Description: fmt.Sprintf("key %s expires on %s", key, key.ExpiresAt.Format("2006-01-02")),
			Affected:    []string{key.Identity},
		}}
	}
	return nil
}

// auditStrength reports algorithm and key-size findings for one key. The
// declared algorithm is checked even when the key material does not parse,
// so a mislabeled or corrupt entry still surfaces both problems.
func auditStrength(key model.TrackedKey) []model.Issue {
	var issues []model.Issue

	if key.Algorithm == ssh.KeyAlgoDSA {
		issues = append(issues, model.Issue{
			Severity:    model.SeverityCritical,
			Category:    "credential",
			Description: fmt.Sprintf("key %s uses the deprecated ssh-dss algorithm", key),
			Affected:    []string{key.Identity},
		})
	}

	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key.Algorithm + " " + key.KeyData))
	if err != nil {
		issues = append(issues, model.Issue{
			Severity:    model.SeverityMedium,
			Category:    "credential",
			Description: fmt.Sprintf("key %s has unparseable key material", key),
			Affected:    []string{key.Identity},
		})
		return issues
	}

	if pub.Type() == ssh.KeyAlgoRSA {
		if severity, weak := classifyRSA(rsaBitSize(pub)); weak {
			issues = append(issues, model.Issue{
				Severity:    severity,
				Category:    "credential",
				Description: fmt.Sprintf("key %s is an undersized RSA key (%d bits)", key, rsaBitSize(pub)),
				Affected:    []string{key.Identity},
			})
		}
	}
	return issues
}

// classifyRSA maps an RSA modulus size to a finding severity. Keys below
// 2048 bits are critical, below 3072 high; anything larger is acceptable.
func classifyRSA(bits int) (model.Severity, bool) {
	switch {
	case bits < 2048:
		return model.SeverityCritical, true
	case bits < 3072:
		return model.SeverityHigh, true
	default:
		return "", false
	}
}

// rsaBitSize extracts the modulus bit length from a parsed RSA public key,
// or 0 when the key does not expose one.
func rsaBitSize(pub ssh.PublicKey) int {
	cryptoKey, ok := pub.(ssh.CryptoPublicKey)
	if !ok {
		return 0
	}
	rsaKey, ok := cryptoKey.CryptoPublicKey().(*rsa.PublicKey)
	if !ok {
		return 0
	}
	return rsaKey.N.BitLen()
}

// staleSince returns how long ago the key was last observed, falling back
// to its creation time for keys that have never been seen in use.
func staleSince(key model.TrackedKey, now time.Time) time.Duration {
	if key.LastSeenAt != nil {
		return now.Sub(*key.LastSeenAt)
	}
	return now.Sub(key.CreatedAt)
}
