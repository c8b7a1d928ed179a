// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

// package model defines the core data structures for security posture
// monitoring: audit records, security alerts, credential inventory and the
// derived statistics shared between the monitoring engine, the data access
// layer and the CLI.
package model // import "github.com/toeirei/wardstone/internal/model"

import (
	"fmt"
	"time"
)

// Severity classifies how urgent a finding or alert is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// IssueCounts holds the number of open findings per severity for one audit.
type IssueCounts struct {
	Critical int
	High     int
	Medium   int
	Low      int
}

// Total returns the number of findings across all severities.
func (c IssueCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low
}

// Add increments the counter matching the given severity.
func (c *IssueCounts) Add(s Severity) {
	switch s {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	case SeverityLow:
		c.Low++
	}
}

// Issue is a single categorized finding reported by one of the audit
// collaborators (credential auditor, environment checker).
type Issue struct {
	Severity    Severity `json:"severity"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	// Affected lists the identities or settings the finding applies to.
	Affected []string `json:"affected,omitempty"`
}

// CredentialAuditResult is what the credential auditor reports for one scan
// of the tracked key inventory.
type CredentialAuditResult struct {
	Issues    []Issue `json:"issues"`
	TotalKeys int     `json:"total_keys"`
	// ExpiredKeys names keys whose expiry date has passed.
	ExpiredKeys []string `json:"expired_keys,omitempty"`
	// ExpiringKeys names keys that expire within the warning window.
	ExpiringKeys []string `json:"expiring_keys,omitempty"`
}

// EncryptionStatus is the tri-state result of the encryption health probe.
type EncryptionStatus string

const (
	EncryptionHealthy   EncryptionStatus = "healthy"
	EncryptionDegraded  EncryptionStatus = "degraded"
	EncryptionUnhealthy EncryptionStatus = "unhealthy"
)

// EncryptionHealth describes the state of the at-rest encryption subsystem.
type EncryptionHealth struct {
	Status EncryptionStatus `json:"status"`
	// ProbeLatency is how long the seal/open self-test took.
	ProbeLatency time.Duration `json:"probe_latency"`
	Detail       string        `json:"detail,omitempty"`
}

// AuditDetails is the structured breakdown behind an audit record's score.
type AuditDetails struct {
	Credential  CredentialAuditResult `json:"credential"`
	Encryption  EncryptionHealth      `json:"encryption"`
	Environment []Issue               `json:"environment,omitempty"`
}

// AuditRecord is an immutable snapshot of the computed security score and
// its contributing issue breakdown at a point in time. Records are created
// only by a successful history commit and never mutated afterwards.
type AuditRecord struct {
	ID           int64        `json:"id"`
	Timestamp    time.Time    `json:"timestamp"`
	OverallScore int          `json:"overall_score"`
	Critical     int          `json:"critical_issues"`
	High         int          `json:"high_issues"`
	Medium       int          `json:"medium_issues"`
	Low          int          `json:"low_issues"`
	Details      AuditDetails `json:"details"`
	// PreviousScore is the score of the immediately preceding record at
	// commit time; nil for the first record in the history.
	PreviousScore *int `json:"previous_score,omitempty"`
	// ScoreChange is OverallScore minus PreviousScore; nil when there is
	// no preceding record.
	ScoreChange *int `json:"score_change,omitempty"`
}

// Counts returns the record's per-severity issue counters.
func (r AuditRecord) Counts() IssueCounts {
	return IssueCounts{Critical: r.Critical, High: r.High, Medium: r.Medium, Low: r.Low}
}

// AlertType identifies which generation rule produced a security alert.
type AlertType string

const (
	AlertScoreDeterioration AlertType = "score_deterioration"
	AlertCriticalIssue      AlertType = "critical_issue"
	AlertCredentialExpiry   AlertType = "credential_expiry"
	AlertEncryptionFailure  AlertType = "encryption_failure"
	AlertConfigurationError AlertType = "configuration_error"
)

// SecurityAlert is an actionable, stateful alert derived from audit results.
// ResolvedAt is set exactly when Resolved is true; once resolved an alert is
// immutable except for removal by the expiry sweep.
type SecurityAlert struct {
	ID                 string            `json:"id"`
	Type               AlertType         `json:"type"`
	Severity           Severity          `json:"severity"`
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	AffectedComponents []string          `json:"affected_components,omitempty"`
	Timestamp          time.Time         `json:"timestamp"`
	Resolved           bool              `json:"resolved"`
	ResolvedAt         *time.Time        `json:"resolved_at,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// TrendStats summarizes the audit history window returned by a query.
type TrendStats struct {
	// AverageScore over all records in the window.
	AverageScore float64 `json:"average_score"`
	// ScoreDelta is newest score minus oldest score in the window.
	ScoreDelta int `json:"score_delta"`
	// CriticalDelta is the change in critical-issue count over the window.
	CriticalDelta int `json:"critical_delta"`
	// LastAuditAt is the timestamp of the most recent record in the window.
	LastAuditAt time.Time `json:"last_audit_at"`
}

// HistoryQueryResult bundles the records of a history window together with
// the trend statistics derived from them.
type HistoryQueryResult struct {
	Records []AuditRecord `json:"records"`
	Trends  TrendStats    `json:"trends"`
}

// CleanupResult reports the outcome of one stale-credential cleanup sweep.
// A single failing item does not abort the sweep; its error is recorded here.
type CleanupResult struct {
	// Cleaned names the key identities that were removed.
	Cleaned []string `json:"cleaned,omitempty"`
	// Errors holds one message per item that failed to clean up.
	Errors []string `json:"errors,omitempty"`
	// Examined is the number of inventory entries considered.
	Examined int `json:"examined"`
}

// HealthStatus is the monitoring service's self-description.
type HealthStatus struct {
	Running          bool           `json:"running"`
	LastAuditAt      *time.Time     `json:"last_audit_at,omitempty"`
	ActiveAlertCount int            `json:"active_alert_count"`
	AuditInterval    time.Duration  `json:"audit_interval"`
	CleanupInterval  time.Duration  `json:"cleanup_interval"`
	ExpiryInterval   time.Duration  `json:"expiry_interval"`
}

// TrackedKey is one entry of the managed credential inventory the auditor
// scans. KeyData is the base64 body of the public key, without the
// algorithm prefix or comment.
type TrackedKey struct {
	ID        int        `json:"id"`
	Identity  string     `json:"identity"`
	Algorithm string     `json:"algorithm"`
	KeyData   string     `json:"key_data"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	// LastSeenAt is when the key was last observed in use; nil if never.
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// String returns the identity with its algorithm, e.g. "deploy@ci (ssh-ed25519)".
func (k TrackedKey) String() string {
	return fmt.Sprintf("%s (%s)", k.Identity, k.Algorithm)
}

// IsExpired reports whether the key has an expiry date in the past.
func (k TrackedKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// AuditLogEntry is one row of the persistent action log.
type AuditLogEntry struct {
	ID        int    `json:"id"`
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	Details   string `json:"details"`
}
