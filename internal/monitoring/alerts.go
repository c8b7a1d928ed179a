// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

package monitoring

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/toeirei/wardstone/internal/i18n"
	"github.com/toeirei/wardstone/internal/logging"
	"github.com/toeirei/wardstone/internal/model"
)

// AlertManager translates audit outcomes into actionable, stateful alerts
// and manages their lifecycle. Generation, resolution and the expiry sweep
// are the only three mutators; each is individually atomic under one mutex,
// so a just-created alert can never be lost to a concurrent sweep decision
// based on stale state.
type AlertManager struct {
	mu        sync.RWMutex
	alerts    map[string]*model.SecurityAlert
	retention time.Duration
	clock     Clock
}

// metaResolutionNote is the metadata key the resolution note is stored
// under. It is part of the persisted alert format, so it is a fixed key and
// never localized.
const metaResolutionNote = "resolution_note"

// NewAlertManager creates an alert manager whose expiry sweep removes
// resolved alerts older than the given retention window.
func NewAlertManager(retention time.Duration, clock Clock) *AlertManager {
	if clock == nil {
		clock = NewRealClock()
	}
	return &AlertManager{
		alerts:    make(map[string]*model.SecurityAlert),
		retention: retention,
		clock:     clock,
	}
}

// Seed loads previously persisted alerts, typically at startup.
func (m *AlertManager) Seed(alerts []model.SecurityAlert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range alerts {
		alert := a
		m.alerts[alert.ID] = &alert
	}
}

// Evaluate applies the alert generation rules to a freshly committed audit
// record and stores the resulting alerts. Each rule fires independently, so
// one audit can emit zero to four alerts. The new alerts are returned so the
// caller can mirror them to persistent storage.
func (m *AlertManager) Evaluate(record model.AuditRecord, dropThreshold, significantDropThreshold int) []model.SecurityAlert {
	now := m.clock.Now()
	auditID := strconv.FormatInt(record.ID, 10)
	var created []model.SecurityAlert

	if record.Critical > 0 {
		created = append(created, model.SecurityAlert{
			ID:                 uuid.New().String(),
			Type:               model.AlertCriticalIssue,
			Severity:           model.SeverityCritical,
			Title:              i18n.T("alert.critical_issue_title"),
			Description:        i18n.T("alert.critical_issue_desc", record.Critical),
			AffectedComponents: contributingComponents(record.Details),
			Timestamp:          now,
			Metadata:           map[string]string{"audit_id": auditID},
		})
	}

	if record.ScoreChange != nil && *record.ScoreChange <= -dropThreshold {
		severity := model.SeverityHigh
		if *record.ScoreChange <= -significantDropThreshold {
			severity = model.SeverityCritical
		}
		prev := 0
		if record.PreviousScore != nil {
			prev = *record.PreviousScore
		}
		created = append(created, model.SecurityAlert{
			ID:          uuid.New().String(),
			Type:        model.AlertScoreDeterioration,
			Severity:    severity,
			Title:       i18n.T("alert.score_drop_title"),
			Description: i18n.T("alert.score_drop_desc", -*record.ScoreChange, prev, record.OverallScore),
			Timestamp:   now,
			Metadata: map[string]string{
				"audit_id":     auditID,
				"score_change": strconv.Itoa(*record.ScoreChange),
			},
		})
	}

	if expired := record.Details.Credential.ExpiredKeys; len(expired) > 0 {
		created = append(created, model.SecurityAlert{
			ID:                 uuid.New().String(),
			Type:               model.AlertCredentialExpiry,
			Severity:           model.SeverityCritical,
			Title:              i18n.T("alert.credential_expiry_title"),
			Description:        i18n.T("alert.credential_expiry_desc", len(expired), strings.Join(expired, ", ")),
			AffectedComponents: expired,
			Timestamp:          now,
			Metadata:           map[string]string{"audit_id": auditID},
		})
	}

	if record.Details.Encryption.Status == model.EncryptionUnhealthy {
		created = append(created, model.SecurityAlert{
			ID:                 uuid.New().String(),
			Type:               model.AlertEncryptionFailure,
			Severity:           model.SeverityCritical,
			Title:              i18n.T("alert.encryption_failure_title"),
			Description:        i18n.T("alert.encryption_failure_desc", record.Details.Encryption.Detail),
			AffectedComponents: []string{"encryption"},
			Timestamp:          now,
			Metadata:           map[string]string{"audit_id": auditID},
		})
	}

	if len(created) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range created {
		a := created[i]
		m.alerts[a.ID] = &a
	}
	logging.Debugf("alerts: audit %s generated %d alert(s)", auditID, len(created))
	return created
}

// contributingComponents names the detail sections that reported issues.
func contributingComponents(d model.AuditDetails) []string {
	var out []string
	if len(d.Credential.Issues) > 0 {
		out = append(out, "credential-audit")
	}
	if d.Encryption.Status != model.EncryptionHealthy {
		out = append(out, "encryption")
	}
	if len(d.Environment) > 0 {
		out = append(out, "environment")
	}
	return out
}

// Resolve marks an alert as resolved and appends the note to its metadata.
// It returns false without side effects when the id is unknown or the alert
// was already resolved; ResolvedAt is never mutated after the first call.
func (m *AlertManager) Resolve(id, note string) (model.SecurityAlert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok || a.Resolved {
		return model.SecurityAlert{}, false
	}

	now := m.clock.Now()
	a.Resolved = true
	a.ResolvedAt = &now
	if note != "" {
		if a.Metadata == nil {
			a.Metadata = make(map[string]string)
		}
		a.Metadata[metaResolutionNote] = note
	}
	return *a, true
}

// Sweep removes every alert that is resolved and whose resolution time lies
// beyond the retention window. Unresolved alerts are never removed,
// regardless of age. The removed ids are returned for persistence mirroring.
func (m *AlertManager) Sweep() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.clock.Now().Add(-m.retention)
	var removed []string
	for id, a := range m.alerts {
		if a.Resolved && a.ResolvedAt != nil && a.ResolvedAt.Before(cutoff) {
			delete(m.alerts, id)
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		logging.Debugf("alerts: expiry sweep removed %d resolved alert(s)", len(removed))
	}
	return removed
}

// Active returns all unresolved alerts. The ordering is unspecified but
// stable within a single read.
func (m *AlertManager) Active() []model.SecurityAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.SecurityAlert, 0, len(m.alerts))
	for _, a := range m.alerts {
		if !a.Resolved {
			out = append(out, *a)
		}
	}
	return out
}

// ActiveCount returns the number of unresolved alerts.
func (m *AlertManager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.alerts {
		if !a.Resolved {
			n++
		}
	}
	return n
}
