// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/toeirei/wardstone/internal/config"
	"github.com/toeirei/wardstone/internal/logging"
	"github.com/toeirei/wardstone/internal/model"
)

// IssueSource supplies categorized credential findings. Implemented by the
// key auditor; consumed, not owned, by the monitoring service.
type IssueSource interface {
	AuditCredentials(ctx context.Context) (model.CredentialAuditResult, error)
}

// EncryptionChecker probes the health of the encryption subsystem.
type EncryptionChecker interface {
	CheckHealth(ctx context.Context) (model.EncryptionHealth, error)
}

// EnvironmentChecker reports configuration findings about the runtime
// environment.
type EnvironmentChecker interface {
	CheckEnvironment(ctx context.Context) ([]model.Issue, error)
}

// CredentialCleaner removes stale credentials from the inventory.
type CredentialCleaner interface {
	CleanupStaleCredentials(ctx context.Context) (model.CleanupResult, error)
}

// Archiver mirrors committed records and alert mutations to persistent
// storage. Archive failures are logged, never propagated: the in-memory
// history stays the canonical state and performs no I/O itself.
type Archiver interface {
	SaveAuditRecord(r model.AuditRecord) error
	SaveAlert(a model.SecurityAlert) error
	UpdateAlert(a model.SecurityAlert) error
	DeleteAlert(id string) error
}

// Service wires the score calculator, history store, alert manager and
// scheduler together and exposes the public monitoring contract. Construct
// it with New; all collaborators are injected so independent instances can
// coexist in tests.
type Service struct {
	cfg     config.Monitoring
	history *HistoryStore
	alerts  *AlertManager
	sched   *Scheduler
	clock   Clock

	issues      IssueSource
	encryption  EncryptionChecker
	environment EnvironmentChecker
	cleaner     CredentialCleaner
	archive     Archiver

	// auditMu serializes complete audit cycles (compute, commit, evaluate).
	// It is a plain blocking mutex: on-demand audits queue up behind the
	// scheduled one instead of ever running concurrently with it.
	auditMu sync.Mutex

	mu          sync.Mutex
	lastAuditAt *time.Time
}

// Options carries the optional collaborators of a Service.
type Options struct {
	// Cleaner handles the stale-credential sweep; without one, RunCleanup
	// reports an empty result.
	Cleaner CredentialCleaner
	// Archive mirrors state to persistent storage; nil disables mirroring.
	Archive Archiver
	// Clock defaults to the system clock.
	Clock Clock
}

// New constructs a monitoring service. The configuration must already be
// validated; New does not re-check it.
func New(cfg config.Monitoring, issues IssueSource, encryption EncryptionChecker, environment EnvironmentChecker, opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = NewRealClock()
	}

	s := &Service{
		cfg:         cfg,
		history:     NewHistoryStore(cfg.HistoryRetention(), clock),
		alerts:      NewAlertManager(cfg.AlertRetention(), clock),
		clock:       clock,
		issues:      issues,
		encryption:  encryption,
		environment: environment,
		cleaner:     opts.Cleaner,
		archive:     opts.Archive,
	}

	s.sched = NewScheduler(clock,
		Task{Name: "security-audit", Interval: cfg.AuditInterval, Run: func(ctx context.Context) {
			if _, err := s.RunAuditCycle(ctx); err != nil {
				logging.Errorf("monitoring: scheduled audit failed: %v", err)
			}
		}},
		Task{Name: "credential-cleanup", Interval: cfg.CleanupInterval, Run: func(ctx context.Context) {
			if _, err := s.RunCleanup(ctx); err != nil {
				logging.Errorf("monitoring: scheduled cleanup failed: %v", err)
			}
		}},
		Task{Name: "alert-expiry", Interval: cfg.ExpiryInterval, Run: func(ctx context.Context) {
			s.expireResolvedAlerts()
		}},
	)
	return s
}

// Seed preloads history records and alerts from persistent storage. Call
// before Start.
func (s *Service) Seed(records []model.AuditRecord, alerts []model.SecurityAlert) {
	s.history.Seed(records)
	s.alerts.Seed(alerts)
	if latest := s.history.Latest(); latest != nil {
		ts := latest.Timestamp
		s.mu.Lock()
		s.lastAuditAt = &ts
		s.mu.Unlock()
	}
}

// Start launches the periodic tasks and runs one audit cycle immediately so
// pre-existing critical conditions surface without waiting for the first
// scheduled tick. Starting a running service is a complete no-op: the
// startup audit only runs on the stopped-to-running transition.
func (s *Service) Start(ctx context.Context) {
	if !s.sched.Start() {
		return
	}
	if _, err := s.RunAuditCycle(ctx); err != nil {
		logging.Errorf("monitoring: startup audit failed: %v", err)
	}
}

// Stop cancels future scheduler ticks. An in-flight audit cycle runs to
// completion; there is no cancellation of an in-flight commit.
func (s *Service) Stop() {
	s.sched.Stop()
}

// Running reports whether the scheduler is active.
func (s *Service) Running() bool {
	return s.sched.Running()
}

// RunAuditCycle executes one complete audit cycle: gather findings from the
// collaborators, compute the score, commit the record and evaluate alerts.
// Cycles are serialized; concurrent callers block until the current cycle
// finishes. Collaborator calls share one timeout so the audit lock is never
// held indefinitely; a timeout aborts the cycle with an
// AuditComputationError and leaves history and alerts untouched.
func (s *Service) RunAuditCycle(ctx context.Context) (model.AuditRecord, error) {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CollaboratorTimeout)
	defer cancel()

	credential, err := callBounded(ctx, "credential audit", s.issues.AuditCredentials)
	if err != nil {
		return model.AuditRecord{}, err
	}
	encryption, err := callBounded(ctx, "encryption health check", s.encryption.CheckHealth)
	if err != nil {
		return model.AuditRecord{}, err
	}
	environment, err := callBounded(ctx, "environment check", s.environment.CheckEnvironment)
	if err != nil {
		return model.AuditRecord{}, err
	}

	details := model.AuditDetails{
		Credential:  credential,
		Encryption:  encryption,
		Environment: environment,
	}
	counts := countIssues(details)
	score := CalculateScore(counts, s.cfg)

	record := model.AuditRecord{
		ID:           s.history.NextID(),
		Timestamp:    s.clock.Now(),
		OverallScore: score,
		Critical:     counts.Critical,
		High:         counts.High,
		Medium:       counts.Medium,
		Low:          counts.Low,
		Details:      details,
	}
	if prev := s.history.Latest(); prev != nil {
		prevScore := prev.OverallScore
		change := score - prevScore
		record.PreviousScore = &prevScore
		record.ScoreChange = &change
	}

	outcome, err := s.history.Commit(record)
	if err != nil {
		return model.AuditRecord{}, err
	}

	created := s.alerts.Evaluate(outcome.Committed, s.cfg.ScoreDropThreshold, s.cfg.SignificantDropThreshold)

	if s.archive != nil {
		if err := s.archive.SaveAuditRecord(outcome.Committed); err != nil {
			logging.Errorf("monitoring: failed to archive audit record %d: %v", outcome.Committed.ID, err)
		}
		for _, a := range created {
			if err := s.archive.SaveAlert(a); err != nil {
				logging.Errorf("monitoring: failed to archive alert %s: %v", a.ID, err)
			}
		}
	}

	now := s.clock.Now()
	s.mu.Lock()
	s.lastAuditAt = &now
	s.mu.Unlock()

	logging.Infof("monitoring: audit %d complete, score %d (%d critical, %d high, %d medium, %d low), %d alert(s)",
		record.ID, score, counts.Critical, counts.High, counts.Medium, counts.Low, len(created))
	return outcome.Committed, nil
}

// callBounded invokes one collaborator and enforces the cycle timeout even
// when the collaborator ignores context cancellation.
func callBounded[T any](ctx context.Context, stage string, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, &AuditComputationError{Stage: stage, Err: ctx.Err()}
	case r := <-ch:
		if r.err != nil {
			var zero T
			return zero, &AuditComputationError{Stage: stage, Err: r.err}
		}
		return r.val, nil
	}
}

// countIssues aggregates the per-severity counters across all detail
// sections. An unhealthy encryption subsystem counts as one critical issue,
// a degraded one as one medium issue.
func countIssues(d model.AuditDetails) model.IssueCounts {
	var counts model.IssueCounts
	for _, issue := range d.Credential.Issues {
		counts.Add(issue.Severity)
	}
	for _, issue := range d.Environment {
		counts.Add(issue.Severity)
	}
	switch d.Encryption.Status {
	case model.EncryptionUnhealthy:
		counts.Add(model.SeverityCritical)
	case model.EncryptionDegraded:
		counts.Add(model.SeverityMedium)
	}
	return counts
}

// RunCleanup performs one stale-credential cleanup sweep. Individual item
// failures are collected in the result and do not abort the sweep.
func (s *Service) RunCleanup(ctx context.Context) (model.CleanupResult, error) {
	if s.cleaner == nil {
		return model.CleanupResult{}, nil
	}
	res, err := s.cleaner.CleanupStaleCredentials(ctx)
	if err != nil {
		return model.CleanupResult{}, err
	}
	logging.Infof("monitoring: cleanup examined %d key(s), removed %d, %d error(s)",
		res.Examined, len(res.Cleaned), len(res.Errors))
	return res, nil
}

// expireResolvedAlerts runs the time-based alert expiry sweep and mirrors
// removals to the archive.
func (s *Service) expireResolvedAlerts() {
	removed := s.alerts.Sweep()
	if s.archive == nil {
		return
	}
	for _, id := range removed {
		if err := s.archive.DeleteAlert(id); err != nil {
			logging.Errorf("monitoring: failed to delete archived alert %s: %v", id, err)
		}
	}
}

// QueryHistory returns the audit records of the last sinceDays days together
// with their trend statistics.
func (s *Service) QueryHistory(sinceDays int) model.HistoryQueryResult {
	return s.history.Query(sinceDays)
}

// ActiveAlerts returns all unresolved alerts.
func (s *Service) ActiveAlerts() []model.SecurityAlert {
	return s.alerts.Active()
}

// ResolveAlert marks an alert resolved, recording the optional note. It
// returns false when the id is unknown or the alert was already resolved.
func (s *Service) ResolveAlert(id, note string) bool {
	resolved, ok := s.alerts.Resolve(id, note)
	if !ok {
		return false
	}
	if s.archive != nil {
		if err := s.archive.UpdateAlert(resolved); err != nil {
			logging.Errorf("monitoring: failed to archive resolution of alert %s: %v", id, err)
		}
	}
	return true
}

// HealthStatus describes the service's current state.
func (s *Service) HealthStatus() model.HealthStatus {
	s.mu.Lock()
	last := s.lastAuditAt
	s.mu.Unlock()

	return model.HealthStatus{
		Running:          s.sched.Running(),
		LastAuditAt:      last,
		ActiveAlertCount: s.alerts.ActiveCount(),
		AuditInterval:    s.cfg.AuditInterval,
		CleanupInterval:  s.cfg.CleanupInterval,
		ExpiryInterval:   s.cfg.ExpiryInterval,
	}
}
