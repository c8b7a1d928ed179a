// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

package monitoring

import (
	"sort"
	"sync"
	"time"

	"github.com/bobg/go-generics/v4/slices"
	"github.com/toeirei/wardstone/internal/logging"
	"github.com/toeirei/wardstone/internal/model"
)

// HistoryStore holds the canonical, time-ordered, retention-bounded sequence
// of audit records. Every successful mutation is atomic: either the complete
// transition (insert + prune + re-sort + integrity verification) becomes
// visible, or the prior state is restored exactly.
//
// Commits are serialized by a blocking mutex. There is deliberately no
// timeout override on the lock: a forced takeover while the original holder
// is still mid-commit would reintroduce the concurrent-writer race the lock
// exists to prevent. Callers bound the work done under the lock instead.
type HistoryStore struct {
	mu        sync.Mutex
	records   []model.AuditRecord
	retention time.Duration
	nextID    int64
	clock     Clock
}

// CommitOutcome describes a successful history commit.
type CommitOutcome struct {
	// Committed is the record as stored.
	Committed model.AuditRecord
	// Pruned is the number of records dropped by retention pruning.
	Pruned int
}

// NewHistoryStore creates an empty history bounded by the given retention
// window. A nil clock falls back to the system clock.
func NewHistoryStore(retention time.Duration, clock Clock) *HistoryStore {
	if clock == nil {
		clock = NewRealClock()
	}
	return &HistoryStore{
		retention: retention,
		nextID:    1,
		clock:     clock,
	}
}

// NextID mints a monotonically increasing record id.
func (h *HistoryStore) NextID() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	return id
}

// Seed loads previously persisted records into an empty store, typically at
// startup. Records older than the retention window are skipped. Seed must be
// called before the first commit.
func (h *HistoryStore) Seed(records []model.AuditRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.clock.Now().Add(-h.retention)
	kept := slices.Filter(records, func(r model.AuditRecord) bool {
		return r.Timestamp.After(cutoff)
	})
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Timestamp.Before(kept[j].Timestamp)
	})
	h.records = kept
	for _, r := range kept {
		if r.ID >= h.nextID {
			h.nextID = r.ID + 1
		}
	}
}

// Latest returns a copy of the most recent record, or nil if the history is
// empty.
func (h *HistoryStore) Latest() *model.AuditRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) == 0 {
		return nil
	}
	r := h.records[len(h.records)-1]
	return &r
}

// Len returns the number of records currently held.
func (h *HistoryStore) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// Commit atomically appends a record to the history. It builds a candidate
// next state (insert, prune to the retention window, sort by timestamp),
// verifies its invariants and swaps it in. If any verification fails the
// candidate is discarded, the previous state stays visible verbatim and a
// HistoryIntegrityError is returned; the caller must treat the audit as
// failed with the history unchanged.
func (h *HistoryStore) Commit(record model.AuditRecord) (CommitOutcome, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	snapshot := h.records

	// Candidate = sort(filter(snapshot ∪ {record}, within retention)).
	cutoff := h.clock.Now().Add(-h.retention)
	union := make([]model.AuditRecord, 0, len(snapshot)+1)
	union = append(union, snapshot...)
	union = append(union, record)
	candidate := slices.Filter(union, func(r model.AuditRecord) bool {
		return r.Timestamp.After(cutoff)
	})
	sort.SliceStable(candidate, func(i, j int) bool {
		return candidate[i].Timestamp.Before(candidate[j].Timestamp)
	})

	if reason := verifyCandidate(candidate, record.ID); reason != "" {
		// Restore the snapshot verbatim and surface the failure.
		h.records = snapshot
		logging.Warnf("history: commit of record %d rejected: %s", record.ID, reason)
		return CommitOutcome{}, &HistoryIntegrityError{Reason: reason}
	}

	h.records = candidate
	pruned := len(snapshot) + 1 - len(candidate)
	return CommitOutcome{Committed: record, Pruned: pruned}, nil
}

// verifyCandidate checks the post-mutation invariants of a candidate history.
// It returns an empty string when the candidate is sound.
func verifyCandidate(candidate []model.AuditRecord, newID int64) string {
	if len(candidate) == 0 {
		return "candidate history is empty"
	}

	found := false
	seen := make(map[int64]bool, len(candidate))
	for i, r := range candidate {
		if r.ID == newID {
			found = true
		}
		if seen[r.ID] {
			return "duplicate record id"
		}
		seen[r.ID] = true
		if i > 0 && candidate[i].Timestamp.Before(candidate[i-1].Timestamp) {
			return "timestamps out of order"
		}
	}
	if !found {
		return "new record missing from candidate"
	}
	return ""
}

// Query returns the records whose timestamp falls within the last sinceDays
// days, oldest first, together with trend statistics for that window.
func (h *HistoryStore) Query(sinceDays int) model.HistoryQueryResult {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.clock.Now().AddDate(0, 0, -sinceDays)
	window := slices.Filter(h.records, func(r model.AuditRecord) bool {
		return r.Timestamp.After(cutoff)
	})

	// Copy so callers can never alias the store's backing array.
	out := make([]model.AuditRecord, len(window))
	copy(out, window)

	return model.HistoryQueryResult{
		Records: out,
		Trends:  computeTrends(out),
	}
}

// computeTrends derives summary statistics from an ordered record window.
func computeTrends(window []model.AuditRecord) model.TrendStats {
	var t model.TrendStats
	if len(window) == 0 {
		return t
	}

	oldest := window[0]
	newest := window[len(window)-1]

	sum := 0
	for _, r := range window {
		sum += r.OverallScore
	}
	t.AverageScore = float64(sum) / float64(len(window))
	t.ScoreDelta = newest.OverallScore - oldest.OverallScore
	t.CriticalDelta = newest.Critical - oldest.Critical
	t.LastAuditAt = newest.Timestamp
	return t
}
