// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

// Package monitoring is the security-posture engine of Wardstone. It
// periodically recomputes a 0-100 security score from credential hygiene,
// encryption health and environment configuration, maintains a bounded,
// time-ordered history of audit records with atomic rollback-safe commits,
// and manages the lifecycle of alerts derived from score deltas and critical
// findings.
//
// The package owns the only two shared mutable collections of the engine,
// the audit history and the alert set. Audit cycles are serialized by a
// blocking mutex; alert generation, resolution and expiry are individually
// atomic mutators of the alert set.
package monitoring // import "github.com/toeirei/wardstone/internal/monitoring"
