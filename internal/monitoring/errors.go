// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

package monitoring

import "fmt"

// HistoryIntegrityError reports that a history commit failed its
// post-mutation invariant checks. The store has already rolled back to the
// pre-commit snapshot when this error is returned.
type HistoryIntegrityError struct {
	Reason string
}

func (e *HistoryIntegrityError) Error() string {
	return "history integrity check failed: " + e.Reason
}

// AuditComputationError reports that an audit cycle aborted because an
// external collaborator call failed or timed out. History and alerts are
// left exactly as before the attempt.
type AuditComputationError struct {
	Stage string
	Err   error
}

func (e *AuditComputationError) Error() string {
	return fmt.Sprintf("audit computation failed during %s: %v", e.Stage, e.Err)
}

func (e *AuditComputationError) Unwrap() error {
	return e.Err
}
