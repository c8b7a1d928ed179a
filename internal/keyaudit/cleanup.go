// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

package keyaudit

import (
	"context"
	"fmt"
	"time"

	"github.com/toeirei/wardstone/internal/logging"
	"github.com/toeirei/wardstone/internal/model"
)

// CleanupStaleCredentials removes keys whose expiry date lies more than the
// configured grace window in the past. A single failing removal does not
// abort the sweep; its error is collected into the result.
func (a *Auditor) CleanupStaleCredentials(ctx context.Context) (model.CleanupResult, error) {
	keys, err := a.inv.GetAllTrackedKeys()
	if err != nil {
		return model.CleanupResult{}, fmt.Errorf("failed to load tracked keys: %w", err)
	}

	now := a.now()
	grace := time.Duration(a.cfg.CleanupGraceDays) * 24 * time.Hour

	result := model.CleanupResult{Examined: len(keys)}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if key.ExpiresAt == nil || now.Sub(*key.ExpiresAt) <= grace {
			continue
		}
		if err := a.inv.DeleteTrackedKey(key.Identity); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", key.Identity, err))
			logging.Warnf("keyaudit: failed to clean up key %s: %v", key.Identity, err)
			continue
		}
		result.Cleaned = append(result.Cleaned, key.Identity)
		_ = a.inv.LogAction("CLEANUP_EXPIRED_KEY", fmt.Sprintf("identity: %s", key.Identity))
	}

	if len(result.Cleaned) > 0 {
		logging.Infof("keyaudit: cleaned up %d expired key(s)", len(result.Cleaned))
	}
	return result, nil
}
