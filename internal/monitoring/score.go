// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

package monitoring

import (
	"math"

	"github.com/toeirei/wardstone/internal/config"
	"github.com/toeirei/wardstone/internal/model"
)

// CalculateScore maps per-severity issue counts to a 0-100 security score.
// The weighted issue sum is normalized against the configured
// max_possible_issues constant:
//
//	weighted = critical*wC + high*wH + medium*wM + low*wL
//	score    = clamp(round(100 - weighted/max*100), 0, 100)
//
// The function is pure and deterministic. Config validation guarantees
// MaxPossibleIssues > 0 before any caller reaches this point.
func CalculateScore(counts model.IssueCounts, m config.Monitoring) int {
	weighted := float64(counts.Critical)*m.Weights.Critical +
		float64(counts.High)*m.Weights.High +
		float64(counts.Medium)*m.Weights.Medium +
		float64(counts.Low)*m.Weights.Low

	score := int(math.Round(100 - (weighted/m.MaxPossibleIssues)*100))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
