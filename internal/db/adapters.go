// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"github.com/toeirei/wardstone/internal/keyaudit"
	"github.com/toeirei/wardstone/internal/monitoring"
)

// Compile-time checks that the Store satisfies the consumer-side interfaces
// of the monitoring engine and the credential auditor.
var (
	_ monitoring.Archiver = (Store)(nil)
	_ keyaudit.Inventory  = (Store)(nil)
)
