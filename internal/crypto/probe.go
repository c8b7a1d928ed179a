// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

package crypto

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/toeirei/wardstone/internal/model"
)

// slowProbeThreshold marks a working but suspiciously slow encryption
// subsystem as degraded.
const slowProbeThreshold = 250 * time.Millisecond

// Prober runs the seal/open self-test against the configured keyfile. It
// implements the monitoring service's EncryptionChecker.
type Prober struct {
	keyPath string
}

// NewProber returns a Prober for the master keyfile at keyPath.
func NewProber(keyPath string) *Prober {
	return &Prober{keyPath: keyPath}
}

// CheckHealth performs one encrypt/decrypt round trip with the master key
// and classifies the result. Failures are reported through the returned
// status rather than as an error: a broken encryption subsystem is a
// finding, not a reason to abort the audit.
func (p *Prober) CheckHealth(ctx context.Context) (model.EncryptionHealth, error) {
	if err := ctx.Err(); err != nil {
		return model.EncryptionHealth{}, err
	}

	start := time.Now()
	key, err := LoadKey(p.keyPath)
	if err != nil {
		return model.EncryptionHealth{
			Status:       model.EncryptionUnhealthy,
			ProbeLatency: time.Since(start),
			Detail:       fmt.Sprintf("master key unavailable: %v", err),
		}, nil
	}

	plaintext := []byte("wardstone-probe " + start.Format(time.RFC3339Nano))
	sealed, err := Seal(key, plaintext)
	if err != nil {
		return model.EncryptionHealth{
			Status:       model.EncryptionUnhealthy,
			ProbeLatency: time.Since(start),
			Detail:       fmt.Sprintf("seal failed: %v", err),
		}, nil
	}
	opened, err := Open(key, sealed)
	if err != nil {
		return model.EncryptionHealth{
			Status:       model.EncryptionUnhealthy,
			ProbeLatency: time.Since(start),
			Detail:       fmt.Sprintf("open failed: %v", err),
		}, nil
	}
	if !bytes.Equal(plaintext, opened) {
		return model.EncryptionHealth{
			Status:       model.EncryptionUnhealthy,
			ProbeLatency: time.Since(start),
			Detail:       "round trip produced different plaintext",
		}, nil
	}

	latency := time.Since(start)
	if detail, loose := p.loosePermissions(); loose {
		return model.EncryptionHealth{
			Status:       model.EncryptionDegraded,
			ProbeLatency: latency,
			Detail:       detail,
		}, nil
	}
	if latency > slowProbeThreshold {
		return model.EncryptionHealth{
			Status:       model.EncryptionDegraded,
			ProbeLatency: latency,
			Detail:       fmt.Sprintf("probe took %s", latency),
		}, nil
	}
	return model.EncryptionHealth{Status: model.EncryptionHealthy, ProbeLatency: latency}, nil
}

// loosePermissions reports whether the keyfile is readable by group or
// other. File modes are not meaningful on Windows.
func (p *Prober) loosePermissions() (string, bool) {
	if runtime.GOOS == "windows" {
		return "", false
	}
	info, err := os.Stat(p.keyPath)
	if err != nil {
		return "", false
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return fmt.Sprintf("keyfile permissions %04o are too permissive", perm), true
	}
	return "", false
}
