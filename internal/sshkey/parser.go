// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.

// Package sshkey parses public key lines in the authorized_keys format so
// they can be taken into the tracked credential inventory.
package sshkey

import (
	"fmt"
	"strings"
)

// keyAlgorithmPrefixes are the field prefixes that mark the start of the
// actual key material within a line that may carry leading options.
var keyAlgorithmPrefixes = []string{"ssh-", "ecdsa-", "sk-"}

// Parse splits a raw public key line into its algorithm, base64 key data and
// comment. Leading options (e.g. from="...",command="...") are skipped. The
// key data is not validated here; whether it actually parses as a public key
// is the credential auditor's concern.
func Parse(rawKey string) (algorithm, keyData, comment string, err error) {
	fields := strings.Fields(rawKey)
	if len(fields) == 0 {
		return "", "", "", fmt.Errorf("empty line")
	}

	start := -1
	for i, field := range fields {
		if isKeyAlgorithm(field) {
			start = i
			break
		}
	}
	if start == -1 {
		return "", "", "", fmt.Errorf("no SSH key algorithm found in line")
	}
	if len(fields) < start+2 {
		return "", "", "", fmt.Errorf("missing key data after algorithm %q", fields[start])
	}

	algorithm = fields[start]
	keyData = fields[start+1]
	if len(fields) > start+2 {
		comment = strings.Join(fields[start+2:], " ")
	}
	return algorithm, keyData, comment, nil
}

// isKeyAlgorithm reports whether a field names a public key algorithm.
func isKeyAlgorithm(field string) bool {
	for _, prefix := range keyAlgorithmPrefixes {
		if strings.HasPrefix(field, prefix) {
			return true
		}
	}
	return false
}
