// Copyright (c) 2026 Wardstone Team
// Wardstone - security posture monitoring engine
// This source code is licensed under the MIT license found in the LICENSE file.
package sshkey

import "testing"

func TestParse_NormalLine(t *testing.T) {
	line := "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIBk deploy@ci"
	alg, key, comment, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if alg != "ssh-ed25519" {
		t.Fatalf("unexpected alg: %s", alg)
	}
	if key != "AAAAC3NzaC1lZDI1NTE5AAAAIBk" {
		t.Fatalf("unexpected key data: %s", key)
	}
	if comment != "deploy@ci" {
		t.Fatalf("unexpected comment: %s", comment)
	}
}

func TestParse_WithOptions(t *testing.T) {
	line := "no-agent-forwarding,command=\"echo hi\" ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIBk comment here"
	alg, key, comment, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if alg != "ssh-ed25519" {
		t.Fatalf("unexpected alg: %s", alg)
	}
	if key == "" {
		t.Fatalf("empty key data")
	}
	if comment != "comment here" {
		t.Fatalf("unexpected comment: %s", comment)
	}
}

func TestParse_SecurityKeyAlgorithm(t *testing.T) {
	line := "sk-ssh-ed25519@openssh.com AAAASk data"
	alg, _, _, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if alg != "sk-ssh-ed25519@openssh.com" {
		t.Fatalf("unexpected alg: %s", alg)
	}
}

func TestParse_Errors(t *testing.T) {
	if _, _, _, err := Parse(""); err == nil {
		t.Fatalf("expected error for empty line")
	}
	if _, _, _, err := Parse("just-some-text"); err == nil {
		t.Fatalf("expected error for no key algorithm")
	}
	if _, _, _, err := Parse("ssh-ed25519"); err == nil {
		t.Fatalf("expected error for missing key data")
	}
}
