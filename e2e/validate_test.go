package e2e_test

import (
	"strings"
	"testing"
)

func TestValidateMissingPrereqs(t *testing.T) {
	e := newTestEnv(t)

	// Empty backup store, dead control plane, no webhook.
	stdout, _, code := e.runRecoverd("validate")
	if code != 1 {
		t.Fatalf("validate exited %d, want 1", code)
	}
	if !strings.Contains(stdout, "[FAIL] backup:last-known-good") {
		t.Errorf("expected backup check failure:\n%s", stdout)
	}
	if !strings.Contains(stdout, "[FAIL] cluster:reachable") {
		t.Errorf("expected cluster check failure:\n%s", stdout)
	}
	if !strings.Contains(stdout, "SOME FAILED") {
		t.Errorf("expected aggregate failure:\n%s", stdout)
	}
}

func TestValidateSeededBackupsPass(t *testing.T) {
	e := newTestEnv(t)
	e.seedBackups()

	stdout, _, code := e.runRecoverd("validate")
	// The control plane is still dead, so the aggregate fails, but the
	// backup check must pass against the seeded store.
	if code != 1 {
		t.Fatalf("validate exited %d, want 1", code)
	}
	if !strings.Contains(stdout, "[PASS] backup:last-known-good") {
		t.Errorf("expected backup check pass:\n%s", stdout)
	}
	if !strings.Contains(stdout, "v2.3.0") {
		t.Errorf("expected verified release tag in output:\n%s", stdout)
	}
}

func TestValidateJSON(t *testing.T) {
	e := newTestEnv(t)

	stdout, _, code := e.runRecoverd("validate", "--json")
	if code != 1 {
		t.Fatalf("validate exited %d, want 1", code)
	}
	if !strings.Contains(stdout, `"all_passed": false`) {
		t.Errorf("expected JSON output:\n%s", stdout)
	}
}
