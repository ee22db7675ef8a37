// Package testutil starts throwaway backend containers for integration tests.
//
// Each backend is started once per test binary. Tests are skipped when run
// with -short or when no container runtime is available.
package testutil

import (
	"testing"
)

func skipIfShort(t *testing.T, backend string) {
	t.Helper()
	if testing.Short() {
		t.Skipf("skipping %s integration test in -short mode", backend)
	}
}

func skipIfFailed(t *testing.T, backend string, err error) {
	t.Helper()
	if err != nil {
		t.Skipf("%s container unavailable: %v", backend, err)
	}
}
