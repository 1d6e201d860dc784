package container_test

import (
	"testing"

	"treadmill/internal/container"
)

// Kill is documented as idempotent on an empty container id; this must hold
// even before a Driver has a live Docker client, so a nil *Driver is safe.
func TestKill_EmptyContainerIDIsNoopOnNilDriver(t *testing.T) {
	var d *container.Driver
	if err := d.Kill(t.Context(), ""); err != nil {
		t.Errorf("Kill(\"\") = %v, want nil", err)
	}
}

func TestRunOptions_PrivilegedIsCarriedVerbatim(t *testing.T) {
	opts := container.RunOptions{
		Image:             "treadmill/sandbox-cpp:1",
		WorkspaceHostPath: "/var/treadmill/workspace/req-1",
		Privileged:        true,
	}
	if !opts.Privileged {
		t.Errorf("Privileged = %v, want true", opts.Privileged)
	}
}

// Remaining behavior (Run/Exec against a live daemon) is integration-level
// and exercised by the sandbox package's own tests against a real or faked
// container.Driver seam, not here: the Docker Engine SDK has no in-process
// fake to unit test Run/Exec against.
