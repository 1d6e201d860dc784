// Package afp implements the Abstract File Path: one file expressed in the
// three coordinate systems that host, container, and sandbox each need,
// plus its optional object-store source. Grounded on
// original_source/treadmill/tasks/path.py's AFP class, reshaped per spec
// §9's "ambient JudgeContext via thread-local" redesign flag: every
// constructor takes its Roots/request id explicitly instead of reading
// them off a thread-local context.
package afp

import (
	"path"
	"path/filepath"
	"strconv"
)

const (
	// containerRoot is where a running container sees the bind-mounted
	// workspace (spec §4.1).
	containerRoot = "/workspace"
	// sandboxRoot is where the isolated process sees its own files after
	// isolate's --dir remap.
	sandboxRoot = "/sandbox"
	// sandboxPrefix is the path segment inserted into the host/container
	// view for sandbox-visible files; equivalent to
	// os.path.relpath(sandboxRoot, "/") in the original.
	sandboxPrefix = "sandbox"
)

// Roots carries the environment-pinned mount points the AFP coordinate
// system is rooted at: TM_HOST_WORKSPACE_ROOT and TM_S3FS_ROOT (spec §6).
type Roots struct {
	HostWorkspaceRoot string
	S3FSRoot          string
}

// AFP is an immutable path-triple plus optional object-store source path.
// Build one with New or one of the named constructors below; AFP values
// are small and cheap to pass by value.
type AFP struct {
	roots          Roots
	requestID      int64
	segments       []string
	sandboxVisible bool
	s3fsSegments   []string // nil when the AFP has no object-store source
}

// New builds an AFP rooted at roots for requestID. sandboxVisible controls
// whether the "sandbox/" prefix segment is inserted into the host and
// container views.
func New(roots Roots, requestID int64, sandboxVisible bool, segments ...string) AFP {
	return AFP{
		roots:          roots,
		requestID:      requestID,
		segments:       append([]string(nil), segments...),
		sandboxVisible: sandboxVisible,
	}
}

// WithS3FS returns a copy of a carrying an object-store source path,
// relative to TM_S3FS_ROOT.
func (a AFP) WithS3FS(segments ...string) AFP {
	a.s3fsSegments = append([]string(nil), segments...)
	return a
}

// SandboxVisible reports whether this AFP inserts the sandbox/ prefix.
func (a AFP) SandboxVisible() bool {
	return a.sandboxVisible
}

// HostPath is the real filesystem path on the machine running containers:
// <HOST_WORKSPACE_ROOT>/<request-id>[/sandbox]/<segments...>.
func (a AFP) HostPath() string {
	parts := []string{a.roots.HostWorkspaceRoot, strconv.FormatInt(a.requestID, 10)}
	if a.sandboxVisible {
		parts = append(parts, sandboxPrefix)
	}
	parts = append(parts, a.segments...)
	return filepath.Join(parts...)
}

// S3FSPath is the object-store key surfaced as a file under TM_S3FS_ROOT,
// and ok is false when the AFP carries no object-store source.
func (a AFP) S3FSPath() (p string, ok bool) {
	if a.s3fsSegments == nil {
		return "", false
	}
	parts := append([]string{a.roots.S3FSRoot}, a.s3fsSegments...)
	return filepath.Join(parts...), true
}

// ObjectKey returns the object-store key an AFP's source resolves to,
// relative to TM_S3FS_ROOT — the same key a MinIO fallback fetch addresses
// when the TM_S3FS_ROOT mount doesn't have it (spec §6). ok is false when
// the AFP carries no object-store source.
func (a AFP) ObjectKey() (key string, ok bool) {
	if a.s3fsSegments == nil {
		return "", false
	}
	return path.Join(a.s3fsSegments...), true
}

// ContainerPath is what the running container sees:
// /workspace[/sandbox]/<segments...>.
func (a AFP) ContainerPath() string {
	parts := []string{containerRoot}
	if a.sandboxVisible {
		parts = append(parts, sandboxPrefix)
	}
	parts = append(parts, a.segments...)
	return filepath.Join(parts...)
}

// SandboxPath is what the isolated process sees after isolate's --dir
// remap: /sandbox/<segments...>. Only meaningful when SandboxVisible.
func (a AFP) SandboxPath() string {
	parts := append([]string{sandboxRoot}, a.segments...)
	return filepath.Join(parts...)
}

// WorkspaceRoot is the per-request workspace directory itself, used by
// internal/workspace to create and tear down the tree.
func WorkspaceRoot(roots Roots, requestID int64) AFP {
	return New(roots, requestID, false)
}

// SandboxRoot is the sandbox-visible subtree of the workspace, bind-mounted
// into the sandbox container as /sandbox.
func SandboxRoot(roots Roots, requestID int64) AFP {
	return New(roots, requestID, true)
}

// SubmissionSource is the submission's source file, staged from srcKey at
// sandbox/subm/<srcName> (spec §4.7 step 2).
func SubmissionSource(roots Roots, requestID int64, srcName, srcKey string) AFP {
	return New(roots, requestID, true, "subm", srcName).WithS3FS(srcKey)
}

// SubmissionBinary is the submission's compiled (or, for no-compile
// languages, raw) artifact at sandbox/subm/<binName>.
func SubmissionBinary(roots Roots, requestID int64, binName string) AFP {
	return New(roots, requestID, true, "subm", binName)
}

// GraderSource is the grader's source file, staged from srcKey at
// sandbox/grader/<srcName> (spec §4.7 step 4).
func GraderSource(roots Roots, requestID int64, srcName, srcKey string) AFP {
	return New(roots, requestID, true, "grader", srcName).WithS3FS(srcKey)
}

// GraderBinary is the grader's compiled artifact at sandbox/grader/<binName>.
func GraderBinary(roots Roots, requestID int64, binName string) AFP {
	return New(roots, requestID, true, "grader", binName)
}

// TestInput is a test case's input file, staged from inputKey at
// sandbox/data/<setID>/<basename(inputKey)> (spec §4.7 step 3).
func TestInput(roots Roots, requestID int64, setID int, inputKey string) AFP {
	return New(roots, requestID, true, "data", strconv.Itoa(setID), path.Base(inputKey)).
		WithS3FS(inputKey)
}

// TestExpectedOutput is a test case's expected-output file, staged from
// outputKey at data/<setID>/<basename(outputKey)>. It is deliberately
// **not** sandbox-visible: a grader reads it via the container path only,
// never via the contestant's sandboxed process (spec §4.1, §4.7 step 3).
func TestExpectedOutput(roots Roots, requestID int64, setID int, outputKey string) AFP {
	return New(roots, requestID, false, "data", strconv.Itoa(setID), path.Base(outputKey)).
		WithS3FS(outputKey)
}

// EtcPasswd is the minimal /etc/passwd stub python3 sandboxes need,
// bind-mounted read-only at container /etc (spec §4.7 step 5). It lives
// outside the sandbox-visible subtree since it is mounted as its own
// --dir, not reached through /sandbox.
func EtcPasswd(roots Roots, requestID int64) AFP {
	return New(roots, requestID, false, "etc", "passwd")
}

// SandboxLogFile names a per-run stdout/stderr/meta file under
// sandbox/logs/, sandbox-visible so isolate's --stdin/--stdout/--stderr can
// address it, with name typically a fresh UUID per execution.
func SandboxLogFile(roots Roots, requestID int64, name string) AFP {
	return New(roots, requestID, true, "logs", name)
}
