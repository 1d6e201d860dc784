// Package sandbox is the isolate CLI wrapper (component C5): it turns the
// builder and sandbox environs' setup/teardown/exec contracts (spec §4.5,
// §4.6) into Docker exec calls against internal/container.Driver. Grounded
// on original_source/treadmill/tasks/container.py's BuildContext and
// SandboxContext, composed with the Docker Engine SDK driver instead of
// docker-py's exec_run, and on
// judge_service/internal/sandbox/runner/default_runner.go's buildCommand
// (template string -> github.com/google/shlex.Split -> argv) for turning
// the isolate command line into the argv internal/container.Driver.Exec
// expects.
package sandbox

import (
	"context"
	"fmt"
	"strings"

	"treadmill/internal/afp"
	"treadmill/internal/container"
	"treadmill/internal/model"
	"treadmill/pkg/errors"

	"github.com/google/shlex"
)

// Limits is the subset of model.JudgeSpec the sandbox environ needs to
// build an isolate command line.
type Limits struct {
	MemLimitBytes    int64
	TimeLimitSeconds float64
	FileSizeLimitKB  int64
	PIDLimit         int
}

// LimitsFromSpec extracts Limits from a problem's JudgeSpec.
func LimitsFromSpec(spec model.JudgeSpec) Limits {
	return Limits{
		MemLimitBytes:    spec.MemLimitBytes,
		TimeLimitSeconds: spec.TimeLimitSeconds,
		FileSizeLimitKB:  spec.FileSizeLimitKB,
		PIDLimit:         spec.PIDLimit,
	}
}

// BuilderEnviron is the setup/teardown/compile environ of spec §4.5: a
// non-privileged container running a builder image, exposing compile.
type BuilderEnviron struct {
	driver      *container.Driver
	lang        model.LanguageProfile
	containerID string
}

// NewBuilderEnviron validates lang has a configured builder image before
// setup, since an unconfigured image is a config error, not a runtime one.
func NewBuilderEnviron(driver *container.Driver, lang model.LanguageProfile) (*BuilderEnviron, error) {
	if lang.BuilderImage == "" {
		return nil, errors.New(errors.UnsupportedLanguage).WithMessagef("no builder image configured for %s", lang.Lang)
	}
	return &BuilderEnviron{driver: driver, lang: lang}, nil
}

// Setup runs the builder container with workspaceHostPath bind-mounted.
func (b *BuilderEnviron) Setup(ctx context.Context, workspaceHostPath string) error {
	id, err := b.driver.Run(ctx, container.RunOptions{
		Image:             b.lang.BuilderImage,
		WorkspaceHostPath: workspaceHostPath,
		Privileged:        false,
	})
	if err != nil {
		return err
	}
	b.containerID = id
	return nil
}

// Teardown kills the builder container if alive. Safe to call more than
// once and safe to call after a failed Setup (spec §4.3's guaranteed
// teardown contract).
func (b *BuilderEnviron) Teardown(ctx context.Context) error {
	return b.driver.Kill(ctx, b.containerID)
}

// Compile runs lang's compile command against src, producing out. Returns
// (0, nil, nil) for languages that need no compile step (spec §4.5: python3
// is a no-op).
func (b *BuilderEnviron) Compile(ctx context.Context, src, out afp.AFP) (exitCode int, output []byte, err error) {
	if b.lang.CompileCmd == nil {
		return 0, nil, nil
	}
	argv := b.lang.CompileCmd(src.ContainerPath(), out.ContainerPath())
	return b.driver.Exec(ctx, b.containerID, argv)
}

// SandboxEnviron is spec §4.6's setup/teardown/exec environ: runs a
// sandbox image container, privileged iff isolated, and exposes the two
// exec entry points (exec_subm, exec_grader) with different contracts.
type SandboxEnviron struct {
	driver      *container.Driver
	lang        model.LanguageProfile
	isolated    bool
	containerID string
}

// NewSandboxEnviron validates lang has a configured sandbox image.
func NewSandboxEnviron(driver *container.Driver, lang model.LanguageProfile, isolated bool) (*SandboxEnviron, error) {
	if lang.SandboxImage == "" {
		return nil, errors.New(errors.UnsupportedLanguage).WithMessagef("no sandbox image configured for %s", lang.Lang)
	}
	return &SandboxEnviron{driver: driver, lang: lang, isolated: isolated}, nil
}

// Setup runs the sandbox container and, when isolated, initializes isolate,
// raising IsolateInitFail on a nonzero exit (spec §4.6).
func (s *SandboxEnviron) Setup(ctx context.Context, workspaceHostPath string) error {
	id, err := s.driver.Run(ctx, container.RunOptions{
		Image:             s.lang.SandboxImage,
		WorkspaceHostPath: workspaceHostPath,
		Privileged:        s.isolated,
	})
	if err != nil {
		return err
	}
	s.containerID = id

	if !s.isolated {
		return nil
	}
	exitCode, output, err := s.driver.Exec(ctx, id, []string{"isolate", "--cg", "--init"})
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return errors.Newf(errors.IsolateInitFail, "isolate --cg --init exited %d: %s", exitCode, output)
	}
	return nil
}

// Teardown kills the sandbox container if alive.
func (s *SandboxEnviron) Teardown(ctx context.Context) error {
	return s.driver.Kill(ctx, s.containerID)
}

// ExecSubmParams carries the AFPs an isolated run needs. Stdin/Stdout/Stderr
// and Bin are addressed by their sandbox view (what the isolated process
// sees); Meta is addressed by its container view, since the meta file must
// stay invisible to the contestant's process (spec §4.6).
type ExecSubmParams struct {
	Bin    afp.AFP
	Stdin  afp.AFP
	Stdout afp.AFP
	Stderr afp.AFP
	Meta   afp.AFP
	Limits Limits
	// EtcContainerDir is the container-view directory holding the
	// python3 /etc/passwd stub, e.g. "/workspace/1234/etc". Empty for
	// every language but python3 (spec §4.7 step 5).
	EtcContainerDir string
}

// ExecSubm runs the submission binary under isolate, per spec §4.6's exact
// command-line template. It returns the raw isolate exit code and combined
// output; a fatal isolate failure (exit >= 2) is reported as
// IsolateExecutionError. Interpreting the meta file and any non-fatal
// nonzero exit is the execute stage's job (spec §4.9), not this package's.
func (s *SandboxEnviron) ExecSubm(ctx context.Context, p ExecSubmParams) (exitCode int, output []byte, err error) {
	if !s.isolated {
		return 0, nil, errors.New(errors.JudgeSystemError).WithMessage("ExecSubm requires an isolated sandbox")
	}

	argv, err := buildExecSubmArgv(s.lang, p)
	if err != nil {
		return 0, nil, err
	}

	exitCode, output, err = s.driver.Exec(ctx, s.containerID, argv)
	if err != nil {
		return 0, nil, err
	}
	if exitCode >= 2 {
		return exitCode, output, errors.Newf(errors.IsolateExecutionError, "isolate fatal exit %d: %s", exitCode, output)
	}
	return exitCode, output, nil
}

// buildExecSubmArgv renders spec §4.6's isolate command-line template for
// lang/p into argv, the same template-string-then-shlex.Split shape
// judge_service/internal/sandbox/runner/default_runner.go's buildCommand
// uses. Split out from ExecSubm so the command line itself is unit
// testable without a Docker daemon.
func buildExecSubmArgv(lang model.LanguageProfile, p ExecSubmParams) ([]string, error) {
	n := p.Limits.PIDLimit
	if lang.MinProcesses > n {
		n = lang.MinProcesses
	}
	cgMemKB := (p.Limits.MemLimitBytes / 1024) * 2
	wallTime := p.Limits.TimeLimitSeconds * 3

	var line strings.Builder
	line.WriteString("isolate --dir=/sandbox=/workspace/sandbox:rw ")
	if p.EtcContainerDir != "" {
		fmt.Fprintf(&line, "--dir=/etc=%s:rw ", p.EtcContainerDir)
	}
	fmt.Fprintf(&line, "--cg --meta=%s --cg-mem=%d ", p.Meta.ContainerPath(), cgMemKB)
	fmt.Fprintf(&line, "--time=%g --wall-time=%g --extra-time=1.0 ", p.Limits.TimeLimitSeconds, wallTime)
	fmt.Fprintf(&line, "--fsize=%d --processes=%d ", p.Limits.FileSizeLimitKB, n)
	fmt.Fprintf(&line, "--stdin=%s --stdout=%s --stderr=%s ", p.Stdin.SandboxPath(), p.Stdout.SandboxPath(), p.Stderr.SandboxPath())
	line.WriteString("--run -- ")
	line.WriteString(strings.Join(lang.ExecCmd(p.Bin.SandboxPath()), " "))

	argv, err := shlex.Split(line.String())
	if err != nil {
		return nil, errors.Wrap(err, errors.JudgeSystemError).WithMessage("parse isolate command line")
	}
	return argv, nil
}

// GraderParams carries the AFPs a non-isolated grader run needs, all
// addressed by their container view (spec §4.6: exec_grader is not
// isolated, so there is no sandbox view to speak of).
type GraderParams struct {
	Bin            afp.AFP
	TestInput      afp.AFP
	SubmOutput     afp.AFP
	ExpectedOutput afp.AFP
	Stdout         afp.AFP
}

// ExecGrader runs the grader binary, non-isolated, with the three
// positional file arguments and stdout redirected to a staging file (spec
// §4.6). The grader's own stdout ("1" or "0") is read back from p.Stdout by
// the caller.
func (s *SandboxEnviron) ExecGrader(ctx context.Context, p GraderParams) (exitCode int, err error) {
	if s.isolated {
		return 0, errors.New(errors.JudgeSystemError).WithMessage("ExecGrader requires a non-isolated sandbox")
	}
	argv := append([]string{}, s.lang.ExecCmd(p.Bin.ContainerPath())...)
	argv = append(argv,
		p.TestInput.ContainerPath(),
		p.SubmOutput.ContainerPath(),
		p.ExpectedOutput.ContainerPath(),
		"1>", p.Stdout.ContainerPath(),
	)
	exitCode, _, err = s.driver.Exec(ctx, s.containerID, argv)
	return exitCode, err
}
