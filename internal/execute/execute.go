// Package execute is the execute stage (component C10): runs the
// submission under the isolate-wrapped sandbox for each test case, in
// declared order, and decides the per-case verdict by either invoking the
// grader or diffing against the expected output. Grounded on
// original_source/treadmill/tasks/judge.py's JudgeTestSetTask/JudgeTask
// and judge_service/internal/sandbox/worker.go's per-case
// run-then-check loop.
package execute

import (
	"bytes"
	"encoding/base64"
	"path/filepath"
	"strconv"
	"strings"

	"treadmill/internal/afp"
	"treadmill/internal/model"
	"treadmill/internal/sandbox"
	"treadmill/internal/task"
	"treadmill/internal/task/ops"
	"treadmill/pkg/errors"

	"github.com/klauspost/compress/gzip"
)

// sandboxEnvironAdapter adapts sandbox.SandboxEnviron's
// (context.Context, hostPath) Setup/Teardown into task.Environ.
type sandboxEnvironAdapter struct {
	name          string
	s             *sandbox.SandboxEnviron
	workspaceHost string
}

func (e sandboxEnvironAdapter) Name() string { return e.name }
func (e sandboxEnvironAdapter) Setup(rc *task.Context) error {
	return e.s.Setup(rc.Ctx(), e.workspaceHost)
}
func (e sandboxEnvironAdapter) Teardown(rc *task.Context) error {
	return e.s.Teardown(rc.Ctx())
}

// excerptThreshold is the size above which a captured stderr/stdout
// excerpt is gzip-compressed before being attached to an error's details,
// keeping oversized artifacts out of the plain-text error message the
// front-office stores.
const excerptThreshold = 8 * 1024

// Stage opens the submission sandbox (isolated) and, when a grader
// exists, the grader sandbox (non-isolated) together — teardown of both
// is guaranteed by nested task.WithEnviron scopes — then judges every
// test set in declared order (spec §4.9).
func Stage(rc *task.Context, roots afp.Roots) error {
	return task.RunVoid(rc, "JudgeStage", func(rc *task.Context) error {
		jc := rc.JudgeCtx
		workspaceHost := afp.WorkspaceRoot(roots, jc.Request.ID).HostPath()

		submSb, err := sandbox.NewSandboxEnviron(jc.Container, jc.SubmLang, true)
		if err != nil {
			return err
		}
		submEnv := sandboxEnvironAdapter{name: "SubmSandboxEnviron", s: submSb, workspaceHost: workspaceHost}

		return task.WithEnviron(rc, submEnv, func(rc *task.Context) error {
			if jc.Grader == nil {
				return judgeAllSets(rc, roots, submSb, nil)
			}
			graderSb, err := sandbox.NewSandboxEnviron(jc.Container, jc.GraderLang, false)
			if err != nil {
				return err
			}
			graderEnv := sandboxEnvironAdapter{name: "GraderSandboxEnviron", s: graderSb, workspaceHost: workspaceHost}
			return task.WithEnviron(rc, graderEnv, func(rc *task.Context) error {
				return judgeAllSets(rc, roots, submSb, graderSb)
			})
		})
	})
}

// judgeAllSets runs every test set in declared order. Per spec §4.9's
// short-circuit rule, the first non-pass outcome in a set stops judging
// the rest of that set (its score is 0, remaining cases stay NOT_JUDGED);
// the next set still runs regardless.
func judgeAllSets(rc *task.Context, roots afp.Roots, submSb, graderSb *sandbox.SandboxEnviron) error {
	jc := rc.JudgeCtx
	for _, set := range jc.Spec.TestSets {
		setPassed := true
		for _, c := range set.Cases {
			if !setPassed {
				break
			}
			status, memBytes, timeSeconds, errMsg, err := judgeOneCase(rc, roots, submSb, graderSb, set.ID, c)
			if err != nil {
				return err
			}
			if uErr := ops.UpdateTestCaseResult(rc, set.ID, c.ID, status, memBytes, timeSeconds, errMsg); uErr != nil {
				return uErr
			}
			if status != model.CasePassed {
				setPassed = false
			}
		}
		score := 0
		if setPassed {
			score = set.Score
		}
		if err := ops.UpdateTestSetResult(rc, set.ID, score); err != nil {
			return err
		}
	}
	return nil
}

// judgeOneCase runs one test case to a terminal (status, memory, time,
// errMessage) outcome, or returns a non-nil error for the server-fault
// cases the outcome table leaves as "NOT_JUDGED + re-raise" (a fatal
// isolate failure, or a grader/comparison fault).
func judgeOneCase(rc *task.Context, roots afp.Roots, submSb, graderSb *sandbox.SandboxEnviron, setID int, c model.TestCase) (model.TestCaseStatus, int64, float64, string, error) {
	jc := rc.JudgeCtx
	reqID := jc.Request.ID
	runID := runFileStem(setID, c.ID)

	bin := afp.SubmissionBinary(roots, reqID, jc.SubmLang.BinName)
	stdin := afp.TestInput(roots, reqID, setID, c.InputKey)
	stdout := afp.SandboxLogFile(roots, reqID, runID+"-stdout")
	stderr := afp.SandboxLogFile(roots, reqID, runID+"-stderr")
	meta := afp.SandboxLogFile(roots, reqID, runID+"-meta")
	expected := afp.TestExpectedOutput(roots, reqID, setID, c.OutputKey)

	params := sandbox.ExecSubmParams{
		Bin:    bin,
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		Meta:   meta,
		Limits: sandbox.LimitsFromSpec(jc.Spec),
	}
	if jc.SubmLang.Lang == model.LangPython3 {
		params.EtcContainerDir = filepath.Dir(afp.EtcPasswd(roots, reqID).ContainerPath())
	}

	exitCode, _, err := submSb.ExecSubm(rc.Ctx(), params)
	if err != nil {
		// Fatal isolate failure (exit >= 2): IsolateExecutionError, a
		// server fault that leaves this and every remaining case in
		// this run NOT_JUDGED and propagates for the pipeline's
		// INTERNAL_ERROR/retry handling.
		return "", 0, 0, "", err
	}

	metaText, err := ops.ReadFile(rc, meta)
	if err != nil {
		return "", 0, 0, "", err
	}
	m := model.ParseIsolateExecMeta(metaText)

	var memBytes int64
	if m.CgMemBytes != nil {
		memBytes = *m.CgMemBytes
	}
	var timeSeconds float64
	if m.Time != nil {
		timeSeconds = *m.Time
	}

	// OOM is checked before wall-time, per spec §9 open question 1's
	// resolution: a mis-mapped source branch sometimes reports TLE for
	// what was really an OOM kill.
	if memBytes >= jc.Spec.MemLimitBytes && exitCode == 1 {
		return model.CaseMemoryLimitExceed, memBytes, timeSeconds, "", nil
	}
	if m.TimeWall != nil && *m.TimeWall > jc.Spec.TimeLimitSeconds {
		return model.CaseTimeLimitExceeded, memBytes, timeSeconds, "", nil
	}
	if exitCode != 0 {
		excerpt := captureExcerpt(rc, stdout, stderr)
		return model.CaseRuntimeError, memBytes, timeSeconds, excerpt, nil
	}

	if jc.Grader != nil {
		verdict, err := runGrader(rc, roots, graderSb, setID, c, stdin, stdout, expected)
		if err != nil {
			return "", 0, 0, "", err
		}
		if verdict {
			return model.CasePassed, memBytes, timeSeconds, "", nil
		}
		return model.CaseWrongAnswer, memBytes, timeSeconds, "", nil
	}

	equal, err := ops.CompareFile(rc, stdout, expected)
	if err != nil {
		return "", 0, 0, "", err
	}
	if equal {
		return model.CasePassed, memBytes, timeSeconds, "", nil
	}
	return model.CaseWrongAnswer, memBytes, timeSeconds, "", nil
}

// runGrader executes the grader non-isolated and reports whether its
// stdout, trimmed of trailing whitespace, is exactly "1".
func runGrader(rc *task.Context, roots afp.Roots, graderSb *sandbox.SandboxEnviron, setID int, c model.TestCase, stdin, submStdout, expected afp.AFP) (bool, error) {
	jc := rc.JudgeCtx
	reqID := jc.Request.ID
	runID := runFileStem(setID, c.ID)

	gbin := afp.GraderBinary(roots, reqID, jc.GraderLang.BinName)
	gstdout := afp.SandboxLogFile(roots, reqID, runID+"-grader-stdout")

	exitCode, err := graderSb.ExecGrader(rc.Ctx(), sandbox.GraderParams{
		Bin:            gbin,
		TestInput:      stdin,
		SubmOutput:     submStdout,
		ExpectedOutput: expected,
		Stdout:         gstdout,
	})
	if err != nil {
		return false, err
	}
	if exitCode != 0 {
		return false, errors.Newf(errors.GraderRuntimeError, "grader exited %d", exitCode).WithTaskStack(rc.Stack())
	}

	verdict, err := ops.ReadFile(rc, gstdout)
	if err != nil {
		return false, err
	}
	return strings.TrimRight(verdict, " \t\r\n") == "1", nil
}

func runFileStem(setID, caseID int) string {
	return strconv.Itoa(setID) + "-" + strconv.Itoa(caseID)
}

// captureExcerpt reads stdout/stderr for a runtime-error report, gzipping
// and base64-encoding the combined text when it exceeds excerptThreshold
// so an oversized artifact doesn't bloat the plain-text error message.
func captureExcerpt(rc *task.Context, stdout, stderr afp.AFP) string {
	outText, _ := ops.ReadFile(rc, stdout)
	errText, _ := ops.ReadFile(rc, stderr)
	combined := "stdout:\n" + outText + "\nstderr:\n" + errText
	if len(combined) <= excerptThreshold {
		return combined
	}

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(combined)); err != nil {
		return combined[:excerptThreshold]
	}
	if err := w.Close(); err != nil {
		return combined[:excerptThreshold]
	}
	return "gzip+base64:" + base64.StdEncoding.EncodeToString(buf.Bytes())
}
