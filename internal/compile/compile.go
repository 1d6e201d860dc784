// Package compile is the compile stage (component C9): builds the
// submission and, when needed, the grader, reusing one builder container
// when both share a language. Grounded on
// original_source/treadmill/tasks/stage.py's CompileStage.
package compile

import (
	"treadmill/internal/afp"
	"treadmill/internal/sandbox"
	"treadmill/internal/task"
	"treadmill/pkg/errors"
)

// builderEnviron adapts sandbox.BuilderEnviron's (context.Context,
// hostPath) Setup/Teardown signature into task.Environ.
type builderEnviron struct {
	b             *sandbox.BuilderEnviron
	workspaceHost string
}

func (e builderEnviron) Name() string { return "BuilderEnviron" }
func (e builderEnviron) Setup(rc *task.Context) error {
	return e.b.Setup(rc.Ctx(), e.workspaceHost)
}
func (e builderEnviron) Teardown(rc *task.Context) error {
	return e.b.Teardown(rc.Ctx())
}

// Stage runs spec §4.8's compile logic against the active JudgeContext:
// compile the submission if its language needs it; if a grader exists and
// shares the submission's language, compile it in the same builder and
// stop. Otherwise, if the grader's own language needs a separate compile,
// open a second builder for it.
func Stage(rc *task.Context, roots afp.Roots) error {
	return task.RunVoid(rc, "CompileStage", func(rc *task.Context) error {
		jc := rc.JudgeCtx
		reqID := jc.Request.ID
		workspaceHost := afp.WorkspaceRoot(roots, reqID).HostPath()
		graderCompiledWithSubm := false

		if jc.SubmLang.NeedsCompile {
			b, err := sandbox.NewBuilderEnviron(jc.Container, jc.SubmLang)
			if err != nil {
				return err
			}
			env := builderEnviron{b: b, workspaceHost: workspaceHost}
			err = task.WithEnviron(rc, env, func(rc *task.Context) error {
				src := afp.SubmissionSource(roots, reqID, jc.SubmLang.SrcName, jc.Submission.SrcKey)
				out := afp.SubmissionBinary(roots, reqID, jc.SubmLang.BinName)
				exitCode, output, cerr := b.Compile(rc.Ctx(), src, out)
				if cerr != nil {
					return cerr
				}
				if exitCode != 0 {
					return errors.Newf(errors.SubmissionCompileError, "submission failed to compile (exit %d): %s", exitCode, output).WithTaskStack(rc.Stack())
				}

				if jc.Grader != nil && jc.GraderLang.Lang == jc.SubmLang.Lang {
					gsrc := afp.GraderSource(roots, reqID, jc.GraderLang.SrcName, jc.Grader.SrcKey)
					gout := afp.GraderBinary(roots, reqID, jc.GraderLang.BinName)
					gExit, gOut, gerr := b.Compile(rc.Ctx(), gsrc, gout)
					if gerr != nil {
						return gerr
					}
					if gExit != 0 {
						return errors.Newf(errors.GraderCompileError, "grader failed to compile (exit %d): %s", gExit, gOut).WithTaskStack(rc.Stack())
					}
					graderCompiledWithSubm = true
				}
				return nil
			})
			if err != nil {
				return err
			}
		}

		if graderCompiledWithSubm {
			return nil
		}

		if jc.Grader != nil && jc.GraderLang.NeedsCompile {
			b, err := sandbox.NewBuilderEnviron(jc.Container, jc.GraderLang)
			if err != nil {
				return err
			}
			env := builderEnviron{b: b, workspaceHost: workspaceHost}
			return task.WithEnviron(rc, env, func(rc *task.Context) error {
				gsrc := afp.GraderSource(roots, reqID, jc.GraderLang.SrcName, jc.Grader.SrcKey)
				gout := afp.GraderBinary(roots, reqID, jc.GraderLang.BinName)
				exitCode, output, cerr := b.Compile(rc.Ctx(), gsrc, gout)
				if cerr != nil {
					return cerr
				}
				if exitCode != 0 {
					return errors.Newf(errors.GraderCompileError, "grader failed to compile (exit %d): %s", exitCode, output).WithTaskStack(rc.Stack())
				}
				return nil
			})
		}
		return nil
	})
}
