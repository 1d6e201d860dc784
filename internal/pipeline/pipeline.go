// Package pipeline is the end-to-end judge pipeline (component C11):
// fetch the submission, mark it in progress, stage and tear down the
// workspace around compile and execute, and map every failure to the
// taxonomy in spec §4.10/§7. Grounded on
// original_source/treadmill/tasks/pipeline.py's JudgePipeline
// try/except chain and judge_service/internal/sandbox/worker.go's
// Execute.
package pipeline

import (
	"strconv"

	"treadmill/internal/afp"
	"treadmill/internal/compile"
	"treadmill/internal/execute"
	"treadmill/internal/model"
	"treadmill/internal/task"
	"treadmill/internal/task/ops"
	"treadmill/internal/workspace"
	"treadmill/pkg/errors"
)

// Run drives one judge request to a terminal or retry outcome, mapping
// runInner's error (if any) per spec §4.10's try/except taxonomy. It
// never returns a *SubmissionCompileError or *InternalError-shaped
// failure to its own caller: a compile error is resolved into a patched
// COMPILE_ERROR result and nil; an InternalApiError is logged and
// returned so the worker layer lets the broker redeliver; anything else
// is logged, patched as INTERNAL_ERROR, and pushed onto the retry queue.
func Run(rc *task.Context, roots afp.Roots) error {
	return task.RunVoid(rc, "JudgePipeline", func(rc *task.Context) error {
		err := runInner(rc, roots)
		if err == nil {
			return nil
		}

		apperr := errors.GetError(err)
		switch apperr.Code {
		case errors.SubmissionCompileError:
			return ops.UpdateOverallResult(rc, model.StatusCompileError, apperr.Error())

		case errors.InternalApiError:
			logCurrentError(rc, apperr)
			return apperr

		default:
			logCurrentError(rc, apperr)
			if uErr := ops.UpdateOverallResult(rc, model.StatusInternalError, apperr.Error()); uErr != nil {
				return uErr
			}
			return ops.RetryLater(rc, apperr.TaskStack)
		}
	})
}

// runInner is the pipeline's happy-path body, one failure class away from
// Run's taxonomy mapping.
func runInner(rc *task.Context, roots afp.Roots) error {
	if err := ops.FetchSubmission(rc); err != nil {
		return err
	}
	if err := ops.UpdateOverallResult(rc, model.StatusInProgress, ""); err != nil {
		return err
	}

	ws := workspace.New(roots)
	return task.WithEnviron(rc, ws, func(rc *task.Context) error {
		if err := compile.Stage(rc, roots); err != nil {
			return err
		}
		if err := execute.Stage(rc, roots); err != nil {
			return err
		}

		jc := rc.JudgeCtx
		status := model.StatusFailed
		if jc.TotalScore == jc.Spec.TotalScore {
			status = model.StatusPassed
		}
		return ops.UpdateOverallResult(rc, status, "")
	})
}

// logCurrentError reports err to the active JudgeContext's telemetry
// client, mirroring original_source's JudgeContext.log_current_error.
func logCurrentError(rc *task.Context, err *errors.Error) {
	jc := rc.JudgeCtx
	if jc.Telemetry == nil {
		return
	}
	jc.Telemetry.CaptureException(rc.Ctx(), err, err.TaskStack, map[string]string{
		"request_id": strconv.FormatInt(jc.Request.ID, 10),
	})
}
