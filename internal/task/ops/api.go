package ops

import (
	"treadmill/internal/model"
	"treadmill/internal/task"
	"treadmill/pkg/errors"
)

// FetchSubmission loads the Submission named by the active JudgeContext's
// request into that context, resolving the submission/grader language
// profiles. Grounded on original_source's FetchSubmissionOp, which
// populates context.submission/judge_spec/grader/grader_lang from one API
// call.
func FetchSubmission(rc *task.Context) error {
	return task.RunVoid(rc, "FetchSubmission", func(rc *task.Context) error {
		jc := rc.JudgeCtx
		subm, err := jc.API.GetSubmissionDetail(rc.Ctx(), jc.Request.ProblemID, jc.Request.SubmissionID)
		if err != nil {
			return err
		}
		jc.Submission = subm
		jc.Spec = subm.Problem.Spec
		jc.Grader = subm.Problem.Spec.Grader

		lang, ok := model.Profile(jc.LangTable, subm.Lang)
		if !ok {
			return errors.Newf(errors.UnsupportedLanguage, "no language profile for %s", subm.Lang).WithTaskStack(rc.Stack())
		}
		jc.SubmLang = lang

		if jc.Grader != nil {
			graderLang, ok := model.Profile(jc.LangTable, jc.Grader.Lang)
			if !ok {
				return errors.Newf(errors.UnsupportedLanguage, "no language profile for grader %s", jc.Grader.Lang).WithTaskStack(rc.Stack())
			}
			jc.GraderLang = graderLang
		}
		return nil
	})
}

// UpdateOverallResult patches the run's overall status. Grounded on
// original_source's UpdateJudgeResultOp._update_judge_result, which reads
// the accumulated score/time/memory off the context rather than taking
// them as arguments. When the context carries a StatusCache, the patched
// result is also written through to it so a status-polling read never
// lags behind the last API patch.
func UpdateOverallResult(rc *task.Context, status model.JudgeStatus, errMsg string) error {
	return task.RunVoid(rc, "UpdateOverallResult", func(rc *task.Context) error {
		jc := rc.JudgeCtx
		result := model.JudgeResult{
			Status:             status,
			Error:              errMsg,
			Score:              jc.TotalScore,
			TimeElapsedSeconds: jc.TotalTimeSecond,
			MemoryUsedBytes:    jc.MaxRSSBytes,
		}
		if err := jc.API.PatchJudgeResult(rc.Ctx(), jc.Request.ID, result); err != nil {
			return err
		}
		if jc.StatusCache != nil {
			_ = jc.StatusCache.Put(rc.Ctx(), jc.Request.ID, result)
		}
		return nil
	})
}

// UpdateTestSetResult accumulates score into the JudgeContext and patches
// the per-set result (original_source's _update_testset_result).
func UpdateTestSetResult(rc *task.Context, setID, score int) error {
	return task.RunVoid(rc, "UpdateTestSetResult", func(rc *task.Context) error {
		jc := rc.JudgeCtx
		jc.TotalScore += score
		return jc.API.PatchTestSetResult(rc.Ctx(), jc.Request.ID, setID, model.TestSetJudgeResult{
			SetID: setID,
			Score: score,
		})
	})
}

// UpdateTestCaseResult accumulates time/memory into the JudgeContext when
// status is PASSED and patches the per-case result (original_source's
// _update_testcase_result: "if status == PASSED: total_time +=
// time; max_rss = max(max_rss, context.max_rss)").
func UpdateTestCaseResult(rc *task.Context, setID, caseID int, status model.TestCaseStatus, memBytes int64, timeSeconds float64, errMsg string) error {
	return task.RunVoid(rc, "UpdateTestCaseResult", func(rc *task.Context) error {
		jc := rc.JudgeCtx
		if status == model.CasePassed {
			jc.TotalTimeSecond += timeSeconds
			if memBytes > jc.MaxRSSBytes {
				jc.MaxRSSBytes = memBytes
			}
		}
		return jc.API.PatchTestCaseResult(rc.Ctx(), jc.Request.ID, setID, caseID, model.TestCaseJudgeResult{
			CaseID:             caseID,
			Status:             status,
			MemoryUsedBytes:    memBytes,
			TimeElapsedSeconds: timeSeconds,
			ErrorMessage:       errMsg,
		})
	})
}
