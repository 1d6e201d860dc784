package execute_test

import (
	"context"
	"testing"

	"treadmill/internal/afp"
	"treadmill/internal/execute"
	"treadmill/internal/model"
	"treadmill/internal/task"
	apperrors "treadmill/pkg/errors"
)

func TestStage_UnconfiguredSubmissionSandboxImageFailsFast(t *testing.T) {
	roots := afp.Roots{HostWorkspaceRoot: t.TempDir(), S3FSRoot: t.TempDir()}
	jc := &task.JudgeContext{
		Request:  model.JudgeRequest{ID: 1},
		SubmLang: model.LanguageProfile{Lang: model.LangCPP, SandboxImage: ""},
	}
	rc := task.New(context.Background(), jc)

	err := execute.Stage(rc, roots)
	if apperrors.GetCode(err) != apperrors.UnsupportedLanguage {
		t.Fatalf("Stage() err = %v, want UnsupportedLanguage (no container should be started)", err)
	}
}
