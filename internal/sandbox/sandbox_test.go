package sandbox_test

import (
	"testing"

	"treadmill/internal/model"
	"treadmill/internal/sandbox"
	apperrors "treadmill/pkg/errors"
)

func TestNewBuilderEnviron_RejectsUnconfiguredImage(t *testing.T) {
	_, err := sandbox.NewBuilderEnviron(nil, model.LanguageProfile{Lang: model.LangCPP})
	if apperrors.GetCode(err) != apperrors.UnsupportedLanguage {
		t.Fatalf("err = %v, want UnsupportedLanguage", err)
	}
}

func TestNewSandboxEnviron_RejectsUnconfiguredImage(t *testing.T) {
	_, err := sandbox.NewSandboxEnviron(nil, model.LanguageProfile{Lang: model.LangPython3}, false)
	if apperrors.GetCode(err) != apperrors.UnsupportedLanguage {
		t.Fatalf("err = %v, want UnsupportedLanguage", err)
	}
}

func TestExecSubm_RequiresIsolatedSandbox(t *testing.T) {
	env, err := sandbox.NewSandboxEnviron(nil, model.LanguageProfile{Lang: model.LangCPP, SandboxImage: "sandbox-cpp"}, false)
	if err != nil {
		t.Fatalf("NewSandboxEnviron() error = %v", err)
	}
	_, _, err = env.ExecSubm(t.Context(), sandbox.ExecSubmParams{})
	if err == nil {
		t.Fatal("expected ExecSubm to refuse a non-isolated sandbox")
	}
}

func TestExecGrader_RequiresNonIsolatedSandbox(t *testing.T) {
	env, err := sandbox.NewSandboxEnviron(nil, model.LanguageProfile{Lang: model.LangCPP, SandboxImage: "sandbox-cpp"}, true)
	if err != nil {
		t.Fatalf("NewSandboxEnviron() error = %v", err)
	}
	_, err = env.ExecGrader(t.Context(), sandbox.GraderParams{})
	if err == nil {
		t.Fatal("expected ExecGrader to refuse an isolated sandbox")
	}
}
