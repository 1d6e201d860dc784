package task_test

import (
	"context"
	"errors"
	"testing"

	"treadmill/internal/task"
)

func TestRun_PushesAndPopsStack(t *testing.T) {
	rc := task.New(context.Background(), &task.JudgeContext{})
	var observed []string
	_, err := task.Run(rc, "Outer", func(rc *task.Context) (int, error) {
		observed = append(observed, rc.Stack()...)
		return 0, nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(observed) != 1 || observed[0] != "Outer" {
		t.Fatalf("stack during call = %v, want [Outer]", observed)
	}
	if got := rc.Stack(); len(got) != 0 {
		t.Fatalf("stack after Run = %v, want empty", got)
	}
}

func TestRunVoid_PropagatesError(t *testing.T) {
	rc := task.New(context.Background(), &task.JudgeContext{})
	want := errors.New("boom")
	err := task.RunVoid(rc, "Failing", func(rc *task.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("RunVoid() error = %v, want %v", err, want)
	}
}

type recordingEnviron struct {
	name         string
	setupErr     error
	setupCalled  bool
	teardownErr  error
	teardownCalls *int
}

func (e *recordingEnviron) Name() string { return e.name }

func (e *recordingEnviron) Setup(rc *task.Context) error {
	e.setupCalled = true
	return e.setupErr
}

func (e *recordingEnviron) Teardown(rc *task.Context) error {
	*e.teardownCalls++
	return e.teardownErr
}

func TestWithEnviron_TeardownRunsOnSuccess(t *testing.T) {
	rc := task.New(context.Background(), &task.JudgeContext{})
	calls := 0
	env := &recordingEnviron{name: "E", teardownCalls: &calls}

	err := task.WithEnviron(rc, env, func(rc *task.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("WithEnviron() error = %v", err)
	}
	if !env.setupCalled {
		t.Error("expected Setup to be called")
	}
	if calls != 1 {
		t.Errorf("Teardown called %d times, want 1", calls)
	}
}

func TestWithEnviron_TeardownRunsWhenSetupFails(t *testing.T) {
	rc := task.New(context.Background(), &task.JudgeContext{})
	calls := 0
	setupErr := errors.New("setup failed")
	env := &recordingEnviron{name: "E", setupErr: setupErr, teardownCalls: &calls}

	bodyCalled := false
	err := task.WithEnviron(rc, env, func(rc *task.Context) error {
		bodyCalled = true
		return nil
	})
	if !errors.Is(err, setupErr) {
		t.Fatalf("WithEnviron() error = %v, want %v", err, setupErr)
	}
	if bodyCalled {
		t.Error("body should not run when Setup fails")
	}
	if calls != 1 {
		t.Errorf("Teardown called %d times, want 1", calls)
	}
}

func TestWithEnviron_TeardownRunsWhenBodyFails(t *testing.T) {
	rc := task.New(context.Background(), &task.JudgeContext{})
	calls := 0
	bodyErr := errors.New("body failed")
	env := &recordingEnviron{name: "E", teardownCalls: &calls}

	err := task.WithEnviron(rc, env, func(rc *task.Context) error {
		return bodyErr
	})
	if !errors.Is(err, bodyErr) {
		t.Fatalf("WithEnviron() error = %v, want %v", err, bodyErr)
	}
	if calls != 1 {
		t.Errorf("Teardown called %d times, want 1", calls)
	}
}

func TestWithEnviron_BodyErrorWinsOverTeardownError(t *testing.T) {
	rc := task.New(context.Background(), &task.JudgeContext{})
	calls := 0
	bodyErr := errors.New("body failed")
	env := &recordingEnviron{name: "E", teardownErr: errors.New("teardown failed"), teardownCalls: &calls}

	err := task.WithEnviron(rc, env, func(rc *task.Context) error {
		return bodyErr
	})
	if !errors.Is(err, bodyErr) {
		t.Fatalf("WithEnviron() error = %v, want the body error to take precedence", err)
	}
}

func TestWithEnviron_TeardownErrorSurfacesWhenBodySucceeds(t *testing.T) {
	rc := task.New(context.Background(), &task.JudgeContext{})
	calls := 0
	teardownErr := errors.New("teardown failed")
	env := &recordingEnviron{name: "E", teardownErr: teardownErr, teardownCalls: &calls}

	err := task.WithEnviron(rc, env, func(rc *task.Context) error {
		return nil
	})
	if !errors.Is(err, teardownErr) {
		t.Fatalf("WithEnviron() error = %v, want %v", err, teardownErr)
	}
}

func TestFuncEnviron_NilFuncsAreNoops(t *testing.T) {
	rc := task.New(context.Background(), &task.JudgeContext{})
	env := task.FuncEnviron{EnvName: "NoopEnv"}
	err := task.WithEnviron(rc, env, func(rc *task.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("WithEnviron() error = %v", err)
	}
}
