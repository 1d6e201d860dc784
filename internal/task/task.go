package task

// Task is a unit of work that produces a value, the Go-native reading of
// original_source/treadmill/tasks/base.py's Task._run generator: instead
// of yielding sub-steps and resuming with their result, a Task simply
// calls them as ordinary Go functions in sequence. Errors propagate by
// ordinary Go error return, standing in for the original's
// exception-based control flow.
type Task[T any] func(rc *Context) (T, error)

// Run executes t under name, pushing it onto the active stack for the
// duration of the call so failures report "where we are" (spec §4.3).
func Run[T any](rc *Context, name string, t Task[T]) (T, error) {
	rc.push(name)
	defer rc.pop()
	return t(rc)
}

// VoidTask is a Task that produces no value, for steps run purely for
// effect (most Operations and Environ bodies).
type VoidTask func(rc *Context) error

// RunVoid executes t under name.
func RunVoid(rc *Context, name string, t VoidTask) error {
	rc.push(name)
	defer rc.pop()
	return t(rc)
}

// Environ is a scoped resource with guaranteed teardown (spec §4.3): Setup
// and Teardown each behave like a task, and Teardown runs on every exit
// path, success or failure, mirroring the original's
// Environ.__enter__/__exit__ pair (push_environ/run _setup,
// pop_environ/run _teardown).
type Environ interface {
	// Name identifies the environ on the active stack and in logs.
	Name() string
	Setup(rc *Context) error
	Teardown(rc *Context) error
}

// WithEnviron runs body with env set up, guaranteeing Teardown runs
// whether Setup, body, or neither fails (spec §4.3, testable property 6:
// "if setup succeeds then teardown runs; if setup raises, teardown runs;
// if body raises, teardown runs"). The env's name is pushed onto the
// active stack for the duration of Setup/body/Teardown, matching the
// original's push_environ/pop_environ bracketing the whole `with` block.
func WithEnviron(rc *Context, env Environ, body func(rc *Context) error) (err error) {
	rc.push(env.Name())
	defer rc.pop()

	defer func() {
		if tErr := env.Teardown(rc); tErr != nil && err == nil {
			err = tErr
		}
	}()

	if err = env.Setup(rc); err != nil {
		return err
	}
	if rc.Err() != nil {
		return rc.Err()
	}
	return body(rc)
}

// FuncEnviron adapts three plain functions into an Environ, for the
// common case where an environ has no state beyond closures over its
// constructor's arguments.
type FuncEnviron struct {
	EnvName      string
	SetupFunc    func(rc *Context) error
	TeardownFunc func(rc *Context) error
}

func (f FuncEnviron) Name() string { return f.EnvName }

func (f FuncEnviron) Setup(rc *Context) error {
	if f.SetupFunc == nil {
		return nil
	}
	return f.SetupFunc(rc)
}

func (f FuncEnviron) Teardown(rc *Context) error {
	if f.TeardownFunc == nil {
		return nil
	}
	return f.TeardownFunc(rc)
}
