// Package task is the Task/Environ runtime (component C8): the
// composition primitive long-lived, interruptible, multi-step work is
// built from. Grounded on original_source/treadmill/tasks/base.py's
// generator-based Task/Environ/push_environ/pop_environ, reshaped per
// spec §9's redesign flag ("Generator-based task composition with
// bidirectional send/throw -> model as a step-dispatching interpreter...
// in an imperative target, encode the state machine explicitly") into a
// stack-tracking interpreter over synchronous Go calls: a Task is a plain
// Go function taking a *Context, an Environ is a Setup/Teardown pair run
// via Run with defer-guaranteed teardown, and suspension points are
// ordinary Go call boundaries rather than generator yields. Ambient
// per-run state (the original's thread-local JudgeContext) is carried
// explicitly as the Context.JudgeCtx field instead of thread-local
// storage, per spec §9's second redesign flag.
package task

import (
	"context"

	"treadmill/internal/apiclient"
	"treadmill/internal/common/mq"
	"treadmill/internal/common/storage"
	"treadmill/internal/container"
	"treadmill/internal/model"
	"treadmill/internal/statuscache"
	"treadmill/internal/telemetry"
)

// JudgeContext is the per-run ambient state every Task/Environ/Operation
// sees: the request and its loaded data, the cumulative score/time/memory
// counters, and the shared clients (spec §4.3's "JudgeContext holds...").
// One JudgeContext is created per judge run and discarded at pipeline exit.
type JudgeContext struct {
	Request    model.JudgeRequest
	Submission model.Submission
	Spec       model.JudgeSpec
	Grader     *model.Grader

	// SubmLang/GraderLang are resolved once FetchSubmission has run.
	SubmLang   model.LanguageProfile
	GraderLang model.LanguageProfile

	// Cumulative counters, updated by UpdateJudgeResult operations and
	// read back when the overall result is patched (spec §3 invariant:
	// "cumulative time/memory aggregate only over PASSED cases").
	TotalScore      int
	TotalTimeSecond float64
	MaxRSSBytes     int64

	API       *apiclient.Client
	Container *container.Driver
	Telemetry telemetry.Client

	// Storage is the secondary object-store backend internal/workspace
	// falls back to when a source key is absent from the TM_S3FS_ROOT
	// mount (spec §6). Nil disables the fallback: a missing mount file is
	// then a hard staging failure.
	Storage       storage.ObjectStorage
	StorageBucket string

	// StatusCache is an optional write-through cache for quick status
	// polling (internal/statuscache); nil disables it, in which case
	// UpdateOverallResult only patches the API.
	StatusCache *statuscache.Cache

	// Queue and the topic names back the RetryLater/Enqueue operations
	// (spec §4.2): the original's dramatiq worker.py actors reach a
	// global broker to re-publish a JudgeRequest; here that broker
	// handle is carried on the ambient context like the other clients.
	Queue        mq.MessageQueue
	NormalTopic  string
	RetryTopic   string

	// LangTable is the environment-resolved per-language command table
	// (internal/model.BuildLanguageTable), shared read-only across a run.
	LangTable map[model.Language]model.LanguageProfile
}

// Context is the runtime context threaded through every Task/Environ/
// Operation call: a cancellable context.Context (carrying the broker's
// time-limit/interrupt signal per spec §5), the active JudgeContext, and
// the stack of active task/environ names (spec §4.3's "stack tracking").
type Context struct {
	ctx      context.Context
	JudgeCtx *JudgeContext
	stack    []string
}

// New builds a root Context for one judge run.
func New(ctx context.Context, jc *JudgeContext) *Context {
	return &Context{ctx: ctx, JudgeCtx: jc}
}

// Ctx returns the underlying cancellable context.Context, checked at
// every operation boundary so a broker-delivered cancellation signal
// interrupts the current step cleanly (spec §5).
func (c *Context) Ctx() context.Context {
	return c.ctx
}

// Err reports the root context's cancellation error, if any. Operations
// call this before doing work so a signal delivered between steps stops
// the pipeline without needing to preempt mid-step.
func (c *Context) Err() error {
	return c.ctx.Err()
}

// Stack returns a copy of the active task/environ name stack, attached to
// error reports via pkg/errors.Error.WithTaskStack (spec §4.3).
func (c *Context) Stack() []string {
	return append([]string(nil), c.stack...)
}

func (c *Context) push(name string) {
	c.stack = append(c.stack, name)
}

func (c *Context) pop() {
	c.stack = c.stack[:len(c.stack)-1]
}

// withTimeout returns a child Context sharing JudgeCtx but with its own
// cancellable context.Context. Used by callers that want a step-local
// deadline without affecting the rest of the run.
func (c *Context) withContext(ctx context.Context) *Context {
	return &Context{ctx: ctx, JudgeCtx: c.JudgeCtx, stack: c.stack}
}
