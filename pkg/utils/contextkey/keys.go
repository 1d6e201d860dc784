package contextkey

// key is a private type to avoid context key collisions across packages.
type key string

const (
	TraceID   key = "trace_id"
	RequestID key = "request_id"
	UserID    key = "user_id"

	// JudgeRequestID carries a treadmill JudgeRequest.ID (spec §3) through
	// a run's context.Context, distinct from RequestID's HTTP-layer
	// request id: one worker process log line can carry both when the
	// status-poll HTTP handler and a judge run happen to overlap.
	JudgeRequestID key = "judge_request_id"
)
