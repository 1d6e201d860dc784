package ops

import (
	"encoding/json"
	"strconv"

	"treadmill/internal/common/mq"
	"treadmill/internal/task"
	"treadmill/pkg/errors"
)

// RetryLater republishes the active run's JudgeRequest onto the retry
// queue, carrying the task stack captured at the point of failure as a
// header for operator visibility. Grounded on original_source's
// RetryLaterOp, which enqueues a dramatiq retry_worker message instead of
// re-raising; here the worker layer (internal/worker) decides between
// this and letting a transient error propagate for broker redelivery.
func RetryLater(rc *task.Context, taskStack []string) error {
	return task.RunVoid(rc, "RetryLater", func(rc *task.Context) error {
		jc := rc.JudgeCtx
		if jc.Queue == nil || jc.RetryTopic == "" {
			return errors.New(errors.JudgeSystemError).WithMessage("retry queue is not configured").WithTaskStack(rc.Stack())
		}
		body, err := json.Marshal(jc.Request)
		if err != nil {
			return errors.Wrap(err, errors.JudgeSystemError).WithTaskStack(rc.Stack())
		}
		msg := mq.NewMessage(body)
		for i, frame := range taskStack {
			msg.SetHeader("x-task-stack-"+strconv.Itoa(i), frame)
		}
		return jc.Queue.Publish(rc.Ctx(), jc.RetryTopic, msg)
	})
}

// Enqueue republishes the active run's JudgeRequest onto the normal queue,
// used by the retry actor once it has flipped the status back to
// ENQUEUED (spec §4.12). Grounded on original_source's EnqueueOp.
func Enqueue(rc *task.Context) error {
	return task.RunVoid(rc, "Enqueue", func(rc *task.Context) error {
		jc := rc.JudgeCtx
		if jc.Queue == nil || jc.NormalTopic == "" {
			return errors.New(errors.JudgeSystemError).WithMessage("normal queue is not configured").WithTaskStack(rc.Stack())
		}
		if err := mq.PublishJSON(rc.Ctx(), jc.Queue, jc.NormalTopic, jc.Request); err != nil {
			return errors.Wrap(err, errors.JudgeSystemError).WithTaskStack(rc.Stack())
		}
		return nil
	})
}
