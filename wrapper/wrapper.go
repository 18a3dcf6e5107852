// Package wrapper turns a task.Descriptor plus a bound instance into a
// uniform callable (spec §4.4: "Task wrapper"). It implements all four
// execution policies: one-shot/routine in the main process, dispatch to
// a child process, and setup-then-loop.
package wrapper

import (
	"context"
	"fmt"
	"time"

	"github.com/joeycumines/go-brain/brainerr"
	"github.com/joeycumines/go-brain/logging"
	"github.com/joeycumines/go-brain/task"
)

// ChildHost is the subset of childproc.Child the wrapper needs: enough
// to dispatch one task invocation across the process boundary and await
// its terminal report. Kept as an interface here so this package never
// imports childproc's os/exec plumbing directly, and so tests can fake
// a child cheaply.
type ChildHost interface {
	Invoke(ctx context.Context, taskName string, hasTimeout bool, timeout time.Duration) (status int32, result any, faultErr error, transportErr error)
}

// Bind constructs the callable for d, bound to logger for diagnostics
// and (if d.Process) host for cross-process dispatch. Pass host = nil
// when binding a descriptor that is about to run *inside* the child
// process itself (see childproc.Worker's Executor) — in that mode the
// descriptor's Process flag is ignored and the body always runs locally,
// since a child never spawns a grandchild (spec §1 Non-goals: no
// distributed execution; one process per Brain, not per task).
func Bind(d *task.Descriptor, logger logging.Logger, host ChildHost) *task.Bound {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &task.Bound{
		Descriptor: d,
		Invoker: func(ctx context.Context) task.Report {
			return invoke(ctx, d, logger, host)
		},
	}
}

func invoke(ctx context.Context, d *task.Descriptor, logger logging.Logger, host ChildHost) task.Report {
	if host != nil && d.Process {
		return invokeViaChild(ctx, d, host)
	}
	if d.DefineLoopLater {
		return runSetupThenLoop(ctx, d, logger)
	}
	if d.IsRoutine() {
		return runRoutine(ctx, d, logger)
	}
	return runOneShot(ctx, d.Method, d.HasTimeout, d.Timeout, logger, d.Name)
}

func invokeViaChild(ctx context.Context, d *task.Descriptor, host ChildHost) task.Report {
	status, result, faultErr, transportErr := host.Invoke(ctx, d.Name, d.HasTimeout, d.Timeout)
	if transportErr != nil {
		return task.Report{
			Status:   task.ErrorOccurred,
			TaskName: d.Name,
			Err:      &brainerr.TransportError{Task: d.Name, Err: transportErr},
		}
	}
	rep := task.Report{Status: task.ExecutionState(status), Result: result, TaskName: d.Name}
	if faultErr != nil {
		rep.Status = task.ErrorOccurred
		rep.Err = faultErr
	}
	return rep
}

// runOneShot is Policy A (spec §4.4): run fn once, honoring an optional
// timeout, converting panics and errors into ErrorOccurred, and
// distinguishing a deadline-triggered cancellation (status Timeout) from
// a shutdown-triggered one (status Correctly, in-flight work abandoned;
// spec §5).
func runOneShot(parent context.Context, fn task.Func, hasTimeout bool, timeout time.Duration, logger logging.Logger, name string) task.Report {
	ctx := parent
	var cancel context.CancelFunc
	if hasTimeout {
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}

	type outcome struct {
		v   any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{nil, fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome{v, err}
	}()

	select {
	case <-ctx.Done():
		if hasTimeout && ctx.Err() == context.DeadlineExceeded {
			if logger.IsEnabled(logging.Warning) {
				logger.Log(fmt.Sprintf("[%s] task timed out after %s", name, timeout), logging.Warning)
			}
			return task.Report{Status: task.Timeout, TaskName: name}
		}
		// Outer (shutdown) cancellation: the in-flight call is abandoned,
		// not reported as a failure of the task itself.
		return task.Report{Status: task.Correctly, TaskName: name}
	case o := <-done:
		if o.err != nil {
			logger.Log(fmt.Sprintf("[%s] task fault: %v", name, o.err), logging.Error)
			return task.Report{Status: task.ErrorOccurred, TaskName: name, Err: o.err}
		}
		return task.Report{Status: task.Correctly, Result: o.v, TaskName: name}
	}
}

// sleepCtx sleeps for d, or until ctx is done, whichever comes first. It
// reports whether the full sleep elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
