package wrapper

import (
	"context"
	"time"

	"github.com/joeycumines/go-brain/logging"
	"github.com/joeycumines/go-brain/task"
)

// runRoutine is Policy B (spec §4.4): loop the one-shot body, sleeping
// RefreshRate between iterations, until an optional global timeout
// elapses. An individual iteration's fault never stops the routine; only
// the global timeout (status Timeout) or an outer cancellation (status
// Correctly) does.
func runRoutine(ctx context.Context, d *task.Descriptor, logger logging.Logger) task.Report {
	return runRoutineFrom(ctx, d.Method, d, logger)
}

// runRoutineFrom is shared by Policy B and the loop half of Policy D,
// which supplies a closure over the setup's state instead of
// d.Method directly.
func runRoutineFrom(ctx context.Context, body task.Func, d *task.Descriptor, logger logging.Logger) task.Report {
	start := time.Now()
	for {
		hasTimeout := d.HasTimeout
		var remaining time.Duration
		if hasTimeout {
			remaining = d.Timeout - time.Since(start)
			if remaining <= 0 {
				return task.Report{Status: task.Timeout, TaskName: d.Name}
			}
		}

		rep := runOneShot(ctx, body, hasTimeout, remaining, logger, d.Name)
		if rep.Status == task.Timeout {
			return rep
		}
		if ctx.Err() != nil {
			return task.Report{Status: task.Correctly, TaskName: d.Name}
		}

		if !sleepCtx(ctx, d.RefreshRate) {
			return task.Report{Status: task.Correctly, TaskName: d.Name}
		}
	}
}
