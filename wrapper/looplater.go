package wrapper

import (
	"context"

	"github.com/joeycumines/go-brain/logging"
	"github.com/joeycumines/go-brain/task"
)

// runSetupThenLoop is Policy D (spec §4.4): run the setup once under
// Policy A rules (no refresh_rate), then — only if it succeeded — enter
// Policy B over the loop suffix, closing over the setup's result. A
// setup fault terminates the task with ErrorOccurred and no loop ever
// runs.
func runSetupThenLoop(ctx context.Context, d *task.Descriptor, logger logging.Logger) task.Report {
	setupRep := runOneShot(ctx, func(ctx context.Context) (any, error) {
		return d.Setup(ctx)
	}, false, 0, logger, d.Name)

	if setupRep.Status != task.Correctly {
		return task.Report{Status: setupRep.Status, TaskName: d.Name, Err: setupRep.Err}
	}

	state := setupRep.Result
	body := func(ctx context.Context) (any, error) {
		return d.Loop(ctx, state)
	}
	return runRoutineFrom(ctx, body, d, logger)
}
