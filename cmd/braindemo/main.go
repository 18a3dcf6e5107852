// Command braindemo is a minimal host program exercising the end-to-end
// scenarios of spec §8: a one-shot task, a timed routine with an
// iteration fault, and a shared counter incremented from both a
// main-process routine and a child-process routine.
package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-brain/brain"
	"github.com/joeycumines/go-brain/logging"
	"github.com/joeycumines/go-brain/supervisor"
	"github.com/joeycumines/go-brain/task"
)

// demoBrain declares one task for each spec §8 end-to-end scenario this
// demo exercises. Counters is the shared public attribute mutated from both
// the main process and the child process.
type demoBrain struct {
	brain.Base

	Logger   logging.Logger
	Counters int
}

func newDemoBrain(logger logging.Logger) (brain.Brain, error) {
	b := &demoBrain{}
	if err := brain.Init(logger, b, "demo", nil); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *demoBrain) DeclareTasks() ([]*task.Descriptor, error) {
	answer, err := task.NewTask("answer", func(ctx context.Context) (any, error) {
		return 42, nil
	}, false, true).Build()
	if err != nil {
		return nil, err
	}

	var iteration int64
	faulty, err := task.NewTask("faulty", func(ctx context.Context) (any, error) {
		i := atomic.AddInt64(&iteration, 1) - 1
		return 1 / i, nil // faults on the first iteration (i=0)
	}, false, true).RefreshRate(100 * time.Millisecond).Timeout(500 * time.Millisecond).Build()
	if err != nil {
		return nil, err
	}

	mainCounter, err := task.NewTask("increment_main", func(ctx context.Context) (any, error) {
		v, _ := b.Shared().Get("Counters")
		n, _ := v.(int)
		n++
		return n, b.Shared().Set("Counters", n)
	}, false, true).RefreshRate(time.Second).Build()
	if err != nil {
		return nil, err
	}

	childCounter, err := task.NewTask("increment_child", func(ctx context.Context) (any, error) {
		v, _ := b.Shared().Get("Counters")
		n, _ := v.(int)
		n++
		return n, b.Shared().Set("Counters", n)
	}, true, true).RefreshRate(time.Second).Build()
	if err != nil {
		return nil, err
	}

	return []*task.Descriptor{answer, faulty, mainCounter, childCounter}, nil
}

func main() {
	brain.RegisterFactory("demo", newDemoBrain)

	if brain.Main() {
		return
	}

	logger := logging.NewStdLogger(logging.Info)
	b, err := newDemoBrain(logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "construct demo brain:", err)
		os.Exit(1)
	}

	sup := supervisor.New()
	sup.Register(b)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	reports, err := sup.Run(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "run:", err)
	}
	for _, r := range reports {
		fmt.Printf("%-16s status=%-13s result=%v err=%v\n", r.TaskName, r.Status, r.Result, r.Err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutdownCancel()
	sup.Shutdown(shutdownCtx)
}
