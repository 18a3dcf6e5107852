// Package supervisor is the runtime of spec §4.6: it owns every
// registered Brain's child-process pool and synchronization-routine
// lifecycle, runs the auto-start tasks concurrently, collects their
// execution reports, and tears everything down on Shutdown.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/joeycumines/go-brain/brain"
	"github.com/joeycumines/go-brain/internal/diag"
	"github.com/joeycumines/go-brain/task"
	"golang.org/x/sync/errgroup"
)

// Supervisor collects one or more Brains and runs their auto-start tasks
// together (spec §4.6). A single Supervisor is the host program's only
// entry point into the system once every Brain has been constructed.
type Supervisor struct {
	opts *options
	diag *diag.Diag

	mu     sync.Mutex
	brains []brain.Brain
}

// New creates a Supervisor. Diagnostics (the supervisor's own internal
// logging, distinct from any individual Brain's logging.Logger) are
// written per WithDiagWriter/WithDiagLevel.
func New(opts ...Option) *Supervisor {
	cfg := resolveOptions(opts)
	return &Supervisor{
		opts: cfg,
		diag: diag.New(cfg.diagWriter, cfg.diagLevel),
	}
}

// Register adds b to the set of Brains this Supervisor runs. Must be
// called after b has completed brain.Init (i.e. after its constructor
// returned), and before Run.
func (s *Supervisor) Register(b brain.Brain) {
	b.Base().SetChildAbortGrace(s.opts.shutdownGrace)
	b.Base().SetDiag(s.diag)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brains = append(s.brains, b)
}

// GetTasks returns the auto-start bound tasks of every registered Brain,
// concatenated in registration order, then declaration order within
// each Brain (spec §4.6: "get_tasks(instance) that yields the list of
// auto-start bound tasks in declaration order").
func (s *Supervisor) GetTasks() []*task.Bound {
	s.mu.Lock()
	brains := append([]brain.Brain(nil), s.brains...)
	s.mu.Unlock()

	var out []*task.Bound
	for _, b := range brains {
		out = append(out, b.Base().AutostartTasks()...)
	}
	return out
}

// Run starts every registered Brain's synchronization routine, invokes
// every auto-start bound task concurrently, and returns once they have
// all produced a terminal execution report (or ctx is cancelled). The
// returned slice is in the same order as GetTasks.
func (s *Supervisor) Run(ctx context.Context) ([]task.Report, error) {
	s.mu.Lock()
	brains := append([]brain.Brain(nil), s.brains...)
	s.mu.Unlock()

	syncCtx, stopSync := context.WithCancel(ctx)
	defer stopSync()
	for _, b := range brains {
		b := b
		go b.Base().RunSync(syncCtx, s.opts.syncInterval)
	}

	tasks := s.GetTasks()
	reports := make([]task.Report, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tasks {
		i, t := i, t
		g.Go(func() error {
			start := time.Now()
			rep := t.Invoke(gctx)
			reports[i] = rep
			s.diag.TaskReport(rep.TaskName, rep.Status.String(), time.Since(start), rep.Err)
			return nil
		})
	}

	err := g.Wait()
	return reports, err
}

// Shutdown signals every registered Brain's child process to abort and
// exit, then returns once that signalling is done, the configured grace
// period has elapsed, or ctx is done, whichever comes first. Per spec §4.6: main-process cancellation is the caller's
// responsibility (cancel the context passed to Run); Shutdown's own job
// is tearing down the child-process pool.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.diag.ShutdownBegin(s.opts.shutdownGrace)
	defer s.diag.ShutdownDone()

	s.mu.Lock()
	brains := append([]brain.Brain(nil), s.brains...)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, b := range brains {
			b.Base().Shutdown()
		}
	}()

	select {
	case <-done:
	case <-time.After(s.opts.shutdownGrace):
	case <-ctx.Done():
	}
}
