// Package brain is the declaration surface and dynamic initializer (spec
// §4.3, §6): the Brain base type every application object embeds, the
// constructor glue that seeds the shared store and binds task wrappers,
// and the public list_tasks/autostart_tasks/get_tasks-equivalent queries.
package brain

import (
	"context"
	"time"

	"github.com/joeycumines/go-brain/childproc"
	"github.com/joeycumines/go-brain/internal/diag"
	"github.com/joeycumines/go-brain/logging"
	"github.com/joeycumines/go-brain/store"
	"github.com/joeycumines/go-brain/task"
)

// Brain is implemented by every user application object. DeclareTasks is
// the Go-native stand-in for the Python decorator catalog (design note
// 9): the Brain builds and returns its own descriptors, in the order it
// wants them bound, the first time Init calls it.
type Brain interface {
	// DeclareTasks returns this Brain's task descriptors, in declaration
	// order. Called exactly once, by Init.
	DeclareTasks() ([]*task.Descriptor, error)

	// Base returns the embedded *Base, giving Init and the supervisor
	// access to the bound tasks, logger and shared-store mirror. A Brain
	// gets this for free by embedding Base.
	Base() *Base
}

// Base is embedded in every Brain implementation. Its bare fields are
// intentionally unexported: per design note 10 ("expose the shared state
// through an explicit accessor... reserve the bare attribute for
// process-local state"), a Brain reads and writes its *shared* public
// attributes through Shared(), not through its own struct fields once
// Init has admitted them to the store — the raw field only reflects the
// value Init saw at construction time.
type Base struct {
	name   string
	logger logging.Logger
	shared *store.Mirror
	owned  *store.Store // non-nil only in the main process
	tasks  []*task.Bound
	byName map[string]*task.Bound
	child  *childproc.Child // non-nil only if some task has Process=true, main process
}

// Base satisfies the Brain.Base() requirement for the embedding type.
func (b *Base) Base() *Base { return b }

// Logger returns the Logger this Brain was constructed with (spec §6).
func (b *Base) Logger() logging.Logger { return b.logger }

// Shared returns the accessor for this Brain's shared public attributes
// (spec §4.3, §4.5).
func (b *Base) Shared() *store.Mirror { return b.shared }

// Tasks returns the bound tasks in declaration order (spec §4.2:
// "list_tasks(instance)").
func (b *Base) Tasks() []*task.Bound {
	out := make([]*task.Bound, len(b.tasks))
	copy(out, b.tasks)
	return out
}

// AutostartTasks returns the subset of Tasks whose descriptor has
// RunOnStart set (spec §4.2: "autostart_tasks(instance)").
func (b *Base) AutostartTasks() []*task.Bound {
	var out []*task.Bound
	for _, t := range b.tasks {
		if t.Descriptor.RunOnStart {
			out = append(out, t)
		}
	}
	return out
}

// SyncNow runs one shared-store synchronization tick immediately. The
// supervisor's own sync routine calls Run instead; this is exposed for
// tests and hosts that want a deterministic tick rather than waiting on
// the ticker.
func (b *Base) SyncNow(ctx context.Context) error { return b.shared.Sync(ctx) }

// RunSync starts the shared-store synchronization routine (spec §4.5)
// on interval, blocking until ctx is done. The supervisor runs one of
// these per registered Brain.
func (b *Base) RunSync(ctx context.Context, interval time.Duration) { b.shared.Run(ctx, interval) }

// SetChildAbortGrace configures how long this Brain's dedicated child
// process, if any, is given to exit gracefully after Shutdown signals it
// before being force-killed. A no-op if no process=true task was ever
// declared. The supervisor calls this at Register time with its
// configured WithShutdownGrace value (spec §4.6).
func (b *Base) SetChildAbortGrace(grace time.Duration) {
	if b.child != nil {
		b.child.SetAbortGrace(grace)
	}
}

// SetDiag wires the supervisor's own diagnostics into this Brain's child
// process (if any) and shared-store mirror, so child spawn/exit/respawn
// events and failed synchronization ticks are recorded alongside the
// rest of the supervisor's internal logging. The supervisor calls this
// at Register time.
func (b *Base) SetDiag(d *diag.Diag) {
	if b.child != nil {
		b.child.SetDiag(d)
	}
	b.shared.SetDiag(b.name, d)
}

// Shutdown terminates this Brain's dedicated child process, if one was
// ever started (spec §4.6: "signals child processes to abort their
// current call and exit"). Safe to call even if no process=true task
// was ever declared.
func (b *Base) Shutdown() {
	if b.child != nil {
		b.child.Abort()
	}
}

// Task looks up a bound task by name, the Go-idiomatic stand-in for
// "the bound task is attached to instance under the original method
// name" (spec §4.3): Go can't splice a new callable into a struct under
// an existing method's name, so callers that want the supervised
// (timeout/process/routine-aware) behavior go through Task(name) rather
// than calling the plain method directly.
func (b *Base) Task(name string) (*task.Bound, bool) {
	t, ok := b.byName[name]
	return t, ok
}

// ListTasks returns instance's bound tasks in declaration order.
func ListTasks(instance Brain) []*task.Bound { return instance.Base().Tasks() }

// AutostartTasks returns the subset of instance's bound tasks whose
// descriptor has RunOnStart set.
func AutostartTasks(instance Brain) []*task.Bound { return instance.Base().AutostartTasks() }
