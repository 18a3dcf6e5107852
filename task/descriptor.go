package task

import (
	"context"
	"time"
)

// DefaultStartLoopMarker is the descriptor's default marker value (spec
// §3). Go methods can't be split by scanning their own source for a
// marker line, so this port realizes "setup-then-loop" via
// TaskBuilder.SetupThenLoop (design note 9, strategy (a)) instead of
// source introspection; the marker is kept on the descriptor purely so
// it round-trips for hosts that want to display or log it.
const DefaultStartLoopMarker = "# ---Loop--- #"

// Func is a one-shot or routine iteration body: a method on the Brain
// instance, called with a context that is cancelled at the task's
// deadline (or at shutdown). It returns the iteration's result, or an
// error if it faulted.
type Func func(ctx context.Context) (any, error)

// SetupFunc is the one-time prefix of a setup-then-loop task (spec
// §4.4 Policy D). It returns the environment the loop body closes over.
type SetupFunc func(ctx context.Context) (any, error)

// LoopFunc is the recurring suffix of a setup-then-loop task. state is
// whatever the SetupFunc returned.
type LoopFunc func(ctx context.Context, state any) (any, error)

// Descriptor is the immutable record attached to a user method at
// declaration time (spec §3).
type Descriptor struct {
	Name string

	// Method is nil for setup-then-loop descriptors; Setup/Loop are used
	// instead.
	Method Func
	Setup  SetupFunc
	Loop   LoopFunc

	Process    bool
	RunOnStart bool

	HasRefreshRate bool
	RefreshRate    time.Duration

	HasTimeout bool
	Timeout    time.Duration

	DefineLoopLater bool
	StartLoopMarker string
}

// IsRoutine reports whether the descriptor describes a recurring task, as
// opposed to a one-shot one.
func (d *Descriptor) IsRoutine() bool { return d.HasRefreshRate }
