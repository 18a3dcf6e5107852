package task

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-brain/brainerr"
)

// Builder replaces the Python decorator with an explicit construction
// step (design note 9: "Annotation-driven catalog ... replace the
// decorator with a builder"). Declaration order is preserved by the order
// in which a Brain's DeclareTasks method calls Build, not by anything the
// builder tracks itself.
type Builder struct {
	d   Descriptor
	err error
}

// NewTask starts building the descriptor for a one-shot task named name,
// whose body is fn. process and runOnStart are always required, per spec
// §6's declaration surface.
func NewTask(name string, fn Func, process, runOnStart bool) *Builder {
	return &Builder{d: Descriptor{
		Name:            name,
		Method:          fn,
		Process:         process,
		RunOnStart:      runOnStart,
		StartLoopMarker: DefaultStartLoopMarker,
	}}
}

// RefreshRate marks the task as a routine, with the given inter-iteration
// sleep. Must be strictly positive (spec §3 invariant); a non-positive
// value is recorded as a configuration fault, surfaced by Build.
func (b *Builder) RefreshRate(d time.Duration) *Builder {
	b.d.HasRefreshRate = true
	b.d.RefreshRate = d
	return b
}

// Timeout bounds the task's total wall-clock time.
func (b *Builder) Timeout(d time.Duration) *Builder {
	b.d.HasTimeout = true
	b.d.Timeout = d
	return b
}

// SetupThenLoop turns the task into a setup-then-loop routine (spec §4.4
// Policy D), using design note 9's recommended static-language strategy:
// two explicit functions instead of a source marker. Only legal for
// child-process routines; RefreshRate must also be set.
func (b *Builder) SetupThenLoop(setup SetupFunc, loop LoopFunc) *Builder {
	b.d.DefineLoopLater = true
	b.d.Method = nil
	b.d.Setup = setup
	b.d.Loop = loop
	return b
}

// StartLoopMarker overrides the descriptor's display marker. It has no
// effect on behavior in this port (see DefaultStartLoopMarker); it
// exists for parity with the declaration surface in spec §6.
func (b *Builder) StartLoopMarker(marker string) *Builder {
	b.d.StartLoopMarker = marker
	return b
}

// Build validates the descriptor's invariants (spec §3, §8) and returns
// it, or a configuration fault if any invariant is violated.
func (b *Builder) Build() (*Descriptor, error) {
	if b.err != nil {
		return nil, b.err
	}
	d := b.d

	fault := func(name string, err error) (*Descriptor, error) {
		return nil, &brainerr.ConfigError{Task: name, Err: err}
	}

	if d.Name == "" {
		return fault("", fmt.Errorf("task descriptor has no name"))
	}
	if d.HasRefreshRate && d.RefreshRate <= 0 {
		return fault(d.Name, fmt.Errorf("refresh_rate must be > 0, got %s", d.RefreshRate))
	}
	if d.HasTimeout && d.Timeout <= 0 {
		return fault(d.Name, fmt.Errorf("timeout must be > 0, got %s", d.Timeout))
	}
	if d.DefineLoopLater {
		if !d.HasRefreshRate {
			return fault(d.Name, fmt.Errorf("define_loop_later requires a refresh_rate"))
		}
		if !d.Process {
			return fault(d.Name, fmt.Errorf("define_loop_later is only legal for child-process routines"))
		}
		if d.Setup == nil || d.Loop == nil {
			return fault(d.Name, fmt.Errorf("define_loop_later requires both a setup and a loop function"))
		}
	} else if d.Method == nil {
		return fault(d.Name, fmt.Errorf("no method body"))
	}

	return &d, nil
}
