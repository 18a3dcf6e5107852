package task

import "context"

// Bound is a descriptor plus the invocation behavior the wrapper (package
// wrapper) attached to it at bind time (spec §3: "Bound task"). It is
// itself callable, per spec §6: "Each bound task is itself callable and
// yields an execution report."
type Bound struct {
	Descriptor *Descriptor
	Invoker    func(ctx context.Context) Report
}

// Invoke runs the bound task under whichever policy its descriptor
// selects, and returns its execution report.
func (b *Bound) Invoke(ctx context.Context) Report {
	return b.Invoker(ctx)
}
