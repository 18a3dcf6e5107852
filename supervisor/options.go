package supervisor

import (
	"io"
	"time"

	"github.com/joeycumines/logiface"
)

// options holds a Supervisor's configuration. Mirrors eventloop.LoopOption's
// functional-options style: construct with defaults, apply each Option
// in order.
type options struct {
	syncInterval      time.Duration
	childSpawnTimeout time.Duration
	shutdownGrace     time.Duration
	diagWriter        io.Writer
	diagLevel         logiface.Level
}

// Option configures a Supervisor at construction time.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// WithSyncInterval sets the tick period of every registered Brain's
// shared-store synchronization routine (spec §4.5, default 10ms).
func WithSyncInterval(d time.Duration) Option {
	return optionFunc(func(o *options) { o.syncInterval = d })
}

// WithChildSpawnTimeout records a bound on how long a lazily spawned
// child process may take to become reachable. The value is kept in the
// Supervisor's configuration but nothing reads it: child spawns are not
// bounded by it.
func WithChildSpawnTimeout(d time.Duration) Option {
	return optionFunc(func(o *options) { o.childSpawnTimeout = d })
}

// WithShutdownGrace sets how long Shutdown waits for child processes to
// exit gracefully before force-terminating them (spec §4.6: "waits
// briefly for graceful exit, then force-terminates").
func WithShutdownGrace(d time.Duration) Option {
	return optionFunc(func(o *options) { o.shutdownGrace = d })
}

// WithDiagWriter sets where the supervisor's own structured diagnostics
// (child spawn/exit, sync-tick failures, terminal task reports, shutdown)
// are written.
// Defaults to os.Stderr.
func WithDiagWriter(w io.Writer) Option {
	return optionFunc(func(o *options) { o.diagWriter = w })
}

// WithDiagLevel sets the minimum level recorded by the supervisor's own
// diagnostics (default logiface.LevelInformational).
func WithDiagLevel(level logiface.Level) Option {
	return optionFunc(func(o *options) { o.diagLevel = level })
}

func resolveOptions(opts []Option) *options {
	cfg := &options{
		syncInterval:      10 * time.Millisecond,
		childSpawnTimeout: 5 * time.Second,
		shutdownGrace:     2 * time.Second,
		diagLevel:         logiface.LevelInformational,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.apply(cfg)
	}
	return cfg
}
