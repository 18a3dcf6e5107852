// Package logging defines the Logger contract consumed by the supervisor
// and by Brain task implementations (spec §6: "Logger contract (consumed)").
//
// The supervisor never assumes a particular backend. It only requires a
// level-gated sink: something that can be told "log this message at this
// level" and asked whether a level would even be recorded, so callers can
// skip building expensive messages for disabled levels.
package logging

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Level is the severity of a log message. The four named levels are the
// ones spec §6 requires a Logger to support; values outside that range are
// still accepted (Log does not validate them) but have no named meaning.
type Level int32

const (
	Debug Level = iota
	Info
	Warning
	Error
)

// String returns the canonical name of the level.
func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int32(l))
	}
}

// Logger is the interface the supervisor and user task code log through.
// An instance is treated as opaque by the rest of the system, but it must
// be safe to place in the shared store (spec §4.1: "logger handles are
// treated as proxy-safe sentinels") and safe to call from any goroutine or
// child process worker concurrently.
type Logger interface {
	Log(message string, level Level)
	IsEnabled(level Level) bool
}

// StdLogger is the ambient default: a minimal, dependency-free Logger that
// writes level-tagged lines to os.Stderr. It
// exists so a host program has something to pass into brain.Init without
// pulling in a full logging stack; the supervisor's own internal
// diagnostics use the richer logiface/stumpy pipeline in internal/diag
// instead (see SPEC_FULL.md §1).
type StdLogger struct {
	level atomic.Int32
	mu    sync.Mutex
	out   *os.File
}

// NewStdLogger creates a StdLogger that records messages at level or above.
func NewStdLogger(level Level) *StdLogger {
	l := &StdLogger{out: os.Stderr}
	l.level.Store(int32(level))
	return l
}

// SetLevel dynamically changes the minimum recorded level.
func (l *StdLogger) SetLevel(level Level) { l.level.Store(int32(level)) }

// IsEnabled reports whether level would currently be recorded.
func (l *StdLogger) IsEnabled(level Level) bool { return int32(level) >= l.level.Load() }

// Log writes message, tagged with level and a timestamp, to the underlying
// file. Disabled levels are dropped without formatting cost beyond the
// level check itself.
func (l *StdLogger) Log(message string, level Level) {
	if !l.IsEnabled(level) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s [%s] %s\n", time.Now().Format("15:04:05.000"), level, message)
}

// NoOpLogger discards everything. Useful as a default in tests or when the
// host genuinely wants silence.
type NoOpLogger struct{}

func (NoOpLogger) Log(string, Level)     {}
func (NoOpLogger) IsEnabled(Level) bool { return false }
