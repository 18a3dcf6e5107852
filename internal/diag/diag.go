// Package diag is the supervisor's own internal diagnostic logging,
// distinct from the logging.Logger contract a Brain's task code is
// handed (spec §6): it is built on github.com/joeycumines/logiface
// wired to github.com/joeycumines/stumpy, the same way the teacher
// repo's own packages structure their test and example diagnostics.
//
// Nothing in this package is on the critical path of a task's
// execution report; it only records what the supervisor itself did
// (spawned a child, failed a sync tick, finished a task, shut down)
// for whoever is watching its stderr.
package diag

import (
	"io"
	"os"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Diag is the supervisor's structured logger. The zero value is not
// usable; construct with New.
type Diag struct {
	l *logiface.Logger[*stumpy.Event]
}

// New builds a Diag that writes newline-delimited JSON to w at level or
// above. Pass nil for w to use os.Stderr.
func New(w io.Writer, level logiface.Level) *Diag {
	if w == nil {
		w = os.Stderr
	}
	return &Diag{
		l: stumpy.L.New(
			stumpy.L.WithStumpy(stumpy.WithWriter(w)),
			stumpy.L.WithLevel(level),
		),
	}
}

// ChildSpawned records that a Brain's dedicated child process started.
func (d *Diag) ChildSpawned(brain string, pid int) {
	d.l.Info().Str("brain", brain).Int("pid", pid).Log("child process spawned")
}

// ChildExited records that a Brain's child process exited, expectedly
// or not.
func (d *Diag) ChildExited(brain string, err error) {
	b := d.l.Info()
	if err != nil {
		b = d.l.Warning().Err(err)
	}
	b.Str("brain", brain).Log("child process exited")
}

// ChildRespawnDenied records that the respawn rate limit rejected a
// spawn attempt (spec §7 transport fault: "does not retry until the
// supervisor respawns the child").
func (d *Diag) ChildRespawnDenied(brain string) {
	d.l.Warning().Str("brain", brain).Log("child respawn rate limit exceeded")
}

// SyncTickFailed records a failed shared-store synchronization tick.
func (d *Diag) SyncTickFailed(brain string, err error) {
	d.l.Warning().Str("brain", brain).Err(err).Log("synchronization tick failed")
}

// TaskReport records one terminal execution report.
func (d *Diag) TaskReport(task string, status string, elapsed time.Duration, err error) {
	b := d.l.Info().Str("task", task).Str("status", status).Dur("elapsed", elapsed)
	if err != nil {
		b = b.Err(err)
	}
	b.Log("task finished")
}

// ShutdownBegin records that the supervisor started its shutdown
// sequence.
func (d *Diag) ShutdownBegin(grace time.Duration) {
	d.l.Info().Dur("grace", grace).Log("supervisor shutdown initiated")
}

// ShutdownDone records shutdown completion.
func (d *Diag) ShutdownDone() {
	d.l.Info().Log("supervisor shutdown complete")
}
