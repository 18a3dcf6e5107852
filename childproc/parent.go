package childproc

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/joeycumines/go-brain/internal/diag"
	"github.com/joeycumines/go-brain/logging"
	"github.com/joeycumines/go-brain/store"
	"github.com/joeycumines/go-catrate"
)

// EnvChildFor is the environment variable a re-exec'd child reads to
// learn which registered Brain factory it should run (see brain.Main).
const EnvChildFor = "GO_BRAIN_CHILD_FOR"

// Child is the parent-side handle to one Brain's dedicated OS process
// (spec §3: "Child processes: spawned lazily the first time a
// process=true task starts; terminated when the supervisor shuts down").
type Child struct {
	name   string
	store  *store.Store
	logger logging.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	tp      *transport
	dead    bool
	respawn *catrate.Limiter
	grace   time.Duration
	diag    *diag.Diag
}

// defaultAbortGrace is how long Abort waits for the child to exit after
// SIGINT before force-killing it, when no grace has been configured via
// SetAbortGrace.
const defaultAbortGrace = 2 * time.Second

// NewChild creates a Child bound to name (the registered Brain factory
// name) and backed by st, the authoritative Store that the child's
// StoreProxy will query over the wire.
func NewChild(name string, st *store.Store, logger logging.Logger) *Child {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Child{
		name:   name,
		store:  st,
		logger: logger,
		// Bound respawn attempts so a crash-looping child doesn't spin the
		// supervisor: at most 5 respawns per minute, the first spawn not
		// counted (spec §7: "does not
		// retry until the supervisor respawns the child").
		respawn: catrate.NewLimiter(map[time.Duration]int{time.Minute: 5}),
		grace:   defaultAbortGrace,
	}
}

// SetAbortGrace configures how long Abort waits for the child to exit
// gracefully, after signalling it, before force-killing it. The
// supervisor calls this with its configured WithShutdownGrace value when
// a Brain is registered.
func (c *Child) SetAbortGrace(grace time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if grace > 0 {
		c.grace = grace
	}
}

// SetDiag wires the supervisor's own diagnostics into this Child, so
// spawn/exit/respawn-denial events are recorded alongside the rest of
// the supervisor's internal logging. Optional: a nil or never-called
// SetDiag leaves Child fully functional, just silent on these events.
func (c *Child) SetDiag(d *diag.Diag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diag = d
}

// ensureStarted lazily spawns the child process if it isn't already
// running, re-executing the current binary with EnvChildFor set.
func (c *Child) ensureStarted() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil && !c.dead {
		return nil
	}
	if c.cmd != nil && c.dead {
		if _, ok := c.respawn.Allow(c.name); !ok {
			if c.diag != nil {
				c.diag.ChildRespawnDenied(c.name)
			}
			return fmt.Errorf("childproc: respawn rate limit exceeded for %q", c.name)
		}
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("childproc: resolve executable: %w", err)
	}
	cmd := exec.Command(exe)
	cmd.Env = append(os.Environ(), EnvChildFor+"="+c.name)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("childproc: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("childproc: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("childproc: start: %w", err)
	}

	tp := newTransport(stdin)
	c.cmd = cmd
	c.stdin = stdin
	c.tp = tp
	c.dead = false

	if c.diag != nil {
		c.diag.ChildSpawned(c.name, cmd.Process.Pid)
	}

	go c.readLoop(stdout)
	go func() {
		waitErr := cmd.Wait()
		c.mu.Lock()
		c.dead = true
		d := c.diag
		c.mu.Unlock()
		if d != nil {
			d.ChildExited(c.name, waitErr)
		}
		c.tp.closePending()
	}()
	return nil
}

// readLoop handles the two kinds of message that arrive from this child:
// task responses (resolved against the transport's pending map) and
// store requests (served directly against the authoritative Store).
func (c *Child) readLoop(r io.Reader) {
	dec := gob.NewDecoder(r)
	for {
		var e envelope
		if err := dec.Decode(&e); err != nil {
			return
		}
		switch e.Kind {
		case kindTaskResponse:
			c.tp.deliver(e)
		case kindStoreGet:
			v, ok := c.store.Get(e.Key)
			resp := envelope{Kind: kindStoreGetResponse, Seq: e.Seq, Found: ok}
			if ok {
				resp.Value, resp.Version = v.Value, v.Version
			}
			_ = c.tp.send(resp)
		case kindStoreSet:
			v, err := c.store.Set(e.Key, e.Value)
			resp := envelope{Kind: kindStoreSetResponse, Seq: e.Seq, Version: v.Version}
			if err != nil {
				resp.ErrorText = err.Error()
			}
			_ = c.tp.send(resp)
		case kindStoreList:
			_ = c.tp.send(envelope{Kind: kindStoreListResponse, Seq: e.Seq, List: c.store.List()})
		}
	}
}

// Invoke sends a task-execution request to the child and waits for its
// terminal report, or a transport fault if the child is unreachable
// (spec §7: "Transport fault ... the wrapper logs, marks the task
// error_occurred").
func (c *Child) Invoke(ctx context.Context, taskName string, hasTimeout bool, timeout time.Duration) (status int32, result any, faultErr error, transportErr error) {
	if err := c.ensureStarted(); err != nil {
		return 0, nil, nil, err
	}
	c.mu.Lock()
	tp := c.tp
	c.mu.Unlock()

	req := envelope{
		Kind:       kindTaskRequest,
		Seq:        tp.nextSeq(),
		TaskName:   taskName,
		HasTimeout: hasTimeout,
		Timeout:    timeout,
	}

	type result_ struct {
		e   envelope
		err error
	}
	done := make(chan result_, 1)
	go func() {
		e, err := tp.request(req)
		done <- result_{e, err}
	}()

	select {
	case <-ctx.Done():
		// Cancellation forwarded as a hard process-level abort (spec
		// §4.4: "Cancellation sent to the parent is forwarded as a hard
		// process-level abort of the child task").
		c.Abort()
		return 0, nil, nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			c.mu.Lock()
			c.dead = true
			c.mu.Unlock()
			return 0, nil, nil, r.err
		}
		if r.e.FaultOccurred {
			return r.e.Status, r.e.Result, fmt.Errorf("%s", r.e.ErrorText), nil
		}
		return r.e.Status, r.e.Result, nil, nil
	}
}

// Abort signals the child to abort its current call and terminates the
// process (spec §4.6 shutdown: "signals child processes to abort their
// current call and exit, waits briefly for graceful exit, then
// force-terminates").
func (c *Child) Abort() {
	c.mu.Lock()
	cmd := c.cmd
	grace := c.grace
	c.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(os.Interrupt)
	go func() {
		time.Sleep(grace)
		c.mu.Lock()
		dead := c.dead
		proc := cmd.Process
		c.mu.Unlock()
		if !dead && proc != nil {
			_ = proc.Kill()
		}
	}()
}

// Stop kills the child immediately, with no grace period. Supervisor
// shutdown goes through Abort instead.
func (c *Child) Stop() {
	c.mu.Lock()
	cmd := c.cmd
	c.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
