package childproc

import (
	"context"
	"encoding/gob"
	"io"
	"time"
)

// Executor runs a single task invocation by name inside the child
// process and returns its terminal status/result/fault. It is supplied
// by the caller (package wrapper) so that childproc itself has no
// dependency on the scheduling policies — only on shuttling the request
// across the wire and running whatever the host plugged in.
type Executor func(ctx context.Context, taskName string, hasTimeout bool, timeout time.Duration) (status int32, result any, err error)

// Worker is the child process's side of the protocol: a loop that
// dequeues wrapper requests and runs each one in its own goroutine (see
// Serve), so several task requests to one child may run at the same time.
type Worker struct {
	tp       *transport
	exec     Executor
	cancel   context.CancelFunc
	proxy    *StoreProxy
}

// NewWorker wires a Worker that writes responses and outgoing store
// requests to w. SetExecutor must be called with the task dispatcher
// before Serve is started.
func NewWorker(w io.Writer) *Worker {
	tp := newTransport(w)
	return &Worker{tp: tp, proxy: newStoreProxy(tp)}
}

// SetExecutor installs the task dispatcher. It must be called before
// Serve starts receiving kindTaskRequest messages.
func (wk *Worker) SetExecutor(exec Executor) { wk.exec = exec }

// Store returns the store.Backend this worker exposes to its Brain
// instance's Mirror: every Get/Set/List is forwarded to the parent.
func (wk *Worker) Store() *StoreProxy { return wk.proxy }

// Serve runs the worker's read loop until r is closed (the parent exited
// or killed the pipe) or ctx is cancelled. Each kindTaskRequest is run in
// its own goroutine so a hard abort (spec: "Cancellation ... forwarded as
// a hard process-level abort") can race it via ctx without blocking
// receipt of further store responses.
func (wk *Worker) Serve(ctx context.Context, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	wk.cancel = cancel
	defer cancel()

	dec := gob.NewDecoder(r)
	for {
		var e envelope
		if err := dec.Decode(&e); err != nil {
			return err
		}
		switch e.Kind {
		case kindTaskRequest:
			go wk.handleTask(ctx, e)
		case kindStoreGetResponse, kindStoreSetResponse, kindStoreListResponse:
			wk.tp.deliver(e)
		case kindAbort:
			cancel()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (wk *Worker) handleTask(ctx context.Context, req envelope) {
	taskCtx := ctx
	var cancel context.CancelFunc
	if req.HasTimeout {
		taskCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	status, result, err := wk.exec(taskCtx, req.TaskName, req.HasTimeout, req.Timeout)

	resp := envelope{
		Kind:     kindTaskResponse,
		Seq:      req.Seq,
		TaskName: req.TaskName,
		Status:   status,
		Result:   result,
	}
	if err != nil {
		resp.FaultOccurred = true
		resp.ErrorText = err.Error()
	}
	_ = wk.tp.send(resp)
}
