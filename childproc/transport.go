package childproc

import (
	"encoding/gob"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// transport is the shared plumbing for both ends of the pipe: a gob
// encoder, a sequence counter, and a table of requests awaiting a
// response. It has no read loop of its own: Child.readLoop and
// Worker.Serve decode incoming envelopes and hand responses to deliver.
// Both Child and Worker hold one.
type transport struct {
	enc *gob.Encoder
	mu  sync.Mutex // guards enc, serializing writes

	seq atomic.Uint64

	pending   sync.Map // seq -> chan envelope, for request/response kinds this side initiated
}

func newTransport(w io.Writer) *transport {
	return &transport{enc: gob.NewEncoder(w)}
}

func (t *transport) nextSeq() uint64 { return t.seq.Add(1) }

func (t *transport) send(e envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enc.Encode(e)
}

// request sends e and blocks until a response with the same Seq arrives
// (delivered via deliver, called from the owning read loop), or until
// closePending closes its channel because the pipe died.
func (t *transport) request(e envelope) (envelope, error) {
	ch := make(chan envelope, 1)
	t.pending.Store(e.Seq, ch)
	defer t.pending.Delete(e.Seq)

	if err := t.send(e); err != nil {
		return envelope{}, fmt.Errorf("childproc: write request: %w", err)
	}
	resp, ok := <-ch
	if !ok {
		return envelope{}, fmt.Errorf("childproc: transport closed awaiting response to seq %d", e.Seq)
	}
	return resp, nil
}

// deliver hands a response envelope to whichever goroutine is waiting on
// its Seq, if any.
func (t *transport) deliver(e envelope) {
	if v, ok := t.pending.Load(e.Seq); ok {
		v.(chan envelope) <- e
	}
}

// closePending unblocks every outstanding request with a closed channel,
// e.g. when the underlying pipe dies (spec §7: Transport fault).
func (t *transport) closePending() {
	t.pending.Range(func(key, value any) bool {
		close(value.(chan envelope))
		t.pending.Delete(key)
		return true
	})
}
