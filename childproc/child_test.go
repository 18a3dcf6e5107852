package childproc

import (
	"context"
	"encoding/gob"
	"io"
	"testing"
	"time"

	"github.com/joeycumines/go-brain/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeParent serves the store half of the protocol against a real
// *store.Store and forwards task responses to a channel, simulating
// just enough of Child.readLoop to exercise Worker end to end without
// spawning a real OS process.
type fakeParent struct {
	st   *store.Store
	tp   *transport
	resp chan envelope
}

func newFakeParent(w io.Writer, st *store.Store) *fakeParent {
	return &fakeParent{st: st, tp: newTransport(w), resp: make(chan envelope, 8)}
}

func (p *fakeParent) serve(r io.Reader) {
	dec := gob.NewDecoder(r)
	for {
		var e envelope
		if err := dec.Decode(&e); err != nil {
			return
		}
		switch e.Kind {
		case kindTaskResponse:
			p.resp <- e
		case kindStoreGet:
			v, ok := p.st.Get(e.Key)
			out := envelope{Kind: kindStoreGetResponse, Seq: e.Seq, Found: ok}
			if ok {
				out.Value, out.Version = v.Value, v.Version
			}
			_ = p.tp.send(out)
		case kindStoreSet:
			v, err := p.st.Set(e.Key, e.Value)
			out := envelope{Kind: kindStoreSetResponse, Seq: e.Seq, Version: v.Version}
			if err != nil {
				out.ErrorText = err.Error()
			}
			_ = p.tp.send(out)
		case kindStoreList:
			_ = p.tp.send(envelope{Kind: kindStoreListResponse, Seq: e.Seq, List: p.st.List()})
		}
	}
}

func TestWorker_dispatchesTaskAndRespondsThroughTransport(t *testing.T) {
	parentR, workerW := io.Pipe()
	workerR, parentW := io.Pipe()

	st := store.New()
	parent := newFakeParent(parentW, st)
	go parent.serve(parentR)

	w := NewWorker(workerW)
	var executed int32
	w.SetExecutor(func(ctx context.Context, taskName string, hasTimeout bool, timeout time.Duration) (int32, any, error) {
		executed++
		return 0, "done:" + taskName, nil
	})

	go func() { _ = w.Serve(context.Background(), workerR) }()

	req := envelope{Kind: kindTaskRequest, Seq: parent.tp.nextSeq(), TaskName: "t1"}
	require.NoError(t, parent.tp.send(req))

	select {
	case resp := <-parent.resp:
		assert.Equal(t, "t1", resp.TaskName)
		assert.Equal(t, "done:t1", resp.Result)
		assert.False(t, resp.FaultOccurred)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for task response")
	}
}

func TestStoreProxy_roundTripsThroughFakeParent(t *testing.T) {
	parentR, workerW := io.Pipe()
	workerR, parentW := io.Pipe()

	st := store.New()
	_, err := st.Set("seeded", 7)
	require.NoError(t, err)

	parent := newFakeParent(parentW, st)
	go parent.serve(parentR)

	w := NewWorker(workerW)
	w.SetExecutor(func(ctx context.Context, taskName string, hasTimeout bool, timeout time.Duration) (int32, any, error) {
		return 0, nil, nil
	})
	go func() { _ = w.Serve(context.Background(), workerR) }()

	proxy := w.Store()

	v, ok := proxy.Get("seeded")
	require.True(t, ok)
	assert.Equal(t, 7, v.Value)

	nv, err := proxy.Set("seeded", 8)
	require.NoError(t, err)
	assert.EqualValues(t, 2, nv.Version)

	keys := proxy.List()
	assert.Contains(t, keys, "seeded")
}
