package childproc

import (
	"fmt"

	"github.com/joeycumines/go-brain/store"
)

// StoreProxy is a store.Backend that forwards every call across the wire
// to the parent process's authoritative Store (design note: "implement
// the shared store as a process holding the authoritative map plus a
// request protocol ... over a pipe or socket").
type StoreProxy struct {
	tp *transport
}

func newStoreProxy(tp *transport) *StoreProxy { return &StoreProxy{tp: tp} }

func (p *StoreProxy) Get(name string) (store.Versioned, bool) {
	resp, err := p.tp.request(envelope{Kind: kindStoreGet, Seq: p.tp.nextSeq(), Key: name})
	if err != nil || !resp.Found {
		return store.Versioned{}, false
	}
	return store.Versioned{Value: resp.Value, Version: resp.Version}, true
}

func (p *StoreProxy) Set(name string, value any) (store.Versioned, error) {
	resp, err := p.tp.request(envelope{Kind: kindStoreSet, Seq: p.tp.nextSeq(), Key: name, Value: value})
	if err != nil {
		return store.Versioned{}, fmt.Errorf("childproc: store set %q: %w", name, err)
	}
	if resp.ErrorText != "" {
		return store.Versioned{}, fmt.Errorf("childproc: store set %q: %s", name, resp.ErrorText)
	}
	return store.Versioned{Value: value, Version: resp.Version}, nil
}

func (p *StoreProxy) List() map[string]uint64 {
	resp, err := p.tp.request(envelope{Kind: kindStoreList, Seq: p.tp.nextSeq()})
	if err != nil {
		return nil
	}
	return resp.List
}

var _ store.Backend = (*StoreProxy)(nil)
