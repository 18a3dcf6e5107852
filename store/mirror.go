package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/joeycumines/go-brain/internal/diag"
	"github.com/joeycumines/go-brain/logging"
	"github.com/joeycumines/go-brain/serialize"
)

// DefaultSyncInterval is the synchronization routine's default tick
// period (spec §4.5: "refresh_rate (default 0.01 s)").
const DefaultSyncInterval = 10 * time.Millisecond

// entry is a mirror's local cache of one key, plus any write pending
// flush to the backend on the next tick.
type entry struct {
	value   any
	version uint64
	dirty   bool // set locally since the last tick, not yet pushed
}

// Mirror is a per-process local view of the shared store (spec §3:
// "Shared-store mirror"). Reads and writes are transparent to callers;
// Sync is what actually ferries values to and from the backend. Get
// never re-fetches from the backend: it only ever returns what the last
// Sync tick (or a local Set) established.
type Mirror struct {
	mu      sync.Mutex
	backend Backend
	local   map[string]entry
	logger  logging.Logger
	name    string
	diag    *diag.Diag
}

// NewMirror creates a Mirror backed by backend.
func NewMirror(backend Backend, logger logging.Logger) *Mirror {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Mirror{backend: backend, local: make(map[string]entry), logger: logger}
}

// SetDiag wires the supervisor's own diagnostics into this Mirror, so a
// failed synchronization tick is also recorded alongside the rest of the
// supervisor's internal logging, tagged with the owning Brain's name.
// Optional: without it, Sync failures are still reported through the
// Mirror's own logging.Logger, just not through diag.
func (m *Mirror) SetDiag(name string, d *diag.Diag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	m.diag = d
}

// Get returns the locally known value for name, and whether it is known
// at all (it may simply not have been synced yet, or may never have
// passed the serializer probe, in which case it was never shared).
func (m *Mirror) Get(name string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.local[name]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set assigns value to name. If name is already known to the mirror, the
// write is accepted immediately (read-your-writes) and queued for the
// next Sync tick. If name is new, the serializer probe runs first (spec
// §4.5: "Adding a key: a mirror that assigns an unknown public name
// re-runs the serializer probe on the value"); on failure Set returns an
// error, the mirror does not record the value, and nothing is queued for
// Sync. Logging the failure is left to the caller (brain.Init, which is
// the only other place attributes are admitted, logs it as a warning).
func (m *Mirror) Set(name string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, known := m.local[name]
	if !known && !serialize.Probe(value) {
		return fmt.Errorf("store: value for %q failed the serializer probe", name)
	}
	e.value = value
	e.dirty = true
	m.local[name] = e
	return nil
}

// Keys returns the names currently known to the mirror.
func (m *Mirror) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.local))
	for k := range m.local {
		out = append(out, k)
	}
	return out
}

// Sync performs one synchronization tick (spec §4.5): push every local
// write recorded since the last tick, then pull every backend key whose
// version is newer than the mirror's own. Within a tick, the mirror's
// own pending value for a key is treated as the newest (it is pushed
// first, so a subsequent pull of that same key simply confirms the
// version the push itself produced).
func (m *Mirror) Sync(ctx context.Context) error {
	m.mu.Lock()
	dirty := make(map[string]any)
	for k, e := range m.local {
		if e.dirty {
			dirty[k] = e.value
		}
	}
	m.mu.Unlock()

	for k, v := range dirty {
		if err := ctx.Err(); err != nil {
			return err
		}
		nv, err := m.backend.Set(k, v)
		if err != nil {
			return fmt.Errorf("store: sync push %q: %w", k, err)
		}
		m.mu.Lock()
		e := m.local[k]
		// Only clear dirty if nothing wrote again while we were pushing.
		if !e.dirty || reflect.DeepEqual(e.value, v) {
			e.version = nv.Version
			e.dirty = false
		}
		m.local[k] = e
		m.mu.Unlock()
	}

	remote := m.backend.List()
	for k, remoteVersion := range remote {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.mu.Lock()
		e, known := m.local[k]
		m.mu.Unlock()
		if known && (e.dirty || e.version >= remoteVersion) {
			continue
		}
		v, ok := m.backend.Get(k)
		if !ok {
			continue
		}
		m.mu.Lock()
		m.local[k] = entry{value: v.Value, version: v.Version}
		m.mu.Unlock()
	}
	return nil
}

// Run starts the synchronization routine: it ticks Sync every interval
// until ctx is done, logging (at Warning) any tick that fails, e.g.
// because the backend is a dead child process (spec §7: "Transport
// fault"). It returns once ctx is cancelled.
func (m *Mirror) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Sync(ctx); err != nil && ctx.Err() == nil {
				m.logger.Log(fmt.Sprintf("[store] synchronization tick failed: %v", err), logging.Warning)
				m.mu.Lock()
				name, d := m.name, m.diag
				m.mu.Unlock()
				if d != nil {
					d.SyncTickFailed(name, err)
				}
			}
		}
	}
}
