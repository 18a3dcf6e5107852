// Package childproc implements the cross-process execution and shared
// store transport (spec §4.4 Policy C, §4.5's "Cross-process shared
// mapping" design note): one OS process per Brain, spawned lazily,
// running a trivial loop that dequeues wrapper requests and executes
// them synchronously, plus a get/set/list protocol over the same pipe
// for the shared store.
//
// The wire format is encoding/gob (see SPEC_FULL.md §4 for why no
// third-party codec was used): both ends are the same binary, re-exec'd,
// so there is no cross-version compatibility concern, which is exactly
// what gob is suited for. Result/value payloads of custom struct types
// must be registered with gob.Register by the host, same as any other
// gob usage.
package childproc

import (
	"encoding/gob"
	"time"
)

func init() {
	// Register the value types that occur in practice without any action
	// from the host. Custom result/state types must be registered by the
	// host itself, the same as any other encoding/gob usage.
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register("")
	gob.Register([]byte(nil))
	gob.Register([]any(nil))
	gob.Register(map[string]any(nil))
}

// kind discriminates envelope payloads on the wire.
type kind uint8

const (
	kindTaskRequest kind = iota
	kindTaskResponse
	kindStoreGet
	kindStoreGetResponse
	kindStoreSet
	kindStoreSetResponse
	kindStoreList
	kindStoreListResponse
	kindAbort
)

// envelope is the single message type exchanged in both directions. Seq
// pairs a response with its request so the transport can be used
// concurrently. Requests to one child are written to the pipe in the
// order they are sent, but the Worker runs each task request in its own
// goroutine, so requests are not serialized in the child and their
// responses may arrive in any order; Seq is what matches them up.
type envelope struct {
	Kind kind
	Seq  uint64

	// kindTaskRequest / kindTaskResponse
	TaskName    string
	HasTimeout  bool
	Timeout     time.Duration
	Status      int32
	Result      any
	ErrorText   string
	FaultOccurred bool

	// kindStoreGet / kindStoreSet / kindStoreList and their responses
	Key     string
	Value   any
	Version uint64
	Found   bool
	List    map[string]uint64
}
