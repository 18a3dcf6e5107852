// Package serialize implements the serializer probe (spec §4.1): a
// face-value check for whether a value is safe to place in the
// cross-process shared store.
//
// No recursive deep-copy is performed. Containers are accepted on face
// value; actual marshalling across the process boundary is the shared
// store's problem (see package store and package childproc), not this
// package's.
package serialize

import (
	"reflect"

	"github.com/joeycumines/go-brain/logging"
)

// Probe reports whether v is safe to place in the shared store. The
// recognized set, per spec §4.1, is: logger handles, integers,
// floating-point numbers, strings, byte strings, ordered sequences, sets,
// mappings, tuples (structs, in this port), and nil.
func Probe(v any) bool {
	if v == nil {
		return true
	}
	if _, ok := v.(logging.Logger); ok {
		return true
	}
	return probeType(reflect.TypeOf(v), make(map[reflect.Type]bool))
}

func probeType(t reflect.Type, seen map[reflect.Type]bool) bool {
	if t == nil {
		return true
	}
	if seen[t] {
		// A type that recurses into itself (e.g. a linked structure) is
		// accepted on face value: the probe never deep-copies, it only
		// decides admission, so cycles can't cause non-termination here.
		return true
	}
	seen[t] = true

	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true

	case reflect.Slice, reflect.Array:
		return probeType(t.Elem(), seen)

	case reflect.Map:
		return probeType(t.Key(), seen) && probeType(t.Elem(), seen)

	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			if !probeType(f.Type, seen) {
				return false
			}
		}
		return true

	case reflect.Interface:
		// An interface-typed field can't be inspected without a concrete
		// value; admit it and let the concrete value (caught above, via
		// reflect.TypeOf on the actual value) be the real gate when one is
		// ever assigned.
		return true

	case reflect.Ptr:
		return probeType(t.Elem(), seen)

	default:
		// Channels, functions, unsafe pointers, and complex numbers are
		// not serializable across a process boundary.
		return false
	}
}
