package object

import "ember/internal/oid"

// IteratorState is the polymorphic state machine behind an Iterator
// value (spec §3.5). Concrete states (range, list, string, map/filter
// composition, hashmap/hashset walkers, file line-readers) live next to
// whatever package constructs them (mostly internal/interp), since
// advancing most of them needs a Thread to invoke callbacks.
type IteratorState interface {
	// Next advances the iterator; ok is false on exhaustion.
	Next(t Thread) (value oid.ObjectId, ok bool, err error)
	// References returns objects this state keeps alive (upstream
	// iterator, callback, collection snapshot).
	References() []oid.ObjectId
}

// Iterator is `Iterator { src, state }` (spec §3.1, §3.5).
type Iterator struct {
	Header
	Src   oid.ObjectId
	State IteratorState
}

func (o *Iterator) Kind() Kind    { return KIterator }
func (o *Iterator) Head() *Header { return &o.Header }
func (o *Iterator) References() []oid.ObjectId {
	refs := []oid.ObjectId{}
	if o.Src.Valid() {
		refs = append(refs, o.Src)
	}
	if o.State != nil {
		refs = append(refs, o.State.References()...)
	}
	return refs
}

// FutureState is a Future's life-cycle state (spec §4.4).
type FutureState uint8

const (
	FutureRunning FutureState = iota
	FutureSuspended
	FutureCompleted
	FutureCancelled
)

// SuspendedFrame is the saved (ip, operand_stack, locals) of a yielded
// frame; internal/interp supplies the concrete implementation so this
// package doesn't need to know about call frames.
type SuspendedFrame interface {
	References() []oid.ObjectId
}

// Future encapsulates a suspended frame and its life-cycle state
// (spec §3.1, §4.4, §9).
type Future struct {
	Header
	State  FutureState
	Frame  SuspendedFrame
	Result oid.ObjectId // valid once Completed
}

func (o *Future) Kind() Kind    { return KFuture }
func (o *Future) Head() *Header { return &o.Header }
func (o *Future) References() []oid.ObjectId {
	var refs []oid.ObjectId
	if o.Frame != nil {
		refs = append(refs, o.Frame.References()...)
	}
	if o.Result.Valid() {
		refs = append(refs, o.Result)
	}
	return refs
}

// Extension is a boxed trait object for host-extension types (spec §3.1).
type Extension interface {
	TypeName() string
	GetReference() []oid.ObjectId
}

// ExtensionObj wraps a host Extension value as a heap object.
type ExtensionObj struct {
	Header
	Payload Extension
}

func (o *ExtensionObj) Kind() Kind    { return KExtension }
func (o *ExtensionObj) Head() *Header { return &o.Header }
func (o *ExtensionObj) References() []oid.ObjectId {
	return o.Payload.GetReference()
}
