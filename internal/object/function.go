package object

import (
	"ember/internal/code"
	"ember/internal/oid"
)

// Thread is the minimal call surface the object model needs from the
// interpreter to invoke a callable from native code (e.g. a map/filter
// iterator calling its callback). Kept here, not in package interp, so
// object never imports interp.
type Thread interface {
	Heap
	Call(callee oid.ObjectId, args []oid.ObjectId) (oid.ObjectId, error)
}

// NativeFn is a host function conforming to the extension ABI (§6.3/§6.4).
type NativeFn func(t Thread, args []oid.ObjectId) (oid.ObjectId, error)

// Function is either Native (a Go function pointer) or Scripted (owns a
// reference to its Code and an optional captured-variable cell list).
type Function struct {
	Header
	Name     string
	Native   NativeFn     // nil if scripted
	CodeID   oid.ObjectId // oid.Invalid if native; references a CodeObj
	Captures []oid.ObjectId // closure cells, nil if not a closure
	NumArgs  int
}

func (o *Function) Kind() Kind    { return KFunction }
func (o *Function) Head() *Header { return &o.Header }
func (o *Function) References() []oid.ObjectId {
	refs := make([]oid.ObjectId, 0, len(o.Captures)+1)
	if o.CodeID.Valid() {
		refs = append(refs, o.CodeID)
	}
	refs = append(refs, o.Captures...)
	return refs
}

func (o *Function) IsNative() bool { return o.Native != nil }

// CodeObj wraps a compiled code.Code as a heap value (spec's Code value
// variant); the GC traces its constant pool through References.
type CodeObj struct {
	Header
	Code *code.Code
}

func (o *CodeObj) Kind() Kind    { return KCode }
func (o *CodeObj) Head() *Header { return &o.Header }
func (o *CodeObj) References() []oid.ObjectId {
	return append([]oid.ObjectId(nil), o.Code.Constants...)
}

// Cell is a closure cell: a heap slot holding a captured variable,
// shared between the enclosing function's locals and a closure's
// captured environment.
type Cell struct {
	Header
	Value oid.ObjectId
}

func (o *Cell) Kind() Kind    { return KExtension } // internal bookkeeping value, not a §6.2 class
func (o *Cell) Head() *Header { return &o.Header }
func (o *Cell) References() []oid.ObjectId {
	if o.Value.Valid() {
		return []oid.ObjectId{o.Value}
	}
	return nil
}

// Module is a named registry of exports (spec §3.1, §4.5).
type Module struct {
	Header
	Name    string
	Exports map[string]oid.ObjectId
}

func NewModule(name string) *Module {
	return &Module{Name: name, Exports: make(map[string]oid.ObjectId)}
}

func (o *Module) Kind() Kind    { return KModule }
func (o *Module) Head() *Header { return &o.Header }
func (o *Module) References() []oid.ObjectId {
	refs := make([]oid.ObjectId, 0, len(o.Exports))
	for _, v := range o.Exports {
		refs = append(refs, v)
	}
	return refs
}
