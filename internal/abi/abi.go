// Package abi exports the fixed extension ABI (spec §4.6, C6): a closed
// set of helper functions a JIT or native module calls instead of
// stepping the interpreter's bytecode dispatch loop. Most helpers take
// a thread handle, and each mirrors one interpreter opcode family bit-for-bit
// (binary_op mirrors OpAdd/OpSub/..., get_iter mirrors OpIterSetup, and
// so on) so a compiled trace observes identical results to the
// bytecode path (spec §7 testable property 5).
//
// A real accelerator would link against these names directly. Ember
// implements the dispatch-mirroring helpers for real; it does not
// implement a code generator behind them (see internal/jit and
// DESIGN.md).
package abi

import (
	"ember/internal/gc"
	"ember/internal/interp"
	"ember/internal/object"
	"ember/internal/oid"
	"ember/internal/rt"
)

// BinaryOp mirrors the interpreter's two-tier operator dispatch (spec
// §4.1, §4.4): the fast-path table first, then the class's
// offset-attr chain. It is the same algorithm interp.Thread.binary uses
// internally, duplicated here because that method is private to its
// package — a JIT never reaches into interp's dispatch loop, it calls
// this ABI surface instead.
func BinaryOp(t *interp.Thread, off object.BinaryOffset, left, right oid.ObjectId) (oid.ObjectId, *rt.Error) {
	if lb, lok := builtinOf(t.Heap, left); lok {
		if rb, rok := builtinOf(t.Heap, right); rok {
			if fn, ok := t.VM.FastTable().Lookup(lb, rb, off); ok {
				id, err := fn(t.Heap, left, right)
				return id, wrap(err)
			}
		}
	}
	if callee, ok := object.GetOffsetAttr(t.Heap, left, off); ok {
		id, err := t.Call(callee, []oid.ObjectId{left, right})
		return id, wrap(err)
	}
	return oid.Invalid, rt.New(rt.KindType, "unsupported operand type")
}

// CompareTest runs a comparison BinaryOffset (OffLess, OffEqual, ...)
// through BinaryOp and collapses the resulting Bool object to a Go
// bool, the shape a JIT's conditional branch wants instead of an
// ObjectId it would have to re-dereference.
func CompareTest(t *interp.Thread, off object.BinaryOffset, left, right oid.ObjectId) (bool, *rt.Error) {
	result, aerr := BinaryOp(t, off, left, right)
	if aerr != nil {
		return false, aerr
	}
	return truthy(t.Heap, result), nil
}

// GetObjByName resolves a global by name against a module then the
// VM-wide builtins map, mirroring OpLoadGlobal.
func GetObjByName(t *interp.Thread, module *object.Module, name string) (oid.ObjectId, *rt.Error) {
	if id, ok := t.VM.Global(module, name); ok {
		return id, nil
	}
	return oid.Invalid, rt.Newf(rt.KindName, "undefined global %q", name)
}

// GetAttr mirrors OpDotGet: instance attrs first, then the class's
// attribute map walking the parent chain.
func GetAttr(t *interp.Thread, obj oid.ObjectId, name string) (oid.ObjectId, *rt.Error) {
	if id, ok := object.GetAttr(t.Heap, obj, name); ok {
		return id, nil
	}
	return oid.Invalid, rt.Newf(rt.KindName, "no attribute %q", name)
}

// CallFn mirrors OpCall, enforcing the VM's configured recursion
// ceiling (spec §4.6 "must match interpreter semantics bit-for-bit" —
// the interpreter itself does not bound call depth, so native callers
// that can recurse arbitrarily, unlike bytecode loops that eventually
// hit a branch, must check it themselves).
func CallFn(t *interp.Thread, maxDepth int, callee oid.ObjectId, args []oid.ObjectId) (oid.ObjectId, *rt.Error) {
	if maxDepth > 0 && t.Depth() >= maxDepth {
		return oid.Invalid, rt.New(rt.KindFatal, "maximum call depth exceeded")
	}
	id, err := t.Call(callee, args)
	return id, wrap(err)
}

// GetConstant mirrors OpLoadConst: a direct index into the current
// Code's constant pool.
func GetConstant(c *object.CodeObj, index int) (oid.ObjectId, *rt.Error) {
	if index < 0 || index >= len(c.Code.Constants) {
		return oid.Invalid, rt.Newf(rt.KindIndex, "constant index %d out of range", index)
	}
	return c.Code.Constants[index], nil
}

// LoadInteger/LoadString/LoadFloat unwrap the underlying Go value from
// a tagged object, the shape a JIT's typed registers want instead of
// an opaque ObjectId.
func LoadInteger(h object.Heap, id oid.ObjectId) (int64, *rt.Error) {
	v, ok := h.Get(id).(*object.Integer)
	if !ok {
		return 0, rt.New(rt.KindType, "not an integer")
	}
	return v.Value, nil
}

func LoadString(h object.Heap, id oid.ObjectId) (string, *rt.Error) {
	v, ok := h.Get(id).(*object.String)
	if !ok {
		return "", rt.New(rt.KindType, "not a string")
	}
	return v.Value, nil
}

func LoadFloat(h object.Heap, id oid.ObjectId) (float64, *rt.Error) {
	v, ok := h.Get(id).(*object.Float)
	if !ok {
		return 0, rt.New(rt.KindType, "not a float")
	}
	return v.Value, nil
}

func LoadList(h object.Heap, id oid.ObjectId) ([]oid.ObjectId, *rt.Error) {
	v, ok := h.Get(id).(*object.List)
	if !ok {
		return nil, rt.New(rt.KindType, "not a list")
	}
	return v.Items, nil
}

// GetIter mirrors OpIterSetup: construct an Iterator over a Range,
// List, HashMap or HashSet value (or pass an existing Iterator through
// unchanged).
func GetIter(t *interp.Thread, src oid.ObjectId) (oid.ObjectId, *rt.Error) {
	if _, ok := t.Heap.Get(src).(*object.Iterator); ok {
		return src, nil
	}
	it, err := interp.NewIterator(t.Heap, src)
	if err != nil {
		return oid.Invalid, wrap(err)
	}
	return t.Heap.Alloc(it), nil
}

// GetNext mirrors OpIterNext: advance an Iterator one step.
func GetNext(t *interp.Thread, iterID oid.ObjectId) (value oid.ObjectId, done bool, aerr *rt.Error) {
	it, ok := t.Heap.Get(iterID).(*object.Iterator)
	if !ok {
		return oid.Invalid, true, rt.New(rt.KindType, "not an iterator")
	}
	v, ok, err := it.State.Next(t)
	if err != nil {
		return oid.Invalid, true, wrap(err)
	}
	if !ok {
		return oid.Invalid, true, nil
	}
	return v, false, nil
}

// BinaryRange mirrors OpRange: build a Range value from two Integer
// bounds, left inclusive, right exclusive (spec §3.1 "Range: [lo, hi)").
func BinaryRange(t *interp.Thread, lo, hi oid.ObjectId) (oid.ObjectId, *rt.Error) {
	loV, err := LoadInteger(t.Heap, lo)
	if err != nil {
		return oid.Invalid, err
	}
	hiV, err := LoadInteger(t.Heap, hi)
	if err != nil {
		return oid.Invalid, err
	}
	return t.Heap.Alloc(&object.Range{Lo: loV, Hi: hiV}), nil
}

// CheckGC is the cooperative safe-point poll: native code calls this
// between loop iterations exactly where the interpreter's bytecode loop
// calls VMContext.Safepoint (spec §4.2 "cooperative safe-points").
func CheckGC(t *interp.Thread) {
	t.VM.Safepoint()
}

// GCCollect forces an immediate major collection, the explicit trigger
// spec.md §4.6 lists alongside the cooperative check_gc poll. The
// caller supplies the collector and coordinator directly (the abi
// package has no VM-level handle of its own) — in practice these come
// from the same vm.VM a Thread was built from.
func GCCollect(coll *gc.Collector, coord gc.Coordinator) gc.Stats {
	return coll.CollectMajor(coord)
}

// Malloc/Free back the ABI's scratch argument arrays (spec §4.6
// "malloc/free for scratch argument arrays"). Ember's GC only ever
// manages object.Object values through the heap; a JIT's raw scratch
// buffers are plain Go memory the garbage collector never traces, so
// these are deliberately not heap allocations.
func Malloc(n int) []oid.ObjectId { return make([]oid.ObjectId, n) }
func Free(buf []oid.ObjectId)     { _ = buf }

func wrap(err error) *rt.Error {
	if err == nil {
		return nil
	}
	if re, ok := err.(*rt.Error); ok {
		return re
	}
	return rt.Wrap(rt.KindRuntime, "extension ABI call failed", err)
}

func truthy(h object.Heap, id oid.ObjectId) bool {
	switch v := h.Get(id).(type) {
	case *object.Bool:
		return v.Value
	case *object.None:
		return false
	case *object.Integer:
		return v.Value != 0
	case *object.Float:
		return v.Value != 0
	case *object.String:
		return v.Value != ""
	case *object.List:
		return len(v.Items) != 0
	default:
		return true
	}
}

func builtinOf(h object.Heap, id oid.ObjectId) (object.BuiltinClass, bool) {
	switch h.Get(id).(type) {
	case *object.Integer:
		return object.BInteger, true
	case *object.Float:
		return object.BFloat, true
	case *object.String:
		return object.BString, true
	case *object.Bytes:
		return object.BBytes, true
	case *object.Bool:
		return object.BBool, true
	case *object.None:
		return object.BNone, true
	case *object.List:
		return object.BList, true
	case *object.Range:
		return object.BRange, true
	case *object.HashMap:
		return object.BHashMap, true
	case *object.HashSet:
		return object.BHashSet, true
	default:
		return 0, false
	}
}
