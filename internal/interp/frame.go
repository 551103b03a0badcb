// Package interp implements the per-thread stack interpreter (spec
// §4.4): a dispatch loop over internal/code basic blocks, operand stack,
// call frames, exception unwinding and generator/future suspension,
// addressed by internal/code.Addr per spec §3.3/§4.4.
package interp

import (
	"ember/internal/code"
	"ember/internal/oid"
)

// catchEntry is one active try region: a handler address plus the
// operand-stack depth to restore to on unwind.
type catchEntry struct {
	handler  code.Addr
	stackLen int
	excName  string
}

// Frame is one call's execution state: its code, local slots, operand
// stack, instruction pointer and active try/catch entries. It also
// implements object.SuspendedFrame so a yielded Frame can be boxed into
// a Future (spec §3.1, §4.4).
type Frame struct {
	Code     *code.Code
	Locals   []oid.ObjectId
	Cells    []oid.ObjectId // closure cells captured by this frame's function
	Stack    []oid.ObjectId
	IP       code.Addr
	Catches  []catchEntry
	Receiver oid.ObjectId // bound `self`, oid.Invalid if none
}

func newFrame(c *code.Code, cells []oid.ObjectId) *Frame {
	return &Frame{
		Code:   c,
		Locals: make([]oid.ObjectId, c.NumLocals),
		Cells:  cells,
		Stack:  make([]oid.ObjectId, 0, 8),
		IP:     code.Addr{Block: 0, Offset: 0},
	}
}

func (f *Frame) push(id oid.ObjectId) { f.Stack = append(f.Stack, id) }

func (f *Frame) pop() oid.ObjectId {
	n := len(f.Stack)
	id := f.Stack[n-1]
	f.Stack = f.Stack[:n-1]
	return id
}

func (f *Frame) peek() oid.ObjectId { return f.Stack[len(f.Stack)-1] }

// References implements object.SuspendedFrame: everything a GC trace
// must keep alive while this frame is parked inside a Future.
func (f *Frame) References() []oid.ObjectId {
	refs := make([]oid.ObjectId, 0, len(f.Locals)+len(f.Stack)+len(f.Cells)+1)
	refs = append(refs, f.Locals...)
	refs = append(refs, f.Stack...)
	refs = append(refs, f.Cells...)
	if f.Receiver.Valid() {
		refs = append(refs, f.Receiver)
	}
	return refs
}
