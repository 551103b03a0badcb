package interp

import (
	"strings"

	"ember/internal/code"
	"ember/internal/object"
	"ember/internal/oid"
	"ember/internal/rt"
)

var errNotIterable = rt.New(rt.KindType, "object is not iterable")

// VMContext is the surface a Thread needs from the shared VM: class and
// global resolution, construction, module loading, the fast-path table
// and a cooperative stop-the-world checkpoint (spec §4.5, §5).
type VMContext interface {
	ClassID(b object.BuiltinClass) oid.ObjectId
	Global(module *object.Module, name string) (oid.ObjectId, bool)
	SetGlobal(module *object.Module, name string, id oid.ObjectId)
	NewInstance(t *Thread, classID oid.ObjectId, args []oid.ObjectId) (oid.ObjectId, error)
	Import(t *Thread, dotted []string) (oid.ObjectId, error)
	FastTable() *FastTable
	True() oid.ObjectId
	False() oid.ObjectId
	None() oid.ObjectId
	// Safepoint blocks the calling goroutine while a stop-the-world
	// collection is in progress (spec §4.2 "cooperative safe-points").
	Safepoint()
}

// Thread is one interpreter thread: its own call-frame stack, sharing
// the heap and class/module registries with every other thread in the
// process (spec §4.4, §5 "no global interpreter lock").
type Thread struct {
	Heap   object.Heap
	VM     VMContext
	Module *object.Module

	frames []*Frame
}

func New(heap object.Heap, vm VMContext, module *object.Module) *Thread {
	return &Thread{Heap: heap, VM: vm, Module: module}
}

// object.Heap passthrough so a Thread satisfies object.Thread.
func (t *Thread) Alloc(o object.Object) oid.ObjectId       { return t.Heap.Alloc(o) }
func (t *Thread) Get(id oid.ObjectId) object.Object        { return t.Heap.Get(id) }
func (t *Thread) WriteBarrier(owner, child oid.ObjectId)   { t.Heap.WriteBarrier(owner, child) }

// Roots returns every object reachable from this thread's active call
// frames, for the collector's coordinator to gather (spec §4.2 step 3).
func (t *Thread) Roots() []oid.ObjectId {
	var roots []oid.ObjectId
	for _, f := range t.frames {
		roots = append(roots, f.References()...)
	}
	return roots
}

// Depth reports the current call-frame stack depth, consulted by native
// callers (the extension ABI's call_fn helper) that want to enforce a
// recursion ceiling Thread itself does not bound.
func (t *Thread) Depth() int { return len(t.frames) }

// Call invokes a Function or constructs a Class instance (spec §4.1
// "__new__ convention", §4.4).
func (t *Thread) Call(callee oid.ObjectId, args []oid.ObjectId) (oid.ObjectId, error) {
	obj := t.Heap.Get(callee)
	switch v := obj.(type) {
	case *object.Function:
		return t.callFunction(v, args)
	case *object.Class:
		return t.VM.NewInstance(t, callee, args)
	default:
		return oid.Invalid, rt.New(rt.KindType, "object is not callable")
	}
}

func (t *Thread) callFunction(fn *object.Function, args []oid.ObjectId) (oid.ObjectId, error) {
	if fn.IsNative() {
		return fn.Native(t, args)
	}
	codeObj, ok := t.Heap.Get(fn.CodeID).(*object.CodeObj)
	if !ok {
		return oid.Invalid, rt.New(rt.KindFatal, "function has no attached code")
	}
	frame := newFrame(codeObj.Code, fn.Captures)
	for i, name := range codeObj.Code.Params {
		if i >= len(args) {
			break
		}
		if slot, ok := codeObj.Code.VarMap[name]; ok {
			frame.Locals[slot] = args[i]
		}
	}
	if codeObj.Code.IsGenerator {
		return t.makeGenerator(frame)
	}
	return t.run(frame)
}

func (t *Thread) makeGenerator(f *Frame) (oid.ObjectId, error) {
	fut := &object.Future{State: object.FutureSuspended, Frame: f}
	return t.Heap.Alloc(fut), nil
}

// Advance drives a suspended generator/future one step (spec §4.4
// "Yield", §9 "generators via Future").
func (t *Thread) Advance(futureID oid.ObjectId) (value oid.ObjectId, done bool, err error) {
	obj := t.Heap.Get(futureID)
	fut, ok := obj.(*object.Future)
	if !ok {
		return oid.Invalid, false, rt.New(rt.KindType, "object is not a generator")
	}
	if fut.State == object.FutureCompleted {
		return fut.Result, true, nil
	}
	frame, ok := fut.Frame.(*Frame)
	if !ok {
		return oid.Invalid, false, rt.New(rt.KindFatal, "corrupt generator state")
	}
	fut.State = object.FutureRunning
	val, yielded, lerr := t.loop(frame)
	if lerr != nil {
		fut.State = object.FutureCompleted
		return oid.Invalid, false, lerr
	}
	if yielded {
		fut.State = object.FutureSuspended
		return val, false, nil
	}
	fut.State = object.FutureCompleted
	fut.Result = val
	return val, true, nil
}

func (t *Thread) run(f *Frame) (oid.ObjectId, error) {
	val, yielded, err := t.loop(f)
	if err != nil {
		return oid.Invalid, err
	}
	if yielded {
		return oid.Invalid, rt.New(rt.KindFatal, "yield outside a generator function")
	}
	return val, nil
}

// loop is the dispatch loop shared by ordinary calls and generator
// resumption: all mutable execution state lives in *Frame, so resuming
// a yielded frame is just calling loop again (spec §4.4).
func (t *Thread) loop(f *Frame) (value oid.ObjectId, yielded bool, err error) {
	t.frames = append(t.frames, f)
	defer func() { t.frames = t.frames[:len(t.frames)-1] }()

	for {
		t.VM.Safepoint()
		instr, ok := f.Code.At(f.IP)
		if !ok {
			return oid.Invalid, false, rt.New(rt.KindFatal, "instruction pointer out of range")
		}
		if instr.Op == code.OpYield {
			v := f.pop()
			f.IP, _ = f.Code.Next(f.IP)
			return v, true, nil
		}
		done, retVal, stepErr := t.step(f, instr)
		if stepErr != nil {
			if t.catch(f, stepErr) {
				continue
			}
			return oid.Invalid, false, stepErr
		}
		if done {
			return retVal, false, nil
		}
	}
}

func (t *Thread) catch(f *Frame, err error) bool {
	rerr, ok := err.(*rt.Error)
	if !ok || rerr.IsFatal() {
		return false
	}
	for len(f.Catches) > 0 {
		entry := f.Catches[len(f.Catches)-1]
		f.Catches = f.Catches[:len(f.Catches)-1]
		if entry.stackLen <= len(f.Stack) {
			f.Stack = f.Stack[:entry.stackLen]
		}
		f.push(t.boxException(rerr))
		f.IP = entry.handler
		return true
	}
	return false
}

func (t *Thread) boxException(rerr *rt.Error) oid.ObjectId {
	inst := object.NewInstance(t.VM.ClassID(object.BException))
	inst.Attrs["message"] = t.Heap.Alloc(&object.String{Value: rerr.Message})
	inst.Attrs["kind"] = t.Heap.Alloc(&object.String{Value: string(rerr.Kind)})
	return t.Heap.Alloc(inst)
}

// step executes one instruction. It returns done=true with the frame's
// return value only for OpReturn; every other case advances f.IP itself
// (either sequentially or via an explicit jump) before returning.
func (t *Thread) step(f *Frame, instr code.Instr) (done bool, retVal oid.ObjectId, err error) {
	advance := func() { f.IP, _ = f.Code.Next(f.IP) }

	switch instr.Op {
	case code.OpLoadLocal:
		f.push(f.Locals[instr.Int])
	case code.OpLoadConst:
		f.push(f.Code.Constants[instr.Int])
	case code.OpLoadGlobal:
		id, ok := t.VM.Global(t.Module, instr.Str)
		if !ok {
			return false, oid.Invalid, rt.Newf(rt.KindName, "name %q is not defined", instr.Str)
		}
		f.push(id)
	case code.OpLoadUpvalue:
		cell, _ := t.Heap.Get(f.Cells[instr.Int]).(*object.Cell)
		f.push(cell.Value)
	case code.OpLoadNone:
		f.push(t.VM.None())
	case code.OpLoadTrue:
		f.push(t.VM.True())
	case code.OpLoadFalse:
		f.push(t.VM.False())

	case code.OpStoreLocal:
		f.Locals[instr.Int] = f.pop()
	case code.OpStoreGlobal:
		t.VM.SetGlobal(t.Module, instr.Str, f.pop())
	case code.OpStoreUpvalue:
		v := f.pop()
		cellID := f.Cells[instr.Int]
		cell, _ := t.Heap.Get(cellID).(*object.Cell)
		cell.Value = v
		t.Heap.WriteBarrier(cellID, v)

	case code.OpAdd, code.OpSub, code.OpMul, code.OpDiv, code.OpReminder,
		code.OpLess, code.OpGreater, code.OpLessEqual, code.OpGreaterEqual,
		code.OpEqual, code.OpNotEqual, code.OpGetItem:
		right := f.pop()
		left := f.pop()
		result, berr := t.binary(binaryOffsetFor(instr.Op), left, right)
		if berr != nil {
			return false, oid.Invalid, berr
		}
		f.push(result)
	case code.OpSetItem:
		value := f.pop()
		key := f.pop()
		obj := f.pop()
		if serr := t.setItem(obj, key, value); serr != nil {
			return false, oid.Invalid, serr
		}
	case code.OpRange:
		hi := f.pop()
		lo := f.pop()
		loInt, ok1 := t.Heap.Get(lo).(*object.Integer)
		hiInt, ok2 := t.Heap.Get(hi).(*object.Integer)
		if !ok1 || !ok2 {
			return false, oid.Invalid, rt.New(rt.KindType, "range bounds must be integers")
		}
		f.push(t.Heap.Alloc(&object.Range{Lo: loInt.Value, Hi: hiInt.Value}))
	case code.OpDotGet:
		obj := f.pop()
		id, ok := object.GetAttr(t.Heap, obj, instr.Str)
		if !ok {
			return false, oid.Invalid, rt.Newf(rt.KindName, "no attribute %q", instr.Str)
		}
		f.push(id)
	case code.OpDotSet:
		value := f.pop()
		obj := f.pop()
		switch target := t.Heap.Get(obj).(type) {
		case *object.Instance:
			target.Attrs[instr.Str] = value
		case *object.Class:
			// Class-body compilation binds every method this way
			// (spec §3.2/§4.3 ClassDef); a dunder operator name also
			// wires the dense BinaryOffset dispatch slot.
			target.SetAttr(instr.Str, value)
			if off, ok := object.DunderOffsets[instr.Str]; ok {
				target.SetOffsetAttr(off, value)
			}
		default:
			return false, oid.Invalid, rt.New(rt.KindType, "cannot set attribute on this value")
		}
		t.Heap.WriteBarrier(obj, value)
	case code.OpAnd:
		right := f.pop()
		left := f.pop()
		if !isTruthy(t.Heap, left) {
			f.push(left)
		} else {
			f.push(right)
		}
	case code.OpOr:
		right := f.pop()
		left := f.pop()
		if isTruthy(t.Heap, left) {
			f.push(left)
		} else {
			f.push(right)
		}

	case code.OpNot:
		v := f.pop()
		f.push(t.boolObj(!isTruthy(t.Heap, v)))
	case code.OpNegate:
		v := f.pop()
		switch n := t.Heap.Get(v).(type) {
		case *object.Integer:
			f.push(t.Heap.Alloc(&object.Integer{Value: -n.Value}))
		case *object.Float:
			f.push(t.Heap.Alloc(&object.Float{Value: -n.Value}))
		default:
			return false, oid.Invalid, rt.New(rt.KindType, "operand does not support negation")
		}

	case code.OpPop:
		f.pop()
	case code.OpDup:
		f.push(f.peek())

	case code.OpCall:
		n := int(instr.Int)
		args := make([]oid.ObjectId, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = f.pop()
		}
		callee := f.pop()
		if instr.Str == "self" {
			recv := f.pop()
			args = append([]oid.ObjectId{recv}, args...)
		}
		result, cerr := t.Call(callee, args)
		if cerr != nil {
			return false, oid.Invalid, cerr
		}
		f.push(result)
	case code.OpReturn:
		return true, f.pop(), nil

	case code.OpJump:
		f.IP = instr.Target
		return false, oid.Invalid, nil
	case code.OpBranchIfTrue:
		v := f.pop()
		if isTruthy(t.Heap, v) {
			f.IP = instr.Target
		} else {
			advance()
		}
		return false, oid.Invalid, nil
	case code.OpBranchIfFalse, code.OpWhileTest, code.OpIfTest:
		v := f.pop()
		if !isTruthy(t.Heap, v) {
			f.IP = instr.Target
		} else {
			advance()
		}
		return false, oid.Invalid, nil
	case code.OpWhileEnd:
		// Loop-end marker; no runtime effect beyond falling through.

	case code.OpIterSetup:
		src := f.pop()
		it, ierr := newIterator(t.Heap, src)
		if ierr != nil {
			return false, oid.Invalid, ierr
		}
		f.push(t.Heap.Alloc(it))
	case code.OpIterNext:
		iterID := f.peek()
		switch v := t.Heap.Get(iterID).(type) {
		case *object.Iterator:
			val, ok, nerr := v.State.Next(t)
			if nerr != nil {
				return false, oid.Invalid, nerr
			}
			if !ok {
				f.pop()
				f.IP = instr.Target
				return false, oid.Invalid, nil
			}
			f.push(val)
		case *object.Future:
			val, fdone, aerr := t.Advance(iterID)
			if aerr != nil {
				return false, oid.Invalid, aerr
			}
			if fdone {
				f.pop()
				f.IP = instr.Target
				return false, oid.Invalid, nil
			}
			f.push(val)
		default:
			return false, oid.Invalid, errNotIterable
		}

	case code.OpTryEnter:
		f.Catches = append(f.Catches, catchEntry{handler: instr.Target, stackLen: len(f.Stack), excName: instr.Str})
	case code.OpTryExit:
		if len(f.Catches) > 0 {
			f.Catches = f.Catches[:len(f.Catches)-1]
		}
	case code.OpCatch:
		// No-op boundary marker: the exception value is already on the
		// stack, pushed by catch() when the handler was entered.
	case code.OpThrow:
		v := f.pop()
		return false, oid.Invalid, t.throw(v)

	case code.OpClassDef:
		var parent oid.ObjectId = oid.Invalid
		if instr.Target.Offset == 1 {
			parent = f.pop()
		}
		cls := object.NewClass(instr.Str)
		cls.Parent = parent
		f.push(t.Heap.Alloc(cls))
	case code.OpMakeClosure:
		codeID := f.Code.Constants[instr.Int]
		n := instr.Target.Offset
		captures := make([]oid.ObjectId, n)
		for i := n - 1; i >= 0; i-- {
			captures[i] = f.pop()
		}
		codeObj, _ := t.Heap.Get(codeID).(*object.CodeObj)
		name := ""
		if codeObj != nil {
			name = codeObj.Code.Name
		}
		f.push(t.Heap.Alloc(&object.Function{Name: name, CodeID: codeID, Captures: captures}))
	case code.OpYield:
		// Handled in loop() before reaching step().
	case code.OpAwait:
		futID := f.pop()
		for {
			val, fdone, aerr := t.Advance(futID)
			if aerr != nil {
				return false, oid.Invalid, aerr
			}
			if fdone {
				f.push(val)
				break
			}
		}

	case code.OpImport:
		id, ierr := t.VM.Import(t, strings.Split(instr.Str, "."))
		if ierr != nil {
			return false, oid.Invalid, ierr
		}
		f.push(id)

	case code.OpBuildList:
		n := int(instr.Int)
		items := make([]oid.ObjectId, n)
		for i := n - 1; i >= 0; i-- {
			items[i] = f.pop()
		}
		f.push(t.Heap.Alloc(&object.List{Items: items}))

	default:
		return false, oid.Invalid, rt.Newf(rt.KindFatal, "unimplemented opcode %d", instr.Op)
	}

	advance()
	return false, oid.Invalid, nil
}

func (t *Thread) throw(value oid.ObjectId) error {
	msg := "exception"
	kind := rt.KindRuntime
	if inst, ok := t.Heap.Get(value).(*object.Instance); ok {
		if id, ok := inst.Attrs["message"]; ok {
			if s, ok := t.Heap.Get(id).(*object.String); ok {
				msg = s.Value
			}
		}
		if id, ok := inst.Attrs["kind"]; ok {
			if s, ok := t.Heap.Get(id).(*object.String); ok {
				kind = rt.Kind(s.Value)
			}
		}
	}
	return rt.New(kind, msg)
}

func (t *Thread) setItem(obj, key, value oid.ObjectId) error {
	callee, ok := object.GetOffsetAttr(t.Heap, obj, object.OffSetItem)
	if !ok {
		return rt.New(rt.KindType, "object does not support item assignment")
	}
	_, err := t.Call(callee, []oid.ObjectId{obj, key, value})
	return err
}

func (t *Thread) boolObj(v bool) oid.ObjectId {
	if v {
		return t.VM.True()
	}
	return t.VM.False()
}

// binary resolves (left op right) via the fast-path table first, then
// the class offset-attr chain, matching the two-tier dispatch design
// (spec §4.1, §4.4).
func (t *Thread) binary(off object.BinaryOffset, left, right oid.ObjectId) (oid.ObjectId, error) {
	if lb, lok := builtinOf(t.Heap, left); lok {
		if rb, rok := builtinOf(t.Heap, right); rok {
			if fn, ok := t.VM.FastTable().Lookup(lb, rb, off); ok {
				return fn(t.Heap, left, right)
			}
		}
	}
	if callee, ok := object.GetOffsetAttr(t.Heap, left, off); ok {
		return t.Call(callee, []oid.ObjectId{left, right})
	}
	return oid.Invalid, rt.Newf(rt.KindType, "unsupported operand type for %s", offsetName(off))
}

func binaryOffsetFor(op code.Op) object.BinaryOffset {
	switch op {
	case code.OpAdd:
		return object.OffAdd
	case code.OpSub:
		return object.OffSub
	case code.OpMul:
		return object.OffMul
	case code.OpDiv:
		return object.OffDiv
	case code.OpReminder:
		return object.OffReminder
	case code.OpLess:
		return object.OffLess
	case code.OpGreater:
		return object.OffGreater
	case code.OpLessEqual:
		return object.OffLessEqual
	case code.OpGreaterEqual:
		return object.OffGreaterEqual
	case code.OpEqual:
		return object.OffEqual
	case code.OpNotEqual:
		return object.OffNotEqual
	case code.OpGetItem:
		return object.OffGetItem
	default:
		return object.OffAdd
	}
}

func offsetName(off object.BinaryOffset) string {
	names := [...]string{"+", "-", "*", "/", "%", "<", ">", "<=", ">=", "==", "!=", "hash", "[]", "[]=", "next", "index"}
	if int(off) < len(names) {
		return names[off]
	}
	return "operator"
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

func isTruthy(h object.Heap, id oid.ObjectId) bool {
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
		return len(v.Items) > 0
	default:
		return true
	}
}
