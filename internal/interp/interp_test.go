package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/internal/code"
	"ember/internal/gc"
	"ember/internal/object"
	"ember/internal/oid"
)

// testVM is a minimal VMContext stand-in: global map per module, fixed
// singleton values and one fast-path registration, enough to drive the
// dispatch loop without the full shared-VM package.
type testVM struct {
	heap     object.Heap
	globals  map[string]oid.ObjectId
	classes  map[object.BuiltinClass]oid.ObjectId
	fast     *FastTable
	none     oid.ObjectId
	trueID   oid.ObjectId
	falseID  oid.ObjectId
}

func newTestVM(h object.Heap) *testVM {
	vm := &testVM{
		heap:    h,
		globals: make(map[string]oid.ObjectId),
		classes: make(map[object.BuiltinClass]oid.ObjectId),
		fast:    NewFastTable(),
	}
	vm.none = h.Alloc(&object.None{})
	vm.trueID = h.Alloc(&object.Bool{Value: true})
	vm.falseID = h.Alloc(&object.Bool{Value: false})
	for b := object.BuiltinClass(0); b < object.BuiltinClass(object.NumBuiltinClasses()); b++ {
		vm.classes[b] = h.Alloc(object.NewClass(b.String()))
	}
	vm.fast.Register(object.BInteger, object.BInteger, object.OffAdd, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		li := h.Get(l).(*object.Integer)
		ri := h.Get(r).(*object.Integer)
		return h.Alloc(&object.Integer{Value: li.Value + ri.Value}), nil
	})

	excCls := h.Get(vm.classes[object.BException]).(*object.Class)
	excCls.SetAttr("__init__", h.Alloc(&object.Function{Name: "Exception.__init__", Native: exceptionInitForTest}))
	return vm
}

// exceptionInitForTest mirrors the real runtime's Exception.__init__
// (internal/vm/builtins.go): it copies the constructor's first argument
// into the new instance's message attribute.
func exceptionInitForTest(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
	self, ok := t.Get(args[0]).(*object.Instance)
	if !ok {
		return oid.Invalid, nil
	}
	if len(args) > 1 {
		self.Attrs["message"] = args[1]
	}
	return oid.Invalid, nil
}

func (v *testVM) ClassID(b object.BuiltinClass) oid.ObjectId { return v.classes[b] }
func (v *testVM) Global(m *object.Module, name string) (oid.ObjectId, bool) {
	id, ok := v.globals[name]
	return id, ok
}
func (v *testVM) SetGlobal(m *object.Module, name string, id oid.ObjectId) { v.globals[name] = id }
func (v *testVM) NewInstance(t *Thread, classID oid.ObjectId, args []oid.ObjectId) (oid.ObjectId, error) {
	instID := t.Heap.Alloc(object.NewInstance(classID))
	cls, _ := t.Heap.Get(classID).(*object.Class)
	for cls != nil {
		if initFn, ok := cls.GetAttr("__init__"); ok {
			callArgs := append([]oid.ObjectId{instID}, args...)
			if _, err := t.Call(initFn, callArgs); err != nil {
				return oid.Invalid, err
			}
			break
		}
		if !cls.Parent.Valid() {
			break
		}
		cls, _ = t.Heap.Get(cls.Parent).(*object.Class)
	}
	return instID, nil
}
func (v *testVM) Import(t *Thread, dotted []string) (oid.ObjectId, error) { return oid.Invalid, nil }
func (v *testVM) FastTable() *FastTable                                  { return v.fast }
func (v *testVM) True() oid.ObjectId                                     { return v.trueID }
func (v *testVM) False() oid.ObjectId                                    { return v.falseID }
func (v *testVM) None() oid.ObjectId                                     { return v.none }
func (v *testVM) Safepoint()                                             {}

func newThread(t *testing.T) (*Thread, *testVM) {
	h := gc.New(nil)
	vm := newTestVM(h)
	return New(h, vm, nil), vm
}

func constInt(th *Thread, c *code.Code, v int64) int {
	id := th.Heap.Alloc(&object.Integer{Value: v})
	c.Constants = append(c.Constants, id)
	return len(c.Constants) - 1
}

func TestAddViaFastPath(t *testing.T) {
	th, _ := newThread(t)
	c := code.New("main", "main")
	a := constInt(th, c, 2)
	b := constInt(th, c, 3)
	c.Blocks[0] = code.Block{
		{Op: code.OpLoadConst, Int: int64(a)},
		{Op: code.OpLoadConst, Int: int64(b)},
		{Op: code.OpAdd},
		{Op: code.OpReturn},
	}
	fn := &object.Function{CodeID: th.Heap.Alloc(&object.CodeObj{Code: c})}
	result, err := th.callFunction(fn, nil)
	require.NoError(t, err)
	i, ok := th.Heap.Get(result).(*object.Integer)
	require.True(t, ok)
	assert.Equal(t, int64(5), i.Value)
}

func TestTryCatchUnwindsToHandler(t *testing.T) {
	th, vm := newThread(t)
	c := code.New("main", "main")
	excClassConst := len(c.Constants)
	c.Constants = append(c.Constants, vm.ClassID(object.BException))
	msgConst := len(c.Constants)
	c.Constants = append(c.Constants, th.Heap.Alloc(&object.String{Value: "boom"}))
	c.Blocks[0] = code.Block{
		{Op: code.OpTryEnter, Target: code.Addr{Block: 1, Offset: 0}},
		{Op: code.OpLoadConst, Int: int64(excClassConst)},
		{Op: code.OpLoadConst, Int: int64(msgConst)},
		{Op: code.OpCall, Int: 1},
		{Op: code.OpThrow},
	}
	c.Blocks = append(c.Blocks, code.Block{
		{Op: code.OpDotGet, Str: "message"},
		{Op: code.OpReturn},
	})
	fn := &object.Function{CodeID: th.Heap.Alloc(&object.CodeObj{Code: c})}
	result, err := th.callFunction(fn, nil)
	require.NoError(t, err)
	s, ok := th.Heap.Get(result).(*object.String)
	require.True(t, ok)
	assert.Equal(t, "boom", s.Value)
}

func TestClassDefMethodCallEndToEnd(t *testing.T) {
	th, _ := newThread(t)

	// greet(self) -> 7, the method body compileClassDef binds via OpDotSet
	// against the class object itself (compiler.go compileClassDef).
	methodCode := code.New("greet", "main")
	seven := constInt(th, methodCode, 7)
	methodCode.Blocks[0] = code.Block{
		{Op: code.OpLoadConst, Int: int64(seven)},
		{Op: code.OpReturn},
	}
	methodCodeID := th.Heap.Alloc(&object.CodeObj{Code: methodCode})

	c := code.New("main", "main")
	c.VarMap["Counter"] = 0
	c.NumLocals = 1
	methodConst := len(c.Constants)
	c.Constants = append(c.Constants, methodCodeID)
	c.Blocks[0] = code.Block{
		{Op: code.OpClassDef, Str: "Counter"},
		{Op: code.OpDup},
		{Op: code.OpStoreLocal, Int: 0},
		{Op: code.OpDup},
		{Op: code.OpMakeClosure, Int: int64(methodConst), Target: code.Addr{Offset: 0}},
		{Op: code.OpDotSet, Str: "greet"},
		{Op: code.OpPop},
		{Op: code.OpLoadLocal, Int: 0},
		{Op: code.OpReturn},
	}
	classFn := &object.Function{CodeID: th.Heap.Alloc(&object.CodeObj{Code: c})}
	classID, err := th.callFunction(classFn, nil)
	require.NoError(t, err)

	instID := th.Heap.Alloc(object.NewInstance(classID))

	call := code.New("call", "main")
	instConst := len(call.Constants)
	call.Constants = append(call.Constants, instID)
	call.Blocks[0] = code.Block{
		{Op: code.OpLoadConst, Int: int64(instConst)},
		{Op: code.OpDup},
		{Op: code.OpDotGet, Str: "greet"},
		{Op: code.OpCall, Int: 0, Str: "self"},
		{Op: code.OpReturn},
	}
	callFn := &object.Function{CodeID: th.Heap.Alloc(&object.CodeObj{Code: call})}
	result, err := th.callFunction(callFn, nil)
	require.NoError(t, err)
	i, ok := th.Heap.Get(result).(*object.Integer)
	require.True(t, ok)
	assert.Equal(t, int64(7), i.Value)
}

func TestUncaughtThrowPropagates(t *testing.T) {
	th, _ := newThread(t)
	c := code.New("main", "main")
	msgConst := len(c.Constants)
	c.Constants = append(c.Constants, th.Heap.Alloc(&object.String{Value: "nope"}))
	c.Blocks[0] = code.Block{
		{Op: code.OpLoadConst, Int: int64(msgConst)},
		{Op: code.OpThrow},
	}
	fn := &object.Function{CodeID: th.Heap.Alloc(&object.CodeObj{Code: c})}
	_, err := th.callFunction(fn, nil)
	require.Error(t, err)
}

func TestIterateOverList(t *testing.T) {
	th, _ := newThread(t)
	items := []oid.ObjectId{
		th.Heap.Alloc(&object.Integer{Value: 10}),
		th.Heap.Alloc(&object.Integer{Value: 20}),
		th.Heap.Alloc(&object.Integer{Value: 30}),
	}
	listID := th.Heap.Alloc(&object.List{Items: items})

	c := code.New("main", "main")
	c.Constants = append(c.Constants, listID, th.Heap.Alloc(&object.Integer{Value: 0}))
	c.VarMap["sum"] = 0
	c.NumLocals = 1
	c.Blocks[0] = code.Block{
		{Op: code.OpLoadConst, Int: 1}, // 0
		{Op: code.OpStoreLocal, Int: 0},
		{Op: code.OpLoadConst, Int: 0}, // the list
		{Op: code.OpIterSetup},
	}
	c.Blocks = append(c.Blocks, code.Block{ // block 1: loop top
		{Op: code.OpIterNext, Target: code.Addr{Block: 2, Offset: 0}},
		{Op: code.OpLoadLocal, Int: 0},
		{Op: code.OpAdd},
		{Op: code.OpStoreLocal, Int: 0},
		{Op: code.OpJump, Target: code.Addr{Block: 1, Offset: 0}},
	})
	c.Blocks = append(c.Blocks, code.Block{ // block 2: after loop
		{Op: code.OpLoadLocal, Int: 0},
		{Op: code.OpReturn},
	})
	fn := &object.Function{CodeID: th.Heap.Alloc(&object.CodeObj{Code: c})}
	result, err := th.callFunction(fn, nil)
	require.NoError(t, err)
	i, ok := th.Heap.Get(result).(*object.Integer)
	require.True(t, ok)
	assert.Equal(t, int64(60), i.Value)
}

func TestGeneratorYieldsThenCompletes(t *testing.T) {
	th, _ := newThread(t)
	c := code.New("gen", "main")
	c.IsGenerator = true
	one := constInt(th, c, 1)
	two := constInt(th, c, 2)
	c.Blocks[0] = code.Block{
		{Op: code.OpLoadConst, Int: int64(one)},
		{Op: code.OpYield},
		{Op: code.OpLoadConst, Int: int64(two)},
		{Op: code.OpReturn},
	}
	fn := &object.Function{CodeID: th.Heap.Alloc(&object.CodeObj{Code: c})}
	futureID, err := th.callFunction(fn, nil)
	require.NoError(t, err)

	v1, done1, err := th.Advance(futureID)
	require.NoError(t, err)
	assert.False(t, done1)
	assert.Equal(t, int64(1), th.Heap.Get(v1).(*object.Integer).Value)

	v2, done2, err := th.Advance(futureID)
	require.NoError(t, err)
	assert.True(t, done2)
	assert.Equal(t, int64(2), th.Heap.Get(v2).(*object.Integer).Value)
}
