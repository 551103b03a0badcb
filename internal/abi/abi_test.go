package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/internal/gc"
	"ember/internal/interp"
	"ember/internal/object"
	"ember/internal/oid"
)

// testVM is the same minimal VMContext stand-in interp's own tests use,
// duplicated here since it is unexported in that package.
type testVM struct {
	heap    object.Heap
	globals map[string]oid.ObjectId
	classes map[object.BuiltinClass]oid.ObjectId
	fast    *interp.FastTable
	none    oid.ObjectId
	trueID  oid.ObjectId
	falseID oid.ObjectId
}

func newTestVM(h object.Heap) *testVM {
	vm := &testVM{
		heap:    h,
		globals: make(map[string]oid.ObjectId),
		classes: make(map[object.BuiltinClass]oid.ObjectId),
		fast:    interp.NewFastTable(),
	}
	vm.none = h.Alloc(&object.None{})
	vm.trueID = h.Alloc(&object.Bool{Value: true})
	vm.falseID = h.Alloc(&object.Bool{Value: false})
	vm.fast.Register(object.BInteger, object.BInteger, object.OffAdd, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		li := h.Get(l).(*object.Integer)
		ri := h.Get(r).(*object.Integer)
		return h.Alloc(&object.Integer{Value: li.Value + ri.Value}), nil
	})
	vm.fast.Register(object.BInteger, object.BInteger, object.OffLess, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		li := h.Get(l).(*object.Integer)
		ri := h.Get(r).(*object.Integer)
		if li.Value < ri.Value {
			return vm.trueID, nil
		}
		return vm.falseID, nil
	})
	return vm
}

func (v *testVM) ClassID(b object.BuiltinClass) oid.ObjectId { return v.classes[b] }
func (v *testVM) Global(m *object.Module, name string) (oid.ObjectId, bool) {
	id, ok := v.globals[name]
	return id, ok
}
func (v *testVM) SetGlobal(m *object.Module, name string, id oid.ObjectId) { v.globals[name] = id }
func (v *testVM) NewInstance(t *interp.Thread, classID oid.ObjectId, args []oid.ObjectId) (oid.ObjectId, error) {
	return t.Heap.Alloc(object.NewInstance(classID)), nil
}
func (v *testVM) Import(t *interp.Thread, dotted []string) (oid.ObjectId, error) {
	return oid.Invalid, nil
}
func (v *testVM) FastTable() *interp.FastTable { return v.fast }
func (v *testVM) True() oid.ObjectId            { return v.trueID }
func (v *testVM) False() oid.ObjectId           { return v.falseID }
func (v *testVM) None() oid.ObjectId            { return v.none }
func (v *testVM) Safepoint()                    {}

func newThread(t *testing.T) (*interp.Thread, *testVM) {
	h := gc.New(nil)
	vm := newTestVM(h)
	return interp.New(h, vm, nil), vm
}

func TestBinaryOpUsesFastPath(t *testing.T) {
	th, _ := newThread(t)
	a := th.Heap.Alloc(&object.Integer{Value: 2})
	b := th.Heap.Alloc(&object.Integer{Value: 3})

	result, aerr := BinaryOp(th, object.OffAdd, a, b)
	require.Nil(t, aerr)
	i, ok := th.Heap.Get(result).(*object.Integer)
	require.True(t, ok)
	assert.Equal(t, int64(5), i.Value)
}

func TestCompareTestCollapsesToBool(t *testing.T) {
	th, _ := newThread(t)
	a := th.Heap.Alloc(&object.Integer{Value: 2})
	b := th.Heap.Alloc(&object.Integer{Value: 3})

	lt, aerr := CompareTest(th, object.OffLess, a, b)
	require.Nil(t, aerr)
	assert.True(t, lt)

	gt, aerr := CompareTest(th, object.OffLess, b, a)
	require.Nil(t, aerr)
	assert.False(t, gt)
}

func TestGetIterAndGetNextWalkAList(t *testing.T) {
	th, _ := newThread(t)
	items := []oid.ObjectId{
		th.Heap.Alloc(&object.Integer{Value: 1}),
		th.Heap.Alloc(&object.Integer{Value: 2}),
	}
	listID := th.Heap.Alloc(&object.List{Items: items})

	iterID, aerr := GetIter(th, listID)
	require.Nil(t, aerr)

	v1, done1, aerr := GetNext(th, iterID)
	require.Nil(t, aerr)
	assert.False(t, done1)
	assert.Equal(t, items[0], v1)

	v2, done2, aerr := GetNext(th, iterID)
	require.Nil(t, aerr)
	assert.False(t, done2)
	assert.Equal(t, items[1], v2)

	_, done3, aerr := GetNext(th, iterID)
	require.Nil(t, aerr)
	assert.True(t, done3)
}

func TestBinaryRangeBuildsHalfOpenRange(t *testing.T) {
	th, _ := newThread(t)
	lo := th.Heap.Alloc(&object.Integer{Value: 0})
	hi := th.Heap.Alloc(&object.Integer{Value: 5})

	rangeID, aerr := BinaryRange(th, lo, hi)
	require.Nil(t, aerr)
	r, ok := th.Heap.Get(rangeID).(*object.Range)
	require.True(t, ok)
	assert.Equal(t, int64(0), r.Lo)
	assert.Equal(t, int64(5), r.Hi)
}

func TestLoadHelpersRejectWrongType(t *testing.T) {
	th, _ := newThread(t)
	s := th.Heap.Alloc(&object.String{Value: "hi"})

	_, aerr := LoadInteger(th.Heap, s)
	require.NotNil(t, aerr)
}

func TestCallFnWithZeroMaxDepthImposesNoLimit(t *testing.T) {
	th, _ := newThread(t)
	fn := &object.Function{
		Native: func(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
			return oid.Invalid, nil
		},
	}
	fnID := th.Heap.Alloc(fn)

	_, aerr := CallFn(th, 0, fnID, nil)
	require.Nil(t, aerr)
}
