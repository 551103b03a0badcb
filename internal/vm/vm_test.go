package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/internal/code"
	"ember/internal/object"
	"ember/internal/oid"
)

func TestNewRegistersEveryBuiltinClassWithAStableID(t *testing.T) {
	v := New()
	seen := make(map[oid.ObjectId]bool)
	for b := object.BuiltinClass(0); b < object.BuiltinClass(object.NumBuiltinClasses()); b++ {
		id := v.ClassID(b)
		require.True(t, id.Valid())
		assert.False(t, seen[id], "builtin classes must have distinct ids")
		seen[id] = true

		byName, ok := v.ClassByName(b.String())
		require.True(t, ok)
		assert.Equal(t, id, byName)
	}
}

func TestSingletonsAreStableAcrossCalls(t *testing.T) {
	v := New()
	assert.Equal(t, v.True(), v.True())
	assert.Equal(t, v.False(), v.False())
	assert.Equal(t, v.None(), v.None())
	assert.NotEqual(t, v.True(), v.False())
}

func TestNewInstanceWithoutNewOrInitAllocatesZeroedInstance(t *testing.T) {
	v := New()
	classID := v.heap.Alloc(object.NewClass("Point"))
	th := v.MainThread(nil)

	instID, err := v.NewInstance(th, classID, nil)
	require.NoError(t, err)

	inst, ok := v.heap.Get(instID).(*object.Instance)
	require.True(t, ok)
	assert.Equal(t, classID, inst.Head().Cls)
}

func TestNewInstanceCallsInitWhenPresent(t *testing.T) {
	v := New()
	cls := object.NewClass("Point")
	var sawSelf oid.ObjectId
	initFn := &object.Function{
		Name: "__init__",
		Native: func(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
			sawSelf = args[0]
			return v.None(), nil
		},
	}
	classID := v.heap.Alloc(cls)
	cls.SetAttr("__init__", v.heap.Alloc(initFn))

	th := v.MainThread(nil)
	instID, err := v.NewInstance(th, classID, nil)
	require.NoError(t, err)
	assert.Equal(t, instID, sawSelf)
}

func TestNewInstanceSkipsInitWhenNewIsPresent(t *testing.T) {
	v := New()
	cls := object.NewClass("Singleton")
	classID := v.heap.Alloc(cls)

	sentinel := v.heap.Alloc(&object.Integer{Value: 42})
	newFn := &object.Function{
		Name: "__new__",
		Native: func(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
			return sentinel, nil
		},
	}
	initCalled := false
	initFn := &object.Function{
		Name: "__init__",
		Native: func(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
			initCalled = true
			return v.None(), nil
		},
	}
	cls.SetAttr("__new__", v.heap.Alloc(newFn))
	cls.SetAttr("__init__", v.heap.Alloc(initFn))

	th := v.MainThread(nil)
	result, err := v.NewInstance(th, classID, nil)
	require.NoError(t, err)
	assert.Equal(t, sentinel, result)
	assert.False(t, initCalled)
}

func TestStartModuleRunsTopLevelCode(t *testing.T) {
	v := New()
	c := code.New("<module>", "main")
	a := v.heap.Alloc(&object.Integer{Value: 40})
	b := v.heap.Alloc(&object.Integer{Value: 2})
	c.Constants = append(c.Constants, a, b)
	c.Blocks[0] = code.Block{
		{Op: code.OpLoadConst, Int: 0},
		{Op: code.OpLoadConst, Int: 1},
		{Op: code.OpAdd},
		{Op: code.OpReturn},
	}

	result, err := v.StartModule(c)
	require.NoError(t, err)
	i, ok := v.heap.Get(result).(*object.Integer)
	require.True(t, ok)
	assert.Equal(t, int64(42), i.Value)
}

func TestListFastPathGetAndSetItem(t *testing.T) {
	v := New()
	items := []oid.ObjectId{
		v.heap.Alloc(&object.Integer{Value: 1}),
		v.heap.Alloc(&object.Integer{Value: 2}),
	}
	listID := v.heap.Alloc(&object.List{Items: items})
	idx0 := v.heap.Alloc(&object.Integer{Value: 0})

	fn, ok := v.fast.Lookup(object.BList, object.BInteger, object.OffGetItem)
	require.True(t, ok)
	got, err := fn(v.heap, listID, idx0)
	require.NoError(t, err)
	assert.Equal(t, items[0], got)

	setFn, ok := object.GetOffsetAttr(v.heap, listID, object.OffSetItem)
	require.True(t, ok)
	th := v.MainThread(nil)
	replacement := v.heap.Alloc(&object.Integer{Value: 99})
	_, err = th.Call(setFn, []oid.ObjectId{listID, idx0, replacement})
	require.NoError(t, err)

	list := v.heap.Get(listID).(*object.List)
	assert.Equal(t, replacement, list.Items[0])
}
