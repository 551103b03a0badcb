package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/internal/object"
	"ember/internal/oid"
	"ember/internal/vm"
)

func callMethod(t object.Thread, recv oid.ObjectId, name string, args ...oid.ObjectId) (oid.ObjectId, error) {
	fnID, ok := object.GetAttr(t, recv, name)
	if !ok {
		panic("no method " + name)
	}
	callArgs := append([]oid.ObjectId{recv}, args...)
	return t.Call(fnID, callArgs)
}

func TestDatabaseExecAndQueryRoundTrip(t *testing.T) {
	v := vm.New()
	mod := Register(v)
	th := v.MainThread(nil)

	ctor := mod.Exports["Database"]
	dbID, err := th.Call(ctor, nil)
	require.NoError(t, err)

	createID := v.Heap().Alloc(&object.String{Value: "create table greeting (msg text)"})
	_, err = callMethod(th, dbID, "exec", createID)
	require.NoError(t, err)

	insertID := v.Heap().Alloc(&object.String{Value: "insert into greeting values ('hello')"})
	_, err = callMethod(th, dbID, "exec", insertID)
	require.NoError(t, err)

	queryID := v.Heap().Alloc(&object.String{Value: "select msg from greeting"})
	rowsID, err := callMethod(th, dbID, "query", queryID)
	require.NoError(t, err)

	rows, ok := v.Heap().Get(rowsID).(*object.List)
	require.True(t, ok)
	require.Len(t, rows.Items, 1)

	row, ok := v.Heap().Get(rows.Items[0]).(*object.List)
	require.True(t, ok)
	require.Len(t, row.Items, 1)

	cell, ok := v.Heap().Get(row.Items[0]).(*object.String)
	require.True(t, ok)
	assert.Equal(t, "hello", cell.Value)
}
