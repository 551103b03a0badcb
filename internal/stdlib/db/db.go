// Package db is a native stdlib module giving scripts a SQLite-backed
// Database class (spec §6.3 extension registration): a thin wrapper
// around *sql.DB with exec/query/close dispatch, registering exactly
// the one driver this module's go.mod actually carries: go-sqlite3.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"ember/internal/object"
	"ember/internal/oid"
	"ember/internal/rt"
	"ember/internal/vm"
)

type handle struct {
	db *sql.DB
}

func (h *handle) TypeName() string             { return "Database" }
func (h *handle) GetReference() []oid.ObjectId { return nil }

const handleAttr = "__handle__"

// Register installs the "db" native module: a Database class whose
// __new__ opens a sqlite3 connection at the given path, plus exec and
// query methods dispatched the same OpDotGet+OpCall("self") way as any
// other class's methods.
func Register(v *vm.VM) *object.Module {
	cls := object.NewClass("Database")
	clsID := v.Heap().Alloc(cls)
	v.RegisterClassName("Database", clsID)
	cls.SetAttr("exec", v.NativeFunc("Database.exec", execFn))
	cls.SetAttr("query", v.NativeFunc("Database.query", queryFn))
	cls.SetAttr("close", v.NativeFunc("Database.close", closeFn))

	return v.RegisterNativeModule("db", map[string]oid.ObjectId{
		"Database": v.NativeFunc("Database.__new__", newCtor(clsID)),
	})
}

func newCtor(classID oid.ObjectId) object.NativeFn {
	return func(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
		path := ":memory:"
		if len(args) > 0 {
			if s, ok := t.Get(args[0]).(*object.String); ok {
				path = s.Value
			}
		}
		sqlDB, err := sql.Open("sqlite3", path)
		if err != nil {
			return oid.Invalid, rt.Wrap(rt.KindRuntime, "failed to open database", err)
		}
		inst := object.NewInstance(classID)
		instID := t.Alloc(inst)
		handleID := t.Alloc(&object.ExtensionObj{Payload: &handle{db: sqlDB}})
		inst.Attrs[handleAttr] = handleID
		t.WriteBarrier(instID, handleID)
		return instID, nil
	}
}

func dbHandle(t object.Thread, self oid.ObjectId) (*handle, error) {
	inst, ok := t.Get(self).(*object.Instance)
	if !ok {
		return nil, rt.New(rt.KindType, "not a Database instance")
	}
	ext, ok := t.Get(inst.Attrs[handleAttr]).(*object.ExtensionObj)
	if !ok {
		return nil, rt.New(rt.KindType, "corrupt Database handle")
	}
	h, ok := ext.Payload.(*handle)
	if !ok {
		return nil, rt.New(rt.KindType, "corrupt Database handle")
	}
	return h, nil
}

// execFn runs a statement with no result rows, returning the number of
// rows affected as an Integer.
func execFn(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
	h, err := dbHandle(t, args[0])
	if err != nil {
		return oid.Invalid, err
	}
	if len(args) < 2 {
		return oid.Invalid, rt.New(rt.KindValue, "exec requires a statement string")
	}
	stmt, ok := t.Get(args[1]).(*object.String)
	if !ok {
		return oid.Invalid, rt.New(rt.KindType, "exec statement must be a string")
	}
	res, serr := h.db.Exec(stmt.Value)
	if serr != nil {
		return oid.Invalid, rt.Wrap(rt.KindRuntime, "exec failed", serr)
	}
	n, _ := res.RowsAffected()
	return t.Alloc(&object.Integer{Value: n}), nil
}

// queryFn runs a SELECT and returns a List of rows, each row a List of
// String cells — a minimal, fully dynamically-typed row representation
// consistent with spec §3.1's value kinds (no Row/Cursor builtin class).
func queryFn(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
	h, err := dbHandle(t, args[0])
	if err != nil {
		return oid.Invalid, err
	}
	if len(args) < 2 {
		return oid.Invalid, rt.New(rt.KindValue, "query requires a statement string")
	}
	stmt, ok := t.Get(args[1]).(*object.String)
	if !ok {
		return oid.Invalid, rt.New(rt.KindType, "query statement must be a string")
	}
	rows, serr := h.db.Query(stmt.Value)
	if serr != nil {
		return oid.Invalid, rt.Wrap(rt.KindRuntime, "query failed", serr)
	}
	defer rows.Close()

	cols, serr := rows.Columns()
	if serr != nil {
		return oid.Invalid, rt.Wrap(rt.KindRuntime, "query failed", serr)
	}

	var resultRows []oid.ObjectId
	for rows.Next() {
		raw := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if serr := rows.Scan(ptrs...); serr != nil {
			return oid.Invalid, rt.Wrap(rt.KindRuntime, "row scan failed", serr)
		}
		cells := make([]oid.ObjectId, len(raw))
		for i, v := range raw {
			cells[i] = t.Alloc(&object.String{Value: cellString(v)})
		}
		rowID := t.Alloc(&object.List{Items: cells})
		resultRows = append(resultRows, rowID)
	}
	return t.Alloc(&object.List{Items: resultRows}), nil
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case nil:
		return ""
	default:
		return toString(x)
	}
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func closeFn(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
	h, err := dbHandle(t, args[0])
	if err != nil {
		return oid.Invalid, err
	}
	if cerr := h.db.Close(); cerr != nil {
		return oid.Invalid, rt.Wrap(rt.KindRuntime, "close failed", cerr)
	}
	return args[0], nil
}
