package interp

import "ember/internal/object"

// fastKey packs a (leftClass, rightClass, operator) triple so a hit
// never touches the attribute-map path (spec §4.4 "fast-path dispatch
// tables").
type fastKey struct {
	left, right object.BuiltinClass
	off         object.BinaryOffset
}

// FastTable is the two-tier dispatch table: builtin x builtin x
// operator -> native implementation. Misses fall through to the normal
// get_offset_attr/get_attr class lookup.
type FastTable struct {
	entries map[fastKey]object.FastFn
}

func NewFastTable() *FastTable {
	return &FastTable{entries: make(map[fastKey]object.FastFn)}
}

func (t *FastTable) Register(left, right object.BuiltinClass, off object.BinaryOffset, fn object.FastFn) {
	t.entries[fastKey{left, right, off}] = fn
}

func (t *FastTable) Lookup(left, right object.BuiltinClass, off object.BinaryOffset) (object.FastFn, bool) {
	fn, ok := t.entries[fastKey{left, right, off}]
	return fn, ok
}
