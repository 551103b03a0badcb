package vm

import (
	"golang.org/x/exp/constraints"

	"ember/internal/interp"
	"ember/internal/object"
	"ember/internal/oid"
	"ember/internal/rt"
)

// registerBuiltinClasses allocates a Class object for every
// object.BuiltinClass with a fixed, stable ObjectId (spec §6.2), and
// indexes each by both tag and display name.
func registerBuiltinClasses(v *VM) {
	for b := object.BuiltinClass(0); b < object.BuiltinClass(object.NumBuiltinClasses()); b++ {
		cls := object.NewClass(b.String())
		id := v.heap.Alloc(cls)
		v.setBuiltinClass(b, id)
		v.RegisterClassName(b.String(), id)
	}

	// List.SetItem and HashMap.SetItem go through the slow offset-attr
	// path (thread.go's setItem), not the fast table, since mutation
	// isn't a hot binary operator the way GetItem's read path is.
	listCls := v.heap.Get(v.ClassID(object.BList)).(*object.Class)
	listCls.SetOffsetAttr(object.OffSetItem, v.NativeFunc("List.__setitem__", listSetItem))

	mapCls := v.heap.Get(v.ClassID(object.BHashMap)).(*object.Class)
	mapCls.SetOffsetAttr(object.OffSetItem, v.NativeFunc("HashMap.__setitem__", hashMapSetItem))

	// Exception's __init__ carries the constructor's first argument into
	// Attrs["message"] so throw Exception("x") round-trips through
	// NewInstance's __init__ convention to the instance's message
	// attribute. No get_error() builtin is registered.
	excCls := v.heap.Get(v.ClassID(object.BException)).(*object.Class)
	excCls.SetAttr("__init__", v.NativeFunc("Exception.__init__", exceptionInit))
}

func exceptionInit(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
	self, ok := t.Get(args[0]).(*object.Instance)
	if !ok {
		return oid.Invalid, rt.New(rt.KindType, "__init__ called on a non-instance")
	}
	if len(args) > 1 {
		self.Attrs["message"] = args[1]
		t.WriteBarrier(args[0], args[1])
	}
	return oid.Invalid, nil
}

func listSetItem(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
	h := t
	list, ok := h.Get(args[0]).(*object.List)
	if !ok {
		return oid.Invalid, rt.New(rt.KindType, "not a list")
	}
	idx := asInt(h, args[1])
	if idx < 0 {
		idx += int64(len(list.Items))
	}
	if idx < 0 || idx >= int64(len(list.Items)) {
		return oid.Invalid, rt.New(rt.KindIndex, "list index out of range")
	}
	list.Items[idx] = args[2]
	h.WriteBarrier(args[0], args[2])
	return args[2], nil
}

func hashMapSetItem(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
	h := t
	m, ok := h.Get(args[0]).(*object.HashMap)
	if !ok {
		return oid.Invalid, rt.New(rt.KindType, "not a hash map")
	}
	key, ok := h.Get(args[1]).(*object.String)
	if !ok {
		return oid.Invalid, rt.New(rt.KindType, "hash map keys must be strings")
	}
	m.Items[key.Value] = args[2]
	m.Keys[key.Value] = args[1]
	h.WriteBarrier(args[0], args[1])
	h.WriteBarrier(args[0], args[2])
	return args[2], nil
}

// registerFastPaths installs the interpreter's two-tier dispatch fast
// table (spec §4.4): Integer/Integer and Float/Float arithmetic and
// comparison, String/String concatenation and comparison, and the
// collection GetItem operator for List, HashMap and HashSet.
// Every entry here bypasses get_offset_attr entirely; it is the hot
// path spec §4.1 describes as "never touching the attribute map".
func registerFastPaths(v *VM) {
	ft := v.fast

	registerNumeric(ft)
	registerString(ft)
	registerList(ft)
	registerHashMap(ft)
	registerHashSet(ft)
}

func asInt(h object.Heap, id oid.ObjectId) int64   { return h.Get(id).(*object.Integer).Value }
func asFloat(h object.Heap, id oid.ObjectId) float64 { return h.Get(id).(*object.Float).Value }

func registerNumeric(ft *interp.FastTable) {
	ii := object.BInteger
	ff := object.BFloat

	ft.Register(ii, ii, object.OffAdd, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		return h.Alloc(&object.Integer{Value: asInt(h, l) + asInt(h, r)}), nil
	})
	ft.Register(ii, ii, object.OffSub, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		return h.Alloc(&object.Integer{Value: asInt(h, l) - asInt(h, r)}), nil
	})
	ft.Register(ii, ii, object.OffMul, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		return h.Alloc(&object.Integer{Value: asInt(h, l) * asInt(h, r)}), nil
	})
	ft.Register(ii, ii, object.OffDiv, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		rv := asInt(h, r)
		if rv == 0 {
			return oid.Invalid, rt.New(rt.KindValue, "division by zero")
		}
		return h.Alloc(&object.Integer{Value: asInt(h, l) / rv}), nil
	})
	ft.Register(ii, ii, object.OffReminder, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		rv := asInt(h, r)
		if rv == 0 {
			return oid.Invalid, rt.New(rt.KindValue, "division by zero")
		}
		return h.Alloc(&object.Integer{Value: asInt(h, l) % rv}), nil
	})
	ft.Register(ii, ii, object.OffLess, cmpOrdered(asInt, func(a, b int64) bool { return a < b }))
	ft.Register(ii, ii, object.OffGreater, cmpOrdered(asInt, func(a, b int64) bool { return a > b }))
	ft.Register(ii, ii, object.OffLessEqual, cmpOrdered(asInt, func(a, b int64) bool { return a <= b }))
	ft.Register(ii, ii, object.OffGreaterEqual, cmpOrdered(asInt, func(a, b int64) bool { return a >= b }))
	ft.Register(ii, ii, object.OffEqual, cmpOrdered(asInt, func(a, b int64) bool { return a == b }))
	ft.Register(ii, ii, object.OffNotEqual, cmpOrdered(asInt, func(a, b int64) bool { return a != b }))

	ft.Register(ff, ff, object.OffAdd, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		return h.Alloc(&object.Float{Value: asFloat(h, l) + asFloat(h, r)}), nil
	})
	ft.Register(ff, ff, object.OffSub, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		return h.Alloc(&object.Float{Value: asFloat(h, l) - asFloat(h, r)}), nil
	})
	ft.Register(ff, ff, object.OffMul, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		return h.Alloc(&object.Float{Value: asFloat(h, l) * asFloat(h, r)}), nil
	})
	ft.Register(ff, ff, object.OffDiv, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		rv := asFloat(h, r)
		if rv == 0 {
			return oid.Invalid, rt.New(rt.KindValue, "division by zero")
		}
		return h.Alloc(&object.Float{Value: asFloat(h, l) / rv}), nil
	})
	ft.Register(ff, ff, object.OffLess, cmpOrdered(asFloat, func(a, b float64) bool { return a < b }))
	ft.Register(ff, ff, object.OffGreater, cmpOrdered(asFloat, func(a, b float64) bool { return a > b }))
	ft.Register(ff, ff, object.OffLessEqual, cmpOrdered(asFloat, func(a, b float64) bool { return a <= b }))
	ft.Register(ff, ff, object.OffGreaterEqual, cmpOrdered(asFloat, func(a, b float64) bool { return a >= b }))
	ft.Register(ff, ff, object.OffEqual, cmpOrdered(asFloat, func(a, b float64) bool { return a == b }))
	ft.Register(ff, ff, object.OffNotEqual, cmpOrdered(asFloat, func(a, b float64) bool { return a != b }))

	// spec §9: Float/Integer mixed equality is deliberately unsupported;
	// there is no cross-class fast-path entry and no class offset-attr
	// fallback either, so comparing a Float to an Integer raises a
	// TypeError rather than performing an implicit conversion.
}

// cmpOrdered builds a FastFn for any ordered scalar (Integer's int64,
// Float's float64) from an extractor and a comparison predicate,
// generalizing the Integer/Integer and Float/Float comparison rows
// of the fast table instead of duplicating one closure family per type.
func cmpOrdered[T constraints.Ordered](extract func(object.Heap, oid.ObjectId) T, pred func(a, b T) bool) object.FastFn {
	return func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		if pred(extract(h, l), extract(h, r)) {
			return boolID(h), nil
		}
		return falseID(h), nil
	}
}

// boolID/falseID allocate fresh Bool objects rather than reaching back
// into the VM singleton table: the FastFn signature carries only a Heap,
// not a VMContext. A fresh allocation is cheap (young generation, bump
// allocator) and behaviorally identical since Bool has no identity.
func boolID(h object.Heap) oid.ObjectId  { return h.Alloc(&object.Bool{Value: true}) }
func falseID(h object.Heap) oid.ObjectId { return h.Alloc(&object.Bool{Value: false}) }

func registerString(ft *interp.FastTable) {
	ss := object.BString
	asStr := func(h object.Heap, id oid.ObjectId) string { return h.Get(id).(*object.String).Value }

	ft.Register(ss, ss, object.OffAdd, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		return h.Alloc(&object.String{Value: asStr(h, l) + asStr(h, r)}), nil
	})
	ft.Register(ss, ss, object.OffEqual, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		if asStr(h, l) == asStr(h, r) {
			return boolID(h), nil
		}
		return falseID(h), nil
	})
	ft.Register(ss, ss, object.OffNotEqual, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		if asStr(h, l) != asStr(h, r) {
			return boolID(h), nil
		}
		return falseID(h), nil
	})
	ft.Register(ss, ss, object.OffLess, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		if asStr(h, l) < asStr(h, r) {
			return boolID(h), nil
		}
		return falseID(h), nil
	})
	ft.Register(ss, ss, object.OffGreater, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		if asStr(h, l) > asStr(h, r) {
			return boolID(h), nil
		}
		return falseID(h), nil
	})
}

func registerList(ft *interp.FastTable) {
	li, ii := object.BList, object.BInteger
	ft.Register(li, ii, object.OffGetItem, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		list := h.Get(l).(*object.List)
		idx := asInt(h, r)
		if idx < 0 {
			idx += int64(len(list.Items))
		}
		if idx < 0 || idx >= int64(len(list.Items)) {
			return oid.Invalid, rt.New(rt.KindIndex, "list index out of range")
		}
		return list.Items[idx], nil
	})
}

func registerHashMap(ft *interp.FastTable) {
	// HashMap keys are string-keyed (object.HashMap.Keys/Items are
	// map[string]oid.ObjectId); GetItem on a HashMap takes a String key.
	hm, ss := object.BHashMap, object.BString
	ft.Register(hm, ss, object.OffGetItem, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		m := h.Get(l).(*object.HashMap)
		key := h.Get(r).(*object.String).Value
		id, ok := m.Items[key]
		if !ok {
			return oid.Invalid, rt.Newf(rt.KindIndex, "key %q not found", key)
		}
		return id, nil
	})
}

func registerHashSet(ft *interp.FastTable) {
	hs, ss := object.BHashSet, object.BString
	ft.Register(hs, ss, object.OffGetItem, func(h object.Heap, l, r oid.ObjectId) (oid.ObjectId, error) {
		s := h.Get(l).(*object.HashSet)
		key := h.Get(r).(*object.String).Value
		if id, ok := s.Items[key]; ok {
			return id, nil
		}
		return falseID(h), nil
	})
}
