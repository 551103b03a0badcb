package interp

import (
	"ember/internal/object"
	"ember/internal/oid"
)

// rangeIteratorState walks a Range value's [Lo, Hi) span, allocating one
// Integer per step (spec §3.5 "Iterator over Range").
type rangeIteratorState struct {
	cur, hi int64
	heap    object.Heap
}

func (s *rangeIteratorState) Next(t object.Thread) (oid.ObjectId, bool, error) {
	if s.cur >= s.hi {
		return oid.Invalid, false, nil
	}
	id := s.heap.Alloc(&object.Integer{Value: s.cur})
	s.cur++
	return id, true, nil
}

func (s *rangeIteratorState) References() []oid.ObjectId { return nil }

// listIteratorState walks a List value's Items snapshot by index.
type listIteratorState struct {
	items []oid.ObjectId
	idx   int
}

func (s *listIteratorState) Next(t object.Thread) (oid.ObjectId, bool, error) {
	if s.idx >= len(s.items) {
		return oid.Invalid, false, nil
	}
	id := s.items[s.idx]
	s.idx++
	return id, true, nil
}

func (s *listIteratorState) References() []oid.ObjectId {
	return append([]oid.ObjectId(nil), s.items[s.idx:]...)
}

// hashIteratorState walks a HashMap/HashSet's keys, snapshotted at
// setup time so concurrent mutation during iteration can't corrupt the
// walk (spec §4.4 edge case).
type hashIteratorState struct {
	keys []oid.ObjectId
	idx  int
}

func (s *hashIteratorState) Next(t object.Thread) (oid.ObjectId, bool, error) {
	if s.idx >= len(s.keys) {
		return oid.Invalid, false, nil
	}
	id := s.keys[s.idx]
	s.idx++
	return id, true, nil
}

func (s *hashIteratorState) References() []oid.ObjectId {
	return append([]oid.ObjectId(nil), s.keys[s.idx:]...)
}

// NewIterator builds an Iterator over src, exported for the extension
// ABI's get_iter helper (native callers outside this package have no
// other way to mirror OpIterSetup).
func NewIterator(heap object.Heap, src oid.ObjectId) (*object.Iterator, error) {
	return newIterator(heap, src)
}

func newIterator(heap object.Heap, src oid.ObjectId) (*object.Iterator, error) {
	switch v := heap.Get(src).(type) {
	case *object.Range:
		return &object.Iterator{Src: src, State: &rangeIteratorState{cur: v.Lo, hi: v.Hi, heap: heap}}, nil
	case *object.List:
		return &object.Iterator{Src: src, State: &listIteratorState{items: append([]oid.ObjectId(nil), v.Items...)}}, nil
	case *object.HashMap:
		keys := make([]oid.ObjectId, 0, len(v.Keys))
		for _, k := range v.Keys {
			keys = append(keys, k)
		}
		return &object.Iterator{Src: src, State: &hashIteratorState{keys: keys}}, nil
	case *object.HashSet:
		keys := make([]oid.ObjectId, 0, len(v.Items))
		for _, k := range v.Items {
			keys = append(keys, k)
		}
		return &object.Iterator{Src: src, State: &hashIteratorState{keys: keys}}, nil
	case *object.Iterator:
		return v, nil
	default:
		return nil, errNotIterable
	}
}
