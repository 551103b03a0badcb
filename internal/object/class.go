package object

import "ember/internal/oid"

// BinaryOffset is the closed enumeration of hot operators keying a
// class's dense offset-attr array (spec §3.2).
type BinaryOffset int

const (
	OffAdd BinaryOffset = iota
	OffSub
	OffMul
	OffDiv
	OffReminder
	OffLess
	OffGreater
	OffLessEqual
	OffGreaterEqual
	OffEqual
	OffNotEqual
	OffHash
	OffGetItem
	OffSetItem
	OffNextObject
	OffIndex
	numOffsets
)

// FastFn is a native fast-path implementation for one (leftClass,
// rightClass, operator) triple, installed in the interpreter's
// fast-path table (spec §4.4). It never allocates through the slow
// get_attr path.
type FastFn func(h Heap, left, right oid.ObjectId) (oid.ObjectId, error)

// Class carries a display name, a name-keyed attribute map (methods,
// static attributes) and the dense BinaryOffset fast-path array.
type Class struct {
	Header
	Name        string
	Attrs       map[string]oid.ObjectId
	offsetAttrs [numOffsets]oid.ObjectId
	rustFn      [numOffsets]FastFn
	Parent      oid.ObjectId // oid.Invalid if no parent
}

func NewClass(name string) *Class {
	c := &Class{Name: name, Attrs: make(map[string]oid.ObjectId), Parent: oid.Invalid}
	for i := range c.offsetAttrs {
		c.offsetAttrs[i] = oid.Invalid
	}
	return c
}

func (o *Class) Kind() Kind    { return KClass }
func (o *Class) Head() *Header { return &o.Header }
func (o *Class) References() []oid.ObjectId {
	refs := make([]oid.ObjectId, 0, len(o.Attrs)+int(numOffsets))
	for _, v := range o.Attrs {
		refs = append(refs, v)
	}
	for _, v := range o.offsetAttrs {
		if v.Valid() {
			refs = append(refs, v)
		}
	}
	if o.Parent.Valid() {
		refs = append(refs, o.Parent)
	}
	return refs
}

// SetOffsetAttr fills a BinaryOffset slot with a callable ObjectId.
func (o *Class) SetOffsetAttr(off BinaryOffset, callable oid.ObjectId) {
	o.offsetAttrs[off] = callable
}

// GetOffsetAttr is the O(1) hot-operator dispatch path (spec §4.1).
func (o *Class) GetOffsetAttr(off BinaryOffset) (oid.ObjectId, bool) {
	id := o.offsetAttrs[off]
	return id, id.Valid()
}

// SetNativeFn installs a native fast-path function pointer for off.
func (o *Class) SetNativeFn(off BinaryOffset, fn FastFn) { o.rustFn[off] = fn }

func (o *Class) NativeFn(off BinaryOffset) FastFn { return o.rustFn[off] }

// GetAttr consults the class's attribute map (methods, static attrs).
// Instance-only attributes live on the Instance itself and are checked
// by the caller before falling back here.
func (o *Class) GetAttr(name string) (oid.ObjectId, bool) {
	id, ok := o.Attrs[name]
	return id, ok
}

func (o *Class) SetAttr(name string, id oid.ObjectId) {
	o.Attrs[name] = id
}

// DunderOffsets maps an operator dunder method name to the BinaryOffset
// slot it backs, so a class body that defines e.g. __add__ also wires
// the O(1) offset-attr dispatch path (spec §4.1), not just the
// name-keyed Attrs lookup.
var DunderOffsets = map[string]BinaryOffset{
	"__add__":     OffAdd,
	"__sub__":     OffSub,
	"__mul__":     OffMul,
	"__div__":     OffDiv,
	"__mod__":     OffReminder,
	"__lt__":      OffLess,
	"__gt__":      OffGreater,
	"__le__":      OffLessEqual,
	"__ge__":      OffGreaterEqual,
	"__eq__":      OffEqual,
	"__ne__":      OffNotEqual,
	"__hash__":    OffHash,
	"__getitem__": OffGetItem,
	"__setitem__": OffSetItem,
	"__next__":    OffNextObject,
	"__index__":   OffIndex,
}

// ClassOf is the O(1) class_of(obj) contract of spec §4.1.
func ClassOf(h Heap, id oid.ObjectId) *Class {
	obj := h.Get(id)
	if obj == nil {
		return nil
	}
	clsObj := h.Get(obj.Head().Cls)
	cls, _ := clsObj.(*Class)
	return cls
}

// GetAttr implements get_attr(obj, name): instance attrs first (for
// ClassInstance), then the class's method/attribute map, walking the
// Parent chain.
func GetAttr(h Heap, id oid.ObjectId, name string) (oid.ObjectId, bool) {
	obj := h.Get(id)
	if inst, ok := obj.(*Instance); ok {
		if v, ok := inst.Attrs[name]; ok {
			return v, true
		}
	}
	cls := ClassOf(h, id)
	for cls != nil {
		if v, ok := cls.GetAttr(name); ok {
			return v, true
		}
		if !cls.Parent.Valid() {
			break
		}
		parentObj := h.Get(cls.Parent)
		cls, _ = parentObj.(*Class)
	}
	return oid.Invalid, false
}

// GetOffsetAttr implements get_offset_attr(obj, offset), consulting the
// class table (and its parent chain) for the hot-operator fast path.
func GetOffsetAttr(h Heap, id oid.ObjectId, off BinaryOffset) (oid.ObjectId, bool) {
	cls := ClassOf(h, id)
	for cls != nil {
		if v, ok := cls.GetOffsetAttr(off); ok {
			return v, true
		}
		if !cls.Parent.Valid() {
			break
		}
		parentObj := h.Get(cls.Parent)
		cls, _ = parentObj.(*Class)
	}
	return oid.Invalid, false
}
