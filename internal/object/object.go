// Package object implements the object model and class table (spec §3,
// §4.1): tagged values, per-class method tables, and the fast
// offset-indexed dispatch path for hot operators.
package object

import "ember/internal/oid"

// Kind tags the payload a heap Object carries.
type Kind uint8

const (
	KInteger Kind = iota
	KFloat
	KString
	KBytes
	KBool
	KNone
	KList
	KRange
	KInstance
	KClass
	KFunction
	KCode
	KModule
	KIterator
	KFuture
	KException
	KHashMap
	KHashSet
	KThread
	KExtension
)

func (k Kind) String() string {
	names := [...]string{
		"Integer", "Float", "String", "Bytes", "Bool", "None", "List",
		"Range", "Instance", "Class", "Function", "Code", "Module",
		"Iterator", "Future", "Exception", "HashMap", "HashSet", "Thread",
		"Extension",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// Area is the GC generation an object currently lives in.
type Area uint8

const (
	AreaYoung Area = iota
	AreaOld
)

// Header is embedded by every heap object; the GC reads and writes it
// directly, never by interface dispatch, so it must be addressable.
type Header struct {
	id           oid.ObjectId
	Cls          oid.ObjectId
	Mark         bool
	Area         Area
	WriteBarrier bool
}

func (h *Header) ID() oid.ObjectId      { return h.id }
func (h *Header) SetID(id oid.ObjectId) { h.id = id }

// Object is implemented by every heap-allocated value. Kind and
// References let the GC switch on payload shape without a type switch
// per concrete struct living outside this package (spec §4.2.1).
type Object interface {
	Kind() Kind
	Head() *Header
	// References returns the outgoing ObjectId edges the GC must trace.
	References() []oid.ObjectId
}

// Heap is the minimal allocator/accessor surface the object model needs
// from the GC, kept as an interface here so this package never imports
// package gc (gc depends on object, not the reverse).
type Heap interface {
	Alloc(o Object) oid.ObjectId
	Get(id oid.ObjectId) Object
	WriteBarrier(owner, child oid.ObjectId)
}

// --- Immutable scalar payloads ---

type Integer struct {
	Header
	Value int64
}

func (o *Integer) Kind() Kind                { return KInteger }
func (o *Integer) Head() *Header             { return &o.Header }
func (o *Integer) References() []oid.ObjectId { return nil }

type Float struct {
	Header
	Value float64
}

func (o *Float) Kind() Kind                { return KFloat }
func (o *Float) Head() *Header             { return &o.Header }
func (o *Float) References() []oid.ObjectId { return nil }

type String struct {
	Header
	Value string
}

func (o *String) Kind() Kind                { return KString }
func (o *String) Head() *Header             { return &o.Header }
func (o *String) References() []oid.ObjectId { return nil }

type Bytes struct {
	Header
	Value []byte
}

func (o *Bytes) Kind() Kind                { return KBytes }
func (o *Bytes) Head() *Header             { return &o.Header }
func (o *Bytes) References() []oid.ObjectId { return nil }

type Bool struct {
	Header
	Value bool
}

func (o *Bool) Kind() Kind                { return KBool }
func (o *Bool) Head() *Header             { return &o.Header }
func (o *Bool) References() []oid.ObjectId { return nil }

type None struct {
	Header
}

func (o *None) Kind() Kind                { return KNone }
func (o *None) Head() *Header             { return &o.Header }
func (o *None) References() []oid.ObjectId { return nil }

// --- Mutable compound payloads ---

type List struct {
	Header
	Items []oid.ObjectId
}

func (o *List) Kind() Kind    { return KList }
func (o *List) Head() *Header { return &o.Header }
func (o *List) References() []oid.ObjectId {
	return append([]oid.ObjectId(nil), o.Items...)
}

type Range struct {
	Header
	Lo, Hi int64 // half-open
}

func (o *Range) Kind() Kind                { return KRange }
func (o *Range) Head() *Header             { return &o.Header }
func (o *Range) References() []oid.ObjectId { return nil }

// Instance is a ClassInstance: a mapping of attribute name to object
// reference, plus the class it was built from.
type Instance struct {
	Header
	Attrs map[string]oid.ObjectId
}

func NewInstance(cls oid.ObjectId) *Instance {
	i := &Instance{Attrs: make(map[string]oid.ObjectId)}
	i.Cls = cls
	return i
}

func (o *Instance) Kind() Kind    { return KInstance }
func (o *Instance) Head() *Header { return &o.Header }
func (o *Instance) References() []oid.ObjectId {
	refs := make([]oid.ObjectId, 0, len(o.Attrs))
	for _, v := range o.Attrs {
		refs = append(refs, v)
	}
	return refs
}

// HashMap backs the HashMap built-in class (string keys for simplicity,
// matching the original implementation's use of a hashable wrapper).
type HashMap struct {
	Header
	Items map[string]oid.ObjectId
	Keys  map[string]oid.ObjectId // original key object, for iteration
}

func NewHashMap() *HashMap {
	return &HashMap{Items: make(map[string]oid.ObjectId), Keys: make(map[string]oid.ObjectId)}
}

func (o *HashMap) Kind() Kind    { return KHashMap }
func (o *HashMap) Head() *Header { return &o.Header }
func (o *HashMap) References() []oid.ObjectId {
	refs := make([]oid.ObjectId, 0, len(o.Items)*2)
	for _, v := range o.Items {
		refs = append(refs, v)
	}
	for _, k := range o.Keys {
		refs = append(refs, k)
	}
	return refs
}

type HashSet struct {
	Header
	Items map[string]oid.ObjectId
}

func NewHashSet() *HashSet {
	return &HashSet{Items: make(map[string]oid.ObjectId)}
}

func (o *HashSet) Kind() Kind    { return KHashSet }
func (o *HashSet) Head() *Header { return &o.Header }
func (o *HashSet) References() []oid.ObjectId {
	refs := make([]oid.ObjectId, 0, len(o.Items))
	for _, v := range o.Items {
		refs = append(refs, v)
	}
	return refs
}
