// Package oid defines the stable object identifier shared by every layer
// of the runtime (object model, GC, interpreter, compiler constants).
// It is deliberately dependency-free so it can sit under every other
// package without creating import cycles.
package oid

// ObjectId is an opaque, stable identifier for a heap object. The GC
// never moves objects, so an ObjectId is valid from allocation to
// reclamation (spec testable property 4).
type ObjectId uint32

// Invalid is the sentinel "no object" id; ObjectId(0) is a valid slot
// (typically the None singleton), so it cannot double as "empty".
const Invalid ObjectId = ^ObjectId(0)

func (id ObjectId) Valid() bool { return id != Invalid }
