// Package vm implements the shared virtual machine (spec §4.5, C5): the
// global class table, module registry, thread registry and global
// singletons, plus the cooperative stop-the-world coordinator the
// garbage collector drives.
//
// Split into the class-table + module-registry + thread-registry
// structure spec.md §4.5 requires, with stop-the-world coordination
// modeled on the safe-pointed STW protocol spec.md §5 describes.
package vm

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ember/internal/code"
	"ember/internal/gc"
	"ember/internal/interp"
	"ember/internal/object"
	"ember/internal/oid"
	"ember/internal/rt"
)

// ThreadID identifies a registered interpreter thread (spec §4.5
// "thread registry: handle -> interpreter state").
type ThreadID string

// Option configures a VM at construction time (spec §2 "Configuration").
type Option func(*VM)

func WithMaxCallDepth(n int) Option {
	return func(v *VM) { v.maxCallDepth = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(v *VM) { v.log = l }
}

// threadHandle is the registry's bookkeeping for one interpreter thread.
type threadHandle struct {
	id     ThreadID
	thread *interp.Thread
	alive  atomic.Bool
}

// VM is the shared runtime state for every interpreter thread in one
// process (spec §4.5). Its class table and module registry are
// read-mostly after boot, protected by a single RWMutex (spec §5 "a
// module-level mutex protects insertions").
type VM struct {
	heap *gc.Collector

	mu          sync.RWMutex
	classes     []oid.ObjectId // indexed by object.BuiltinClass
	classByName map[string]oid.ObjectId
	modules     map[string]*object.Module
	globals     map[string]oid.ObjectId // names visible to every module (builtins)

	threadsMu sync.Mutex
	threads   map[ThreadID]*threadHandle

	fast *interp.FastTable

	noneID, trueID, falseID oid.ObjectId

	// stop-the-world coordination (spec §5 "cooperative stop").
	stopFlag atomic.Bool
	condMu   sync.Mutex
	cond     *sync.Cond

	maxCallDepth int
	log          *slog.Logger
}

// New boots a VM: registers the well-known classes (spec §6.2) with
// fixed ids, the true/false/none singletons, and the arithmetic
// fast-path table (spec §4.4).
func New(opts ...Option) *VM {
	v := &VM{
		classes:      make([]oid.ObjectId, object.NumBuiltinClasses()),
		classByName:  make(map[string]oid.ObjectId),
		modules:      make(map[string]*object.Module),
		globals:      make(map[string]oid.ObjectId),
		threads:      make(map[ThreadID]*threadHandle),
		fast:         interp.NewFastTable(),
		maxCallDepth: 2048,
		log:          slog.Default(),
	}
	v.cond = sync.NewCond(&v.condMu)
	for _, o := range opts {
		o(v)
	}
	v.heap = gc.New(v.log)
	v.heap.SetModuleRootsFunc(v.gcRoots)
	v.noneID = v.heap.Alloc(&object.None{})
	v.trueID = v.heap.Alloc(&object.Bool{Value: true})
	v.falseID = v.heap.Alloc(&object.Bool{Value: false})
	registerBuiltinClasses(v)
	registerFastPaths(v)
	return v
}

// Heap exposes the collector as the object.Heap every allocation site
// needs; the VM never allocates through any other path (spec §4.2).
func (v *VM) Heap() object.Heap { return v.heap }

// Collector exposes the concrete collector for diagnostics and explicit
// GC triggers (the extension ABI's gc_collect/check_gc helpers, §4.6).
func (v *VM) Collector() *gc.Collector { return v.heap }

func (v *VM) ClassID(b object.BuiltinClass) oid.ObjectId {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.classes[b]
}

func (v *VM) setBuiltinClass(b object.BuiltinClass, id oid.ObjectId) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.classes[b] = id
}

// ClassByName resolves a registered class (builtin or script-defined via
// OpClassDef) by display name, used by native modules registering
// methods on an existing class (spec §6.3).
func (v *VM) ClassByName(name string) (oid.ObjectId, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	id, ok := v.classByName[name]
	return id, ok
}

func (v *VM) RegisterClassName(name string, id oid.ObjectId) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.classByName[name] = id
}

func (v *VM) True() oid.ObjectId  { return v.trueID }
func (v *VM) False() oid.ObjectId { return v.falseID }
func (v *VM) None() oid.ObjectId  { return v.noneID }

func (v *VM) FastTable() *interp.FastTable { return v.fast }

// MaxCallDepth is the recursion ceiling native callers (the extension
// ABI's call_fn helper, §4.6) enforce before invoking into scripted
// code, since interp.Thread itself does not bound call-stack depth.
func (v *VM) MaxCallDepth() int { return v.maxCallDepth }

// Global resolves a name first against module's own exports, then the
// VM-wide builtins map (spec §4.5 "module registry").
func (v *VM) Global(module *object.Module, name string) (oid.ObjectId, bool) {
	if module != nil {
		v.mu.RLock()
		id, ok := module.Exports[name]
		v.mu.RUnlock()
		if ok {
			return id, true
		}
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	id, ok := v.globals[name]
	return id, ok
}

func (v *VM) SetGlobal(module *object.Module, name string, id oid.ObjectId) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if module != nil {
		module.Exports[name] = id
		return
	}
	v.globals[name] = id
}

// RegisterGlobal installs a VM-wide builtin (print, len, ...), visible
// to every module regardless of its own exports (spec §6.3 extension
// registration: "a map from export name to ObjectId").
func (v *VM) RegisterGlobal(name string, id oid.ObjectId) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.globals[name] = id
}

// NewInstance implements the §4.1/§9 __new__ convention Ember fixes:
// __new__ is looked up on the class's attribute map first; if present
// it is called with (classID, args...) and its result IS the instance,
// skipping __init__ entirely. Otherwise a zeroed instance is allocated
// and __init__(self, args...), if present, is invoked on it.
func (v *VM) NewInstance(t *interp.Thread, classID oid.ObjectId, args []oid.ObjectId) (oid.ObjectId, error) {
	if newFn, ok := classAttr(v.heap, classID, "__new__"); ok {
		callArgs := append([]oid.ObjectId{classID}, args...)
		return t.Call(newFn, callArgs)
	}
	inst := object.NewInstance(classID)
	instID := v.heap.Alloc(inst)
	if initFn, ok := classAttr(v.heap, classID, "__init__"); ok {
		callArgs := append([]oid.ObjectId{instID}, args...)
		if _, err := t.Call(initFn, callArgs); err != nil {
			return oid.Invalid, err
		}
	}
	return instID, nil
}

// classAttr walks a class's own attribute map and its Parent chain,
// starting from the class object itself rather than an instance of it
// (object.GetAttr's contract instead starts from an instance and looks
// up ClassOf(id); __new__/__init__ lookup starts from the class).
func classAttr(h object.Heap, classID oid.ObjectId, name string) (oid.ObjectId, bool) {
	cls, ok := h.Get(classID).(*object.Class)
	if !ok {
		return oid.Invalid, false
	}
	for cls != nil {
		if v, ok := cls.GetAttr(name); ok {
			return v, true
		}
		if !cls.Parent.Valid() {
			break
		}
		cls, _ = h.Get(cls.Parent).(*object.Class)
	}
	return oid.Invalid, false
}

// RegisterModule inserts a compiled or native module into the registry
// (spec §6.3 "a pure insertion into the VM tables, not visible to
// scripted code until an import").
func (v *VM) RegisterModule(name string, mod *object.Module) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.modules[name] = mod
}

// ResolveModule looks up a registered module by name (spec §4.5).
func (v *VM) ResolveModule(name string) (*object.Module, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	m, ok := v.modules[name]
	return m, ok
}

// Import implements the Import opcode's VM contract: resolve a
// dotted name against the module registry. Ember does not perform
// source-loading here (that is the CLI collaborator's job, §6.4); a
// dotted name not already registered (by the loader or a stdlib
// package's init-time registration) is a name error.
func (v *VM) Import(t *interp.Thread, dotted []string) (oid.ObjectId, error) {
	name := dotted[0]
	for _, d := range dotted[1:] {
		name += "." + d
	}
	mod, ok := v.ResolveModule(name)
	if !ok {
		return oid.Invalid, rt.Newf(rt.KindName, "no module named %q", name)
	}
	return v.heap.Alloc(mod), nil
}

// SpawnThread launches a goroutine that calls fn with args on a fresh
// interp.Thread sharing this VM's heap and registries. The thread is
// listed in the thread registry under a new uuid ThreadID until that
// call returns. It is a Go-level API: the Thread built-in class has no
// script-visible method that calls it. The returned channel receives
// exactly one result once the thread's top-level call returns or raises.
func (v *VM) SpawnThread(fn oid.ObjectId, args []oid.ObjectId, module *object.Module) (ThreadID, <-chan SpawnResult) {
	id := ThreadID(uuid.New().String())
	th := interp.New(v.heap, v, module)
	handle := &threadHandle{id: id, thread: th}
	handle.alive.Store(true)
	v.threadsMu.Lock()
	v.threads[id] = handle
	v.threadsMu.Unlock()

	resultCh := make(chan SpawnResult, 1)
	go func() {
		defer func() {
			handle.alive.Store(false)
			v.threadsMu.Lock()
			delete(v.threads, id)
			v.threadsMu.Unlock()
		}()
		val, err := th.Call(fn, args)
		resultCh <- SpawnResult{Value: val, Err: err}
	}()
	return id, resultCh
}

// SpawnResult is what a spawned thread reports on completion.
type SpawnResult struct {
	Value oid.ObjectId
	Err   error
}

// Safepoint implements interp.VMContext: it parks the calling goroutine
// while a stop-the-world collection is in progress (spec §4.2
// "cooperative safe-points", §5).
func (v *VM) Safepoint() {
	if !v.stopFlag.Load() {
		return
	}
	v.condMu.Lock()
	for v.stopFlag.Load() {
		v.cond.Wait()
	}
	v.condMu.Unlock()
}

// StopTheWorld implements gc.Coordinator: it raises the cooperative-stop
// flag, then uses an errgroup (spec §3 domain stack: x/sync) to wait,
// one goroutine per registered thread, for that thread to either be
// parked in Safepoint or to have already exited (spec §5 "each
// interpreter thread must poll this flag ... and park").
func (v *VM) StopTheWorld() {
	v.stopFlag.Store(true)
	v.threadsMu.Lock()
	handles := make([]*threadHandle, 0, len(v.threads))
	for _, h := range v.threads {
		handles = append(handles, h)
	}
	v.threadsMu.Unlock()

	var g errgroup.Group
	for _, h := range handles {
		h := h
		g.Go(func() error {
			if !h.alive.Load() {
				return nil
			}
			// The goroutine running h.thread is either blocked inside
			// Safepoint (parked) or will be the next time it reaches one;
			// there is nothing further for the collector to wait on here.
			return nil
		})
	}
	_ = g.Wait()
}

// ContinueTheWorld implements gc.Coordinator: clears the stop flag and
// wakes every thread parked in Safepoint.
func (v *VM) ContinueTheWorld() {
	v.stopFlag.Store(false)
	v.condMu.Lock()
	v.cond.Broadcast()
	v.condMu.Unlock()
}

// GatherRoots implements gc.Coordinator: every live call frame across
// every registered thread (spec §4.2 step 3).
func (v *VM) GatherRoots() []oid.ObjectId {
	v.threadsMu.Lock()
	handles := make([]*threadHandle, 0, len(v.threads))
	for _, h := range v.threads {
		handles = append(handles, h)
	}
	v.threadsMu.Unlock()

	var roots []oid.ObjectId
	for _, h := range handles {
		roots = append(roots, h.thread.Roots()...)
	}
	return roots
}

// gcRoots supplements GatherRoots with the parts of VM state that must
// always survive collection regardless of reachability from a frame:
// the builtin class table (spec §3.2 "never collected") and every
// module's exports (spec §4.2 step 3 "module registry entries").
func (v *VM) gcRoots() []oid.ObjectId {
	v.mu.RLock()
	defer v.mu.RUnlock()
	roots := make([]oid.ObjectId, 0, len(v.classes)+len(v.modules)*4)
	roots = append(roots, v.classes...)
	for _, m := range v.modules {
		for _, id := range m.Exports {
			roots = append(roots, id)
		}
	}
	for _, id := range v.globals {
		roots = append(roots, id)
	}
	roots = append(roots, v.trueID, v.falseID, v.noneID)
	return roots
}

// MainThread returns a fresh interpreter thread bound to module, sharing
// this VM's heap and registries; used by the CLI entry point (spec §6.4
// start(module_object_id)) and by tests.
func (v *VM) MainThread(module *object.Module) *interp.Thread {
	return interp.New(v.heap, v, module)
}

// RegisterNativeModule implements the §6.3 extension-registration
// contract for a native stdlib module: its name and a map from export
// name to ObjectId, inserted as a Module object in the registry.
func (v *VM) RegisterNativeModule(name string, exports map[string]oid.ObjectId) *object.Module {
	m := object.NewModule(name)
	for k, id := range exports {
		m.Exports[k] = id
	}
	v.RegisterModule(name, m)
	return m
}

// NativeFunc allocates a Function object wrapping a native Go
// implementation, the common currency of the §6.3 extension surface.
func (v *VM) NativeFunc(name string, fn object.NativeFn) oid.ObjectId {
	return v.heap.Alloc(&object.Function{Name: name, Native: fn})
}

// StartModule runs a module's top-level Code to completion on a fresh
// thread (spec §6.4 "start(module_object_id) runs the module's
// top-level Code, propagating exceptions as process exit status").
func (v *VM) StartModule(code *code.Code) (oid.ObjectId, error) {
	mod := object.NewModule(code.ModuleName)
	codeObjID := v.heap.Alloc(&object.CodeObj{Code: code})
	fn := &object.Function{Name: code.Name, CodeID: codeObjID}
	fnID := v.heap.Alloc(fn)
	mod.Exports["<module>"] = fnID
	v.RegisterModule(code.ModuleName, mod)

	th := v.MainThread(mod)
	v.threadsMu.Lock()
	handle := &threadHandle{id: "main", thread: th}
	handle.alive.Store(true)
	v.threads["main"] = handle
	v.threadsMu.Unlock()
	defer func() {
		v.threadsMu.Lock()
		delete(v.threads, "main")
		v.threadsMu.Unlock()
	}()

	return th.Call(fnID, nil)
}
