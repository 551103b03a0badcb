// Package concurrency provides the native synchronization primitives
// scripts use to coordinate across the parallel OS threads vm.VM.SpawnThread
// launches (spec §5 scenario S6: "Two threads each incrementing a shared
// counter n times via a HashMap guarded by a native mutex yield a final
// value of 2n; removing the mutex may yield anything less").
//
// Covers the two primitives spec.md's concurrency model actually calls
// for: a mutex and a counting semaphore, exposed to scripts the same
// way any §6.3 native module extends an existing class.
package concurrency

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"ember/internal/object"
	"ember/internal/oid"
	"ember/internal/rt"
	"ember/internal/vm"
)

// nativeMutex backs the script-visible Mutex class. It implements
// object.Extension so the GC traces through it like any other heap
// value, even though its payload (a *sync.Mutex) holds no object
// references of its own.
type nativeMutex struct {
	mu sync.Mutex
}

func (m *nativeMutex) TypeName() string           { return "Mutex" }
func (m *nativeMutex) GetReference() []oid.ObjectId { return nil }

// nativeSemaphore backs the script-visible Semaphore class on top of
// golang.org/x/sync/semaphore.Weighted, minus any timeout/Acquire(ctx)
// surface this language's synchronous method-call convention has no
// way to express (acquire always blocks with context.Background()).
// held tracks permits currently checked out so release() can reject an
// over-release the same way a capacity-bounded channel would, since
// Weighted itself exposes no "current count" query.
type nativeSemaphore struct {
	sem      *semaphore.Weighted
	capacity int64
	held     int64
}

func (s *nativeSemaphore) TypeName() string             { return "Semaphore" }
func (s *nativeSemaphore) GetReference() []oid.ObjectId { return nil }

const handleAttr = "__handle__"

// Register installs the "sync" native module (spec §6.3): a Mutex and
// a Semaphore class, each with native lock/unlock or acquire/release
// methods dispatched through the ordinary OpDotGet+OpCall("self") path
// so scripted code calls m.lock() exactly like a method on any other
// class.
func Register(v *vm.VM) *object.Module {
	mutexCls := newNativeClass(v, "Mutex")
	mutexCls.SetAttr("lock", v.NativeFunc("Mutex.lock", mutexLock))
	mutexCls.SetAttr("unlock", v.NativeFunc("Mutex.unlock", mutexUnlock))

	semCls := newNativeClass(v, "Semaphore")
	semCls.SetAttr("acquire", v.NativeFunc("Semaphore.acquire", semAcquire))
	semCls.SetAttr("release", v.NativeFunc("Semaphore.release", semRelease))

	mutexClsID, _ := v.ClassByName("Mutex")
	semClsID, _ := v.ClassByName("Semaphore")

	return v.RegisterNativeModule("sync", map[string]oid.ObjectId{
		"Mutex":     v.NativeFunc("Mutex.__new__", newMutexCtor(mutexClsID)),
		"Semaphore": v.NativeFunc("Semaphore.__new__", newSemaphoreCtor(semClsID)),
	})
}

func newNativeClass(v *vm.VM, name string) *object.Class {
	cls := object.NewClass(name)
	id := v.Heap().Alloc(cls)
	v.RegisterClassName(name, id)
	return cls
}

// newMutexCtor builds the Mutex class's __new__: allocate an instance,
// stash a fresh *nativeMutex behind the hidden handle attribute, and
// return the instance itself (spec §9's __new__ convention: its result
// IS the instance, skipping __init__).
func newMutexCtor(classID oid.ObjectId) object.NativeFn {
	return func(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
		inst := object.NewInstance(classID)
		instID := t.Alloc(inst)
		handleID := t.Alloc(&object.ExtensionObj{Payload: &nativeMutex{}})
		inst.Attrs[handleAttr] = handleID
		t.WriteBarrier(instID, handleID)
		return instID, nil
	}
}

func newSemaphoreCtor(classID oid.ObjectId) object.NativeFn {
	return func(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
		capacity := int64(1)
		if len(args) > 0 {
			if n, ok := t.Get(args[0]).(*object.Integer); ok {
				capacity = n.Value
			}
		}
		if capacity < 1 {
			return oid.Invalid, rt.New(rt.KindValue, "semaphore capacity must be at least 1")
		}
		inst := object.NewInstance(classID)
		instID := t.Alloc(inst)
		handle := &nativeSemaphore{sem: semaphore.NewWeighted(capacity), capacity: capacity}
		handleID := t.Alloc(&object.ExtensionObj{Payload: handle})
		inst.Attrs[handleAttr] = handleID
		t.WriteBarrier(instID, handleID)
		return instID, nil
	}
}

func mutexHandle(t object.Thread, self oid.ObjectId) (*nativeMutex, error) {
	inst, ok := t.Get(self).(*object.Instance)
	if !ok {
		return nil, rt.New(rt.KindType, "not a Mutex instance")
	}
	ext, ok := t.Get(inst.Attrs[handleAttr]).(*object.ExtensionObj)
	if !ok {
		return nil, rt.New(rt.KindType, "corrupt Mutex handle")
	}
	m, ok := ext.Payload.(*nativeMutex)
	if !ok {
		return nil, rt.New(rt.KindType, "corrupt Mutex handle")
	}
	return m, nil
}

func semaphoreHandle(t object.Thread, self oid.ObjectId) (*nativeSemaphore, error) {
	inst, ok := t.Get(self).(*object.Instance)
	if !ok {
		return nil, rt.New(rt.KindType, "not a Semaphore instance")
	}
	ext, ok := t.Get(inst.Attrs[handleAttr]).(*object.ExtensionObj)
	if !ok {
		return nil, rt.New(rt.KindType, "corrupt Semaphore handle")
	}
	s, ok := ext.Payload.(*nativeSemaphore)
	if !ok {
		return nil, rt.New(rt.KindType, "corrupt Semaphore handle")
	}
	return s, nil
}

// mutexLock/mutexUnlock block the calling goroutine directly; they do
// not poll vm.VM.Safepoint themselves because a held lock is by
// definition a short critical section, not a loop a collector needs a
// cooperative yield point inside of (spec §4.2's safepoints cover
// script loop back-edges, not native call bodies).
func mutexLock(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
	m, err := mutexHandle(t, args[0])
	if err != nil {
		return oid.Invalid, err
	}
	m.mu.Lock()
	return args[0], nil
}

func mutexUnlock(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
	m, err := mutexHandle(t, args[0])
	if err != nil {
		return oid.Invalid, err
	}
	m.mu.Unlock()
	return args[0], nil
}

func semAcquire(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
	s, err := semaphoreHandle(t, args[0])
	if err != nil {
		return oid.Invalid, err
	}
	if aerr := s.sem.Acquire(context.Background(), 1); aerr != nil {
		return oid.Invalid, rt.New(rt.KindRuntime, "semaphore acquire failed")
	}
	atomic.AddInt64(&s.held, 1)
	return args[0], nil
}

func semRelease(t object.Thread, args []oid.ObjectId) (oid.ObjectId, error) {
	s, err := semaphoreHandle(t, args[0])
	if err != nil {
		return oid.Invalid, err
	}
	if atomic.AddInt64(&s.held, -1) < 0 {
		atomic.AddInt64(&s.held, 1)
		return oid.Invalid, rt.New(rt.KindRuntime, "semaphore released more permits than were acquired")
	}
	s.sem.Release(1)
	return args[0], nil
}
