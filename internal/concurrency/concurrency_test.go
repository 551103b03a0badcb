package concurrency

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/internal/object"
	"ember/internal/oid"
	"ember/internal/vm"
)

// callMethod mirrors the OpDotGet+OpCall("self") sequence the compiler
// emits for a method call: look up the attribute on the instance's
// class, then invoke it with the receiver prepended to args.
func callMethod(t object.Thread, recv oid.ObjectId, name string, args ...oid.ObjectId) (oid.ObjectId, error) {
	fnID, ok := object.GetAttr(t, recv, name)
	if !ok {
		panic("no method " + name)
	}
	callArgs := append([]oid.ObjectId{recv}, args...)
	return t.Call(fnID, callArgs)
}

func TestMutexSerializesConcurrentIncrements(t *testing.T) {
	v := vm.New()
	mod := Register(v)
	th := v.MainThread(nil)

	mutexCtor, ok := mod.Exports["Mutex"]
	require.True(t, ok)
	mutexID, err := th.Call(mutexCtor, nil)
	require.NoError(t, err)

	counter := 0
	const perGoroutine = 2000
	const goroutines = 8

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gth := v.MainThread(nil)
			for j := 0; j < perGoroutine; j++ {
				_, err := callMethod(gth, mutexID, "lock")
				require.NoError(t, err)
				counter++
				_, err = callMethod(gth, mutexID, "unlock")
				require.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*perGoroutine, counter)
}

func TestSemaphoreLimitsConcurrentHolders(t *testing.T) {
	v := vm.New()
	mod := Register(v)
	th := v.MainThread(nil)

	semCtor, ok := mod.Exports["Semaphore"]
	require.True(t, ok)
	capID := v.Heap().Alloc(&object.Integer{Value: 2})
	semID, err := th.Call(semCtor, []oid.ObjectId{capID})
	require.NoError(t, err)

	var mu sync.Mutex
	current, maxSeen := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gth := v.MainThread(nil)
			_, err := callMethod(gth, semID, "acquire")
			require.NoError(t, err)

			mu.Lock()
			current++
			if current > maxSeen {
				maxSeen = current
			}
			mu.Unlock()

			mu.Lock()
			current--
			mu.Unlock()

			_, err = callMethod(gth, semID, "release")
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen, 2)
}

func TestSemaphoreRejectsOverRelease(t *testing.T) {
	v := vm.New()
	mod := Register(v)
	th := v.MainThread(nil)

	semCtor := mod.Exports["Semaphore"]
	capID := v.Heap().Alloc(&object.Integer{Value: 1})
	semID, err := th.Call(semCtor, []oid.ObjectId{capID})
	require.NoError(t, err)

	_, err = callMethod(th, semID, "release")
	assert.Error(t, err)
}
