// ABOUTME: Tests for the idempotency cache used to replay completed agent requests.
// ABOUTME: Validates in-flight tracking, TTL expiration, size limits, cleanup, and concurrency safety.

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_BeginFresh(t *testing.T) {
	cache := New[string](5*time.Minute, 100)
	defer cache.Close()

	state, _ := cache.Begin("key-1")
	assert.Equal(t, Fresh, state)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_InFlightThenDone(t *testing.T) {
	cache := New[string](5*time.Minute, 100)
	defer cache.Close()

	cache.Begin("key-1")

	state, _ := cache.Begin("key-1")
	assert.Equal(t, InFlight, state)

	cache.Complete("key-1", "result")

	state, v := cache.Begin("key-1")
	assert.Equal(t, Done, state)
	assert.Equal(t, "result", v)
}

func TestCache_Abandon(t *testing.T) {
	cache := New[string](5*time.Minute, 100)
	defer cache.Close()

	cache.Begin("key-1")
	cache.Abandon("key-1")

	state, _ := cache.Begin("key-1")
	assert.Equal(t, Fresh, state)

	// Abandon never removes a completed entry.
	cache.Complete("key-1", "kept")
	cache.Abandon("key-1")
	state, v := cache.Begin("key-1")
	assert.Equal(t, Done, state)
	assert.Equal(t, "kept", v)
}

func TestCache_Expired(t *testing.T) {
	cache := New[int](time.Minute, 100)
	defer cache.Close()

	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Begin("k")
	cache.Complete("k", 42)

	now = now.Add(59 * time.Second)
	state, v := cache.Begin("k")
	assert.Equal(t, Done, state)
	assert.Equal(t, 42, v)

	now = now.Add(2 * time.Second)
	state, _ = cache.Begin("k")
	assert.Equal(t, Fresh, state)
}

func TestCache_InFlightDoesNotExpire(t *testing.T) {
	cache := New[int](time.Minute, 100)
	defer cache.Close()

	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Begin("slow")
	now = now.Add(time.Hour)
	cache.runCleanup()

	state, _ := cache.Begin("slow")
	assert.Equal(t, InFlight, state)
}

func TestCache_SizeLimit(t *testing.T) {
	cache := New[int](5*time.Minute, 3)
	defer cache.Close()

	for i := 0; i < 3; i++ {
		cache.Begin(fmt.Sprintf("k%d", i))
		cache.Complete(fmt.Sprintf("k%d", i), i)
	}
	cache.Begin("k3")

	assert.Equal(t, 3, cache.Len())
	state, _ := cache.Begin("k0")
	assert.Equal(t, Fresh, state, "oldest entry should have been evicted")
}

func TestCache_CompleteAfterEviction(t *testing.T) {
	cache := New[int](5*time.Minute, 1)
	defer cache.Close()

	cache.Begin("a")
	cache.Begin("b") // evicts a
	cache.Complete("a", 1)

	state, v := cache.Begin("a")
	assert.Equal(t, Done, state)
	assert.Equal(t, 1, v)
}

func TestCache_Cleanup(t *testing.T) {
	cache := New[int](time.Minute, 100)
	defer cache.Close()

	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Begin("old")
	cache.Complete("old", 1)
	now = now.Add(2 * time.Minute)
	cache.Begin("new")

	cache.runCleanup()
	assert.Equal(t, 1, cache.Len())
}

func TestCache_ConcurrentBegin(t *testing.T) {
	cache := New[int](5*time.Minute, 1000)
	defer cache.Close()

	var fresh atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if state, _ := cache.Begin("same"); state == Fresh {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fresh.Load(), "exactly one caller may execute")
}

func TestCache_CloseIdempotent(t *testing.T) {
	cache := New[int](time.Minute, 10)
	cache.Close()
	cache.Close()
}
