package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepClock_Advances(t *testing.T) {
	clock := NewStepClock(time.Time{}, 0)

	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, Epoch.Add(time.Second), clock.Now())
	assert.Equal(t, Epoch.Add(2*time.Second), clock.Peek())
}

func TestStepClock_Reset(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := NewStepClock(start, time.Minute)
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.Equal(t, start, clock.Now())
}

func TestStepClock_ThreadSafe(t *testing.T) {
	clock := NewStepClock(time.Time{}, time.Millisecond)
	const n = 200

	var mu sync.Mutex
	seen := make(map[time.Time]bool, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			ts := clock.Now()
			mu.Lock()
			defer mu.Unlock()
			require.False(t, seen[ts], "duplicate timestamp %v", ts)
			seen[ts] = true
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestStepClock_Deterministic(t *testing.T) {
	a := NewStepClock(time.Time{}, 0)
	b := NewStepClock(time.Time{}, 0)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Now(), b.Now())
	}
}

func TestFixedNavIDGenerator(t *testing.T) {
	gen := NewFixedNavIDGenerator("nav-fixed")
	assert.Equal(t, "nav-fixed", gen.Generate())
	assert.Equal(t, "nav-fixed", gen.Generate())

	assert.Equal(t, "test-nav-default", NewFixedNavIDGenerator("").Generate())
}
