package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManualClock_StartsAtEpoch(t *testing.T) {
	clock := NewManualClock()
	assert.Equal(t, DefaultEpoch, clock.NowUnixSeconds())
	assert.Equal(t, uint64(42), NewManualClockAt(42).NowUnixSeconds())
}

func TestManualClock_AdvanceRewindSet(t *testing.T) {
	clock := NewManualClockAt(100)

	clock.Advance(30)
	assert.Equal(t, uint64(130), clock.NowUnixSeconds())

	clock.Rewind(10)
	assert.Equal(t, uint64(120), clock.NowUnixSeconds())

	// Rewind past zero clamps
	clock.Rewind(1000)
	assert.Equal(t, uint64(0), clock.NowUnixSeconds())

	clock.Set(7)
	assert.Equal(t, uint64(7), clock.NowUnixSeconds())
}

func TestManualClock_ThreadSafe(t *testing.T) {
	clock := NewManualClockAt(0)
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			clock.Advance(1)
			_ = clock.NowUnixSeconds()
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(numGoroutines), clock.NowUnixSeconds())
}
