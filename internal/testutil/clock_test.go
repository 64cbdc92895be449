package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClock_StartsAtStart(t *testing.T) {
	clock := NewFakeClock(epoch)
	assert.Equal(t, epoch, clock.Now())
}

func TestFakeClock_Advance(t *testing.T) {
	clock := NewFakeClock(epoch)

	assert.Equal(t, epoch.Add(time.Hour), clock.Advance(time.Hour))
	assert.Equal(t, epoch.Add(time.Hour), clock.Now())

	clock.Advance(24 * time.Hour)
	assert.Equal(t, epoch.Add(25*time.Hour), clock.Now())
}

func TestFakeClock_Set(t *testing.T) {
	clock := NewFakeClock(epoch)
	later := epoch.AddDate(0, 1, 0)

	clock.Set(later)
	assert.Equal(t, later, clock.Now())

	// Moving backwards is allowed
	clock.Set(epoch)
	assert.Equal(t, epoch, clock.Now())
}

func TestFakeClock_ThreadSafe(t *testing.T) {
	clock := NewFakeClock(epoch)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				clock.Advance(time.Second)
				_ = clock.Now()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, epoch.Add(1000*time.Second), clock.Now())
}
