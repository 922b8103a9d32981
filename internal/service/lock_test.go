package service

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordLock_SecondAcquireFails(t *testing.T) {
	locks := NewRecordLock()

	assert.True(t, locks.TryAcquire(1))
	assert.False(t, locks.TryAcquire(1))
	assert.True(t, locks.TryAcquire(2), "other records are independent")

	locks.Release(1)
	assert.True(t, locks.TryAcquire(1))
}

func TestRecordLock_Held(t *testing.T) {
	locks := NewRecordLock()
	assert.False(t, locks.Held(7))
	locks.TryAcquire(7)
	assert.True(t, locks.Held(7))
	locks.Release(7)
	assert.False(t, locks.Held(7))
}

// Two concurrent dispatchers racing for the same record must yield exactly
// one winner, which is what bounds a record to one partner call.
func TestRecordLock_ConcurrentAcquire(t *testing.T) {
	locks := NewRecordLock()

	const racers = 50
	var wins int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if locks.TryAcquire(99) {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), wins)
}
