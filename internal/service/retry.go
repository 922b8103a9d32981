package service

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryTracker applies exponential backoff per record to transient
// submission failures, so a persistently failing partner endpoint is not
// hammered on every scheduler tick. Rejections and successes clear the
// record's entry; the schedule itself is untouched.
type RetryTracker struct {
	mu      sync.Mutex
	entries map[int64]*retryEntry
}

type retryEntry struct {
	bo   *backoff.ExponentialBackOff
	next time.Time
}

func NewRetryTracker() *RetryTracker {
	return &RetryTracker{entries: make(map[int64]*retryEntry)}
}

// Failure registers a transient failure and returns how long the record is
// held back before it becomes eligible again.
func (t *RetryTracker) Failure(id int64) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[id]
	if !ok {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 5 * time.Second
		bo.MaxInterval = 10 * time.Minute
		entry = &retryEntry{bo: bo}
		t.entries[id] = entry
	}

	delay := entry.bo.NextBackOff()
	entry.next = time.Now().Add(delay)
	return delay
}

// Eligible reports whether the record's hold-back window has passed.
// Records without a failure history are always eligible.
func (t *RetryTracker) Eligible(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[id]
	if !ok {
		return true
	}
	return !time.Now().Before(entry.next)
}

// Clear drops the record's failure history after a terminal outcome.
func (t *RetryTracker) Clear(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}
