package service

import "sync"

// RecordLock is the per-record advisory lock. Holding a record's lock is
// required to run the submission pipeline for it, which guarantees at most
// one in-flight submission per record across the scheduler and the sweeper.
type RecordLock struct {
	mu       sync.Mutex
	inFlight map[int64]struct{}
}

func NewRecordLock() *RecordLock {
	return &RecordLock{inFlight: make(map[int64]struct{})}
}

// TryAcquire claims the record if no other pipeline holds it. Non-blocking:
// a dispatcher that loses the race simply skips the record this pass.
func (l *RecordLock) TryAcquire(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.inFlight[id]; held {
		return false
	}
	l.inFlight[id] = struct{}{}
	return true
}

// Release frees the record regardless of the pipeline's outcome.
func (l *RecordLock) Release(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, id)
}

// Held reports whether a pipeline currently owns the record.
func (l *RecordLock) Held(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, held := l.inFlight[id]
	return held
}
