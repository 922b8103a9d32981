package watcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lojasys/cadastro-sync/internal/models"
	"github.com/lojasys/cadastro-sync/internal/service"
)

type fakeCandidates struct {
	mu        sync.Mutex
	customers []models.Customer
	err       error
	queries   int
	automatic []bool
}

func (f *fakeCandidates) PendingCustomers(_ context.Context, automatic bool, _ int) ([]models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	f.automatic = append(f.automatic, automatic)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Customer, len(f.customers))
	copy(out, f.customers)
	return out, nil
}

func (f *fakeCandidates) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

type fakeWorker struct {
	syncFunc func(ctx context.Context, c *models.Customer) (service.Outcome, error)
	calls    atomic.Int64
}

func (f *fakeWorker) Sync(ctx context.Context, c *models.Customer) (service.Outcome, error) {
	f.calls.Add(1)
	if f.syncFunc != nil {
		return f.syncFunc(ctx, c)
	}
	return service.OutcomeRegistered, nil
}

func newTestScheduler(t *testing.T, candidates CandidateSource, worker Worker) *Scheduler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s := NewScheduler(ctx, candidates, worker, service.NewRecordLock(), service.NewRetryTracker(), 4, zerolog.Nop())
	t.Cleanup(func() {
		s.Stop()
		s.Wait()
	})
	return s
}

func TestScheduler_DispatchesEligibleRecords(t *testing.T) {
	candidates := &fakeCandidates{customers: []models.Customer{
		{ID: 1, TaxID: "11111111111"},
		{ID: 2, TaxID: "22222222222"},
	}}
	worker := &fakeWorker{}

	s := newTestScheduler(t, candidates, worker)
	s.Restart(time.Hour, false)

	assert.Eventually(t, func() bool {
		return worker.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}

// Concurrently overlapping ticks must never run two pipelines for the same
// record: repeated selections of a still-in-flight record are skipped, so
// the partner sees exactly one call.
func TestScheduler_AtMostOneInFlightPerRecord(t *testing.T) {
	candidates := &fakeCandidates{customers: []models.Customer{{ID: 1, TaxID: "11111111111"}}}

	var inFlight, maxInFlight atomic.Int64
	release := make(chan struct{})
	worker := &fakeWorker{
		syncFunc: func(context.Context, *models.Customer) (service.Outcome, error) {
			cur := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				prev := maxInFlight.Load()
				if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
					break
				}
			}
			<-release
			return service.OutcomeRegistered, nil
		},
	}

	s := newTestScheduler(t, candidates, worker)
	s.Restart(10*time.Millisecond, false)

	// Let several ticks fire while the first pipeline is still blocked.
	assert.Eventually(t, func() bool {
		return candidates.queryCount() >= 5
	}, time.Second, 5*time.Millisecond)

	close(release)
	s.Stop()
	s.Wait()

	assert.Equal(t, int64(1), maxInFlight.Load(), "per-record lock must serialize pipelines")
	assert.Equal(t, int64(1), worker.calls.Load(), "only one partner submission for the record")
}

// Restart replaces the schedule rather than stacking a second one: after
// restarting onto a huge interval, only the immediate pass of the new
// schedule fires and the old cadence is gone.
func TestScheduler_RestartReplacesSchedule(t *testing.T) {
	candidates := &fakeCandidates{}
	worker := &fakeWorker{}

	s := newTestScheduler(t, candidates, worker)
	s.Restart(10*time.Millisecond, false)

	assert.Eventually(t, func() bool {
		return candidates.queryCount() >= 3
	}, time.Second, 5*time.Millisecond)

	s.Restart(time.Hour, false)
	// Allow the immediate pass of the new schedule to land.
	time.Sleep(50 * time.Millisecond)
	settled := candidates.queryCount()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, candidates.queryCount(), "old 10ms cadence must be fully stopped")
}

// Graceful shutdown stops the timers but lets already-running pipelines
// finish: cancelling the process context must not cancel the context a
// mid-flight worker (and its store/HTTP calls) runs under.
func TestScheduler_ShutdownDoesNotCancelInFlightWorker(t *testing.T) {
	candidates := &fakeCandidates{customers: []models.Customer{{ID: 1, TaxID: "11111111111"}}}

	entered := make(chan struct{})
	release := make(chan struct{})
	var workerCtxErr error
	worker := &fakeWorker{
		syncFunc: func(ctx context.Context, _ *models.Customer) (service.Outcome, error) {
			close(entered)
			<-release
			workerCtxErr = ctx.Err()
			return service.OutcomeRegistered, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(ctx, candidates, worker, service.NewRecordLock(), service.NewRetryTracker(), 4, zerolog.Nop())
	s.Restart(time.Hour, false)

	<-entered

	// Mirror main's shutdown order: stop the schedule, cancel the process
	// context, then wait for the worker.
	s.Stop()
	cancel()
	close(release)
	s.Wait()

	require.NoError(t, workerCtxErr, "in-flight worker context must survive shutdown")
	assert.Equal(t, int64(1), worker.calls.Load())
}

func TestScheduler_QueryFailureAbortsTickOnly(t *testing.T) {
	candidates := &fakeCandidates{err: errors.New("select failed")}
	worker := &fakeWorker{}

	s := newTestScheduler(t, candidates, worker)
	s.Restart(10*time.Millisecond, false)

	// Ticks keep coming despite the failure, and no worker ever runs.
	assert.Eventually(t, func() bool {
		return candidates.queryCount() >= 3
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, worker.calls.Load())
}

// A transient worker failure arms the per-record backoff: the record is not
// redispatched on the immediately following ticks.
func TestScheduler_TransientFailureArmsBackoff(t *testing.T) {
	candidates := &fakeCandidates{customers: []models.Customer{{ID: 1, TaxID: "11111111111"}}}
	worker := &fakeWorker{
		syncFunc: func(context.Context, *models.Customer) (service.Outcome, error) {
			return service.OutcomeRetry, errors.New("partner unreachable")
		},
	}

	s := newTestScheduler(t, candidates, worker)
	s.Restart(10*time.Millisecond, false)

	assert.Eventually(t, func() bool {
		return candidates.queryCount() >= 6
	}, time.Second, 5*time.Millisecond)

	// First dispatch failed; backoff (>=seconds) holds it back on the
	// following ticks.
	assert.Equal(t, int64(1), worker.calls.Load())
}

func TestScheduler_AutomaticFlagReachesQuery(t *testing.T) {
	candidates := &fakeCandidates{}
	worker := &fakeWorker{}

	s := newTestScheduler(t, candidates, worker)
	s.Restart(time.Hour, true)

	require.Eventually(t, func() bool {
		return candidates.queryCount() >= 1
	}, time.Second, 5*time.Millisecond)

	candidates.mu.Lock()
	defer candidates.mu.Unlock()
	assert.True(t, candidates.automatic[0])
}
