// Package watcher runs the engine's timers: the hot-reloadable sync
// scheduler, the config poller that restarts it, and the consolidation
// sweeper.
package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lojasys/cadastro-sync/internal/models"
	"github.com/lojasys/cadastro-sync/internal/service"
)

// candidateLimit bounds how many records one tick may pick up.
const candidateLimit = 100

// CandidateSource selects records eligible for submission.
type CandidateSource interface {
	PendingCustomers(ctx context.Context, automatic bool, limit int) ([]models.Customer, error)
}

// Worker runs the per-record submission pipeline.
type Worker interface {
	Sync(ctx context.Context, c *models.Customer) (service.Outcome, error)
}

// Scheduler dispatches one pipeline run per eligible record on a
// configurable cadence. Restart replaces the schedule entirely (stop and
// recreate) so interval changes take effect on the very next tick and no
// duplicate timers can coexist. In-flight workers run under the process
// context, never the schedule's, so a restart cannot abort them.
type Scheduler struct {
	appCtx context.Context
	// workCtx survives app-context cancellation: a pipeline that already
	// started must run to completion so a partner-accepted customer is
	// never left unregistered locally. The shutdown timeout in main is the
	// only bound on it.
	workCtx    context.Context
	candidates CandidateSource
	worker     Worker
	locks      *service.RecordLock
	retries    *service.RetryTracker
	sem        chan struct{}
	log        zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc

	workers sync.WaitGroup
}

func NewScheduler(
	appCtx context.Context,
	candidates CandidateSource,
	worker Worker,
	locks *service.RecordLock,
	retries *service.RetryTracker,
	maxConcurrent int,
	log zerolog.Logger,
) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Scheduler{
		appCtx:     appCtx,
		workCtx:    context.WithoutCancel(appCtx),
		candidates: candidates,
		worker:     worker,
		locks:      locks,
		retries:    retries,
		sem:        make(chan struct{}, maxConcurrent),
		log:        log.With().Str("component", "scheduler").Logger(),
	}
}

// Restart cancels any existing schedule and starts a new one. The first
// pass runs immediately, then on every interval tick.
func (s *Scheduler) Restart(interval time.Duration, automatic bool) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	runCtx, cancel := context.WithCancel(s.appCtx)
	s.cancel = cancel
	s.mu.Unlock()

	s.log.Info().Dur("interval", interval).Bool("automatic", automatic).
		Msg("scheduler (re)started")

	go s.run(runCtx, interval, automatic)
}

// Stop cancels the current schedule. Already-dispatched workers finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
}

// Wait blocks until all dispatched workers have finished.
func (s *Scheduler) Wait() {
	s.workers.Wait()
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration, automatic bool) {
	s.tick(ctx, automatic)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, automatic)
		}
	}
}

// tick selects candidates and dispatches a worker per record. A selection
// failure aborts only this tick; the next one starts from scratch.
func (s *Scheduler) tick(ctx context.Context, automatic bool) {
	runID := uuid.NewString()[:8]
	log := s.log.With().Str("run_id", runID).Logger()

	candidates, err := s.candidates.PendingCustomers(ctx, automatic, candidateLimit)
	if err != nil {
		log.Error().Err(err).Msg("candidate selection failed, tick aborted")
		return
	}
	if len(candidates) == 0 {
		return
	}

	log.Info().Int("candidates", len(candidates)).Msg("dispatching sync workers")

	for i := range candidates {
		c := candidates[i]

		if !s.retries.Eligible(c.ID) {
			log.Debug().Int64("customer_id", c.ID).Msg("record held back by backoff")
			continue
		}
		if !s.locks.TryAcquire(c.ID) {
			log.Debug().Int64("customer_id", c.ID).Msg("record already in flight, skipped")
			continue
		}

		s.workers.Add(1)
		go s.dispatch(log, c)
	}
}

// dispatch runs one worker, bounded by the semaphore, and releases the
// per-record lock regardless of outcome. Workers still queued on the
// semaphore at shutdown are abandoned untouched; workers already running
// finish under workCtx.
func (s *Scheduler) dispatch(log zerolog.Logger, c models.Customer) {
	defer s.workers.Done()
	defer s.locks.Release(c.ID)

	select {
	case s.sem <- struct{}{}:
	case <-s.appCtx.Done():
		return
	}
	defer func() { <-s.sem }()

	outcome, err := s.worker.Sync(s.workCtx, &c)
	switch {
	case err != nil && outcome == service.OutcomeRetry:
		delay := s.retries.Failure(c.ID)
		log.Warn().Err(err).Int64("customer_id", c.ID).Dur("retry_in", delay).
			Msg("sync failed, will retry")
	case err != nil:
		log.Error().Err(err).Int64("customer_id", c.ID).Msg("sync failed")
	default:
		s.retries.Clear(c.ID)
	}
}
