package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lojasys/cadastro-sync/internal/models"
	"github.com/lojasys/cadastro-sync/internal/service"
)

// defaultStagger spaces out the sweeper's re-submissions: the Nth record of
// a sweep starts N×stagger after the sweep begins, bounding the burst rate
// against the partner endpoint.
const defaultStagger = 10 * time.Second

// UnconsolidatedSource selects records whose ERP consolidation was never
// confirmed.
type UnconsolidatedSource interface {
	UnconsolidatedCustomers(ctx context.Context) ([]models.Customer, error)
}

// Sweeper periodically re-attempts ERP consolidation for records whose
// remote submission outcome was not durably confirmed. It shares the
// per-record lock with the scheduler, so the two can never process the same
// record at once.
type Sweeper struct {
	customers UnconsolidatedSource
	worker    Worker
	locks     *service.RecordLock
	interval  time.Duration
	stagger   time.Duration
	log       zerolog.Logger

	workers sync.WaitGroup
}

func NewSweeper(customers UnconsolidatedSource, worker Worker, locks *service.RecordLock, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		customers: customers,
		worker:    worker,
		locks:     locks,
		interval:  interval,
		stagger:   defaultStagger,
		log:       log.With().Str("component", "sweeper").Logger(),
	}
}

// Start sweeps on a fixed cadence until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Wait blocks until all in-flight re-submissions have finished.
func (s *Sweeper) Wait() {
	s.workers.Wait()
}

func (s *Sweeper) sweep(ctx context.Context) {
	candidates, err := s.customers.UnconsolidatedCustomers(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("consolidation sweep query failed")
		return
	}
	if len(candidates) == 0 {
		return
	}

	s.log.Info().Int("records", len(candidates)).Msg("consolidation sweep started")

	// Retries that already started must finish even if ctx is cancelled
	// mid-sweep; only records still waiting out their stagger are abandoned.
	workCtx := context.WithoutCancel(ctx)

	for i := range candidates {
		c := candidates[i]
		delay := time.Duration(i) * s.stagger

		s.workers.Add(1)
		go func() {
			defer s.workers.Done()

			if delay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
				}
			}

			if !s.locks.TryAcquire(c.ID) {
				s.log.Debug().Int64("customer_id", c.ID).Msg("record in flight, sweep skipped")
				return
			}
			defer s.locks.Release(c.ID)

			if _, err := s.worker.Sync(workCtx, &c); err != nil {
				s.log.Warn().Err(err).Int64("customer_id", c.ID).
					Msg("consolidation retry failed, will retry next sweep")
			}
		}()
	}
}
