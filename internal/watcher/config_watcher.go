package watcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lojasys/cadastro-sync/internal/models"
)

// ConfigSource reads the singleton scheduling config row.
type ConfigSource interface {
	Get(ctx context.Context) (models.SyncConfig, error)
}

// ConfigWatcher polls the persisted scheduling config and restarts the
// scheduler whenever the interval or the automatic flag changes. The
// dashboard writes that row; this is the only channel between it and the
// engine.
type ConfigWatcher struct {
	configs ConfigSource
	sched   *Scheduler
	poll    time.Duration
	log     zerolog.Logger
}

func NewConfigWatcher(configs ConfigSource, sched *Scheduler, poll time.Duration, log zerolog.Logger) *ConfigWatcher {
	return &ConfigWatcher{
		configs: configs,
		sched:   sched,
		poll:    poll,
		log:     log.With().Str("component", "config-watcher").Logger(),
	}
}

// Start reads the config once to bring the scheduler up, then polls until
// ctx is cancelled. A read failure leaves the current schedule running.
func (w *ConfigWatcher) Start(ctx context.Context) {
	last, err := w.configs.Get(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("initial config read failed, using defaults")
		last = models.SyncConfig{TimerMs: models.DefaultTimerMs}
	}
	w.sched.Restart(last.Interval(), last.Automatic)

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current, err := w.configs.Get(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("config read failed, keeping current schedule")
				continue
			}
			if current.Equal(last) {
				continue
			}

			w.log.Info().
				Int("timer_ms", current.TimerMs).
				Bool("automatic", current.Automatic).
				Msg("sync config changed, restarting scheduler")
			w.sched.Restart(current.Interval(), current.Automatic)
			last = current
		}
	}
}
