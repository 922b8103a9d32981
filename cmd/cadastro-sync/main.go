package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lojasys/cadastro-sync/internal/config"
	"github.com/lojasys/cadastro-sync/internal/database"
	"github.com/lojasys/cadastro-sync/internal/erp"
	"github.com/lojasys/cadastro-sync/internal/logger"
	"github.com/lojasys/cadastro-sync/internal/partner"
	"github.com/lojasys/cadastro-sync/internal/repository"
	"github.com/lojasys/cadastro-sync/internal/service"
	"github.com/lojasys/cadastro-sync/internal/supervisor"
	"github.com/lojasys/cadastro-sync/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{Env: cfg.AppEnv, Level: cfg.LogLevel})
	log.Info().Str("env", cfg.AppEnv).Msg("starting cadastro-sync")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to both stores; failing either at startup is fatal.
	sup, err := supervisor.New(ctx, supervisor.Config{
		OperationalURL: cfg.DatabaseURL,
		ErpURL:         cfg.ErpDatabaseURL,
	}, log)
	if err != nil {
		return err
	}
	defer sup.Close()

	log.Info().Msg("stores connected")

	// Run migrations
	if err := sup.WithOperationalStore(ctx, database.RunMigrations); err != nil {
		return err
	}
	log.Info().Msg("migrations completed")

	// Initialize repositories
	customerRepo := repository.NewCustomerRepository(sup)
	configRepo := repository.NewConfigRepository(sup)
	customerMaster := erp.NewCustomerMaster(sup)

	// Partner API client and token lifecycle. The first refresh runs
	// synchronously so a bearer is held before the scheduler's first pass
	// can submit anything.
	partnerClient := partner.NewClient(cfg.PartnerAuthURL, cfg.PartnerBaseURL, cfg.PartnerLogin, cfg.PartnerPassword)
	tokens := partner.NewTokenManager(partnerClient, cfg.TokenRefresh, log)
	tokens.Refresh(ctx)
	go tokens.Start(ctx)

	// Per-record coordination shared by scheduler and sweeper
	locks := service.NewRecordLock()
	retries := service.NewRetryTracker()

	worker := service.NewSyncWorker(customerRepo, customerMaster, partnerClient, tokens, log)

	sched := watcher.NewScheduler(ctx, customerRepo, worker, locks, retries, cfg.MaxConcurrent, log)
	configWatcher := watcher.NewConfigWatcher(configRepo, sched, cfg.ConfigPoll, log)
	sweeper := watcher.NewSweeper(customerRepo, worker, locks, cfg.ErpRefresh, log)

	// The config watcher brings the scheduler up with the persisted interval.
	go configWatcher.Start(ctx)
	go sweeper.Start(ctx)
	go sup.StartErpRefresh(ctx, cfg.ErpRefresh)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Info().Msg("shutdown signal received")

	// Stop the timers; let already-dispatched workers finish within the
	// shutdown budget.
	sched.Stop()
	cancel()

	done := make(chan struct{})
	go func() {
		sched.Wait()
		sweeper.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("application stopped")
	case <-time.After(cfg.ShutdownTimeout):
		log.Warn().Msg("shutdown timeout exceeded")
	}

	return nil
}
