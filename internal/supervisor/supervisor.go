// Package supervisor owns the connections to the operational store and the
// ERP store. Every other component executes its database work through it so
// reconnection is handled in exactly one place.
package supervisor

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lojasys/cadastro-sync/internal/database"
	"github.com/lojasys/cadastro-sync/internal/erp"
)

// reconnectDelay paces the unlimited reconnect loop.
const reconnectDelay = time.Second

type Config struct {
	OperationalURL string
	ErpURL         string
}

type Supervisor struct {
	cfg Config
	log zerolog.Logger

	// connect and ping are swapped out in tests; production uses the
	// database package directly.
	connect func(url string) (*gorm.DB, error)
	ping    func(db *gorm.DB) error

	opMu sync.Mutex
	op   *gorm.DB

	erpMu   sync.Mutex
	erpPool *pgxpool.Pool
}

// New connects to both stores, failing fast if either is unreachable at
// startup. After startup, connection loss is recovered transparently.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Supervisor, error) {
	op, err := database.Connect(cfg.OperationalURL)
	if err != nil {
		return nil, err
	}

	pool, err := erp.NewPool(ctx, cfg.ErpURL)
	if err != nil {
		return nil, err
	}

	return &Supervisor{
		cfg:     cfg,
		log:     log.With().Str("component", "supervisor").Logger(),
		connect: database.Connect,
		ping:    pingOperational,
		op:      op,
		erpPool: pool,
	}, nil
}

// WithOperationalStore runs fn against a live operational-store handle.
// If the handle is down it reconnects first, silently and without limit.
// When fn itself fails with a connection-lost error, a reconnect is
// triggered and the error is returned once; the caller's next scheduled
// attempt will find a healthy connection.
func (s *Supervisor) WithOperationalStore(ctx context.Context, fn func(*gorm.DB) error) error {
	s.opMu.Lock()
	db := s.op
	s.opMu.Unlock()

	if err := s.ping(db); err != nil {
		db = s.reconnectOperational(ctx)
		if db == nil {
			return ctx.Err()
		}
	}

	err := fn(db)
	if err != nil && IsConnLost(err) {
		s.log.Warn().Err(err).Msg("operational store connection lost, reconnecting")
		go s.reconnectOperational(context.WithoutCancel(ctx))
	}
	return err
}

// WithErpStore checks ERP health before each use, reinitializing the pool
// if needed, then runs fn.
func (s *Supervisor) WithErpStore(ctx context.Context, fn func(*pgxpool.Pool) error) error {
	s.erpMu.Lock()
	pool := s.erpPool
	s.erpMu.Unlock()

	if pool == nil || pool.Ping(ctx) != nil {
		var err error
		pool, err = s.reinitErp(ctx)
		if err != nil {
			return err
		}
	}

	return fn(pool)
}

// StartErpRefresh proactively recreates the ERP pool on a fixed cadence to
// bound the lifetime of any single session, even when apparently healthy.
func (s *Supervisor) StartErpRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.reinitErp(ctx); err != nil {
				s.log.Error().Err(err).Msg("scheduled ERP session refresh failed")
			} else {
				s.log.Debug().Msg("ERP session refreshed")
			}
		}
	}
}

// Close releases both store connections.
func (s *Supervisor) Close() {
	s.opMu.Lock()
	if s.op != nil {
		if sqlDB, err := s.op.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	s.opMu.Unlock()

	s.erpMu.Lock()
	if s.erpPool != nil {
		s.erpPool.Close()
		s.erpPool = nil
	}
	s.erpMu.Unlock()
}

// reconnectOperational dials the operational store until it succeeds or the
// context is cancelled. Attempts are unlimited and logged at debug only.
func (s *Supervisor) reconnectOperational(ctx context.Context) *gorm.DB {
	for {
		db, err := s.connect(s.cfg.OperationalURL)
		if err == nil {
			s.opMu.Lock()
			s.op = db
			s.opMu.Unlock()
			s.log.Info().Msg("operational store reconnected")
			return db
		}

		s.log.Debug().Err(err).Msg("operational store reconnect attempt failed")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (s *Supervisor) reinitErp(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := erp.NewPool(ctx, s.cfg.ErpURL)
	if err != nil {
		return nil, err
	}

	s.erpMu.Lock()
	old := s.erpPool
	s.erpPool = pool
	s.erpMu.Unlock()

	if old != nil {
		old.Close()
	}
	return pool, nil
}

func pingOperational(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// IsConnLost classifies an error as a lost-link failure that the supervisor
// recovers from, as opposed to an operation error that must propagate.
func IsConnLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	for _, fragment := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"conn closed",
		"unexpected EOF",
		"the database system is shutting down",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
