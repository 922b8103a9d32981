package erp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store executes a unit of work against a live ERP connection. Satisfied by
// *supervisor.Supervisor.
type Store interface {
	WithErpStore(ctx context.Context, fn func(*pgxpool.Pool) error) error
}

// BirthDatePlaceholder is written when the source record carries no usable
// birth date. The ERP rejects NULL in that column.
var BirthDatePlaceholder = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// ConsolidateParams is the slice of the ERP customer row this engine owns
// after a successful partner registration.
type ConsolidateParams struct {
	TaxID         string // sanitized, keys the row
	CellPhone     string
	LoyaltyCard   string // mirrors the tax id
	DeliveryTaxID string // entry-address mirror of the tax id
	FinalConsumer bool
	BirthDate     *time.Time
}

// CustomerMaster reads and updates the ERP `pcclient` table, keyed by the
// sanitized tax id (cgcent).
type CustomerMaster struct {
	store Store
}

func NewCustomerMaster(store Store) *CustomerMaster {
	return &CustomerMaster{store: store}
}

// Exists probes the ERP for a customer row with the given sanitized tax id.
// Presence means a partner submission is an update, absence a new customer.
func (m *CustomerMaster) Exists(ctx context.Context, taxID string) (bool, error) {
	var exists bool
	err := m.store.WithErpStore(ctx, func(pool *pgxpool.Pool) error {
		var one int
		err := pool.QueryRow(ctx, `SELECT 1 FROM pcclient WHERE cgcent = $1`, taxID).Scan(&one)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				exists = false
				return nil
			}
			return fmt.Errorf("probe customer %s: %w", taxID, err)
		}
		exists = true
		return nil
	})
	return exists, err
}

// Consolidate commits the post-registration profile write. The whole update
// runs in one transaction so `consolid` is only ever set after a durable
// birth-date write.
func (m *CustomerMaster) Consolidate(ctx context.Context, p ConsolidateParams) error {
	birth := BirthDatePlaceholder
	if p.BirthDate != nil && !p.BirthDate.IsZero() && p.BirthDate.Year() > 1900 {
		birth = *p.BirthDate
	}

	finalConsumer := "N"
	if p.FinalConsumer {
		finalConsumer = "S"
	}

	return m.store.WithErpStore(ctx, func(pool *pgxpool.Pool) error {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin consolidation tx: %w", err)
		}
		defer tx.Rollback(ctx)

		tag, err := tx.Exec(ctx, `
			UPDATE pcclient
			SET telcelent      = $1,
			    numfidelidade  = $2,
			    cgcentrega     = $3,
			    consumidorfinal = $4,
			    dtnasc         = $5
			WHERE cgcent = $6`,
			p.CellPhone, p.LoyaltyCard, p.DeliveryTaxID, finalConsumer, birth, p.TaxID,
		)
		if err != nil {
			return fmt.Errorf("consolidate customer %s: %w", p.TaxID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("consolidate customer %s: no ERP row", p.TaxID)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit consolidation for %s: %w", p.TaxID, err)
		}
		return nil
	})
}
