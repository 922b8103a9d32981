package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lojasys/cadastro-sync/internal/models"
)

var ErrCustomerNotFound = errors.New("customer not found")

// OperationalStore executes a unit of work against a live operational-store
// connection. Satisfied by *supervisor.Supervisor.
type OperationalStore interface {
	WithOperationalStore(ctx context.Context, fn func(*gorm.DB) error) error
}

type CustomerRepository struct {
	store OperationalStore
}

func NewCustomerRepository(store OperationalStore) *CustomerRepository {
	return &CustomerRepository{store: store}
}

// PendingCustomers retrieves records still eligible for submission:
// never registered, never recused, and either operator-authorized or picked
// up automatically when automatic mode is on.
func (r *CustomerRepository) PendingCustomers(ctx context.Context, automatic bool, limit int) ([]models.Customer, error) {
	var customers []models.Customer
	err := r.store.WithOperationalStore(ctx, func(db *gorm.DB) error {
		q := db.WithContext(ctx).
			Where("registered = ? AND recused = ?", false, false)
		if !automatic {
			q = q.Where("authorized = ?", true)
		}
		result := q.Order("created_at ASC").Limit(limit).Find(&customers)
		if result.Error != nil {
			return fmt.Errorf("failed to query pending customers: %w", result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return customers, nil
}

// UnconsolidatedCustomers retrieves records whose ERP consolidation was
// never durably confirmed and that were not rejected by the partner.
func (r *CustomerRepository) UnconsolidatedCustomers(ctx context.Context) ([]models.Customer, error) {
	var customers []models.Customer
	err := r.store.WithOperationalStore(ctx, func(db *gorm.DB) error {
		result := db.WithContext(ctx).
			Where("consolid = ? AND recused_msg IS NULL", false).
			Order("created_at ASC").
			Find(&customers)
		if result.Error != nil {
			return fmt.Errorf("failed to query unconsolidated customers: %w", result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return customers, nil
}

// GetByID retrieves a single customer record.
func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*models.Customer, error) {
	var customer models.Customer
	err := r.store.WithOperationalStore(ctx, func(db *gorm.DB) error {
		result := db.WithContext(ctx).First(&customer, "id = ?", id)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return ErrCustomerNotFound
			}
			return fmt.Errorf("failed to get customer: %w", result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// MarkRegistered records a successful partner registration. The update
// enforces the registration invariant in one statement: a registered row is
// always authorized, carries the partner id, and cannot remain recused.
func (r *CustomerRepository) MarkRegistered(ctx context.Context, id int64, codcli string, intent models.RegistrationIntent) error {
	return r.store.WithOperationalStore(ctx, func(db *gorm.DB) error {
		result := db.WithContext(ctx).Model(&models.Customer{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"registered":  true,
				"authorized":  true,
				"recused":     false,
				"recused_msg": nil,
				"codcli":      codcli,
				"novo":        intent == models.IntentNew,
				"atualizado":  intent == models.IntentUpdate,
				"updated_at":  time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to mark customer %d registered: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrCustomerNotFound
		}
		return nil
	})
}

// MarkRecused records a partner rejection. The verbatim response body is
// kept so an operator can read the reason; the record stays unregistered
// and drops out of the candidate set until manually corrected.
func (r *CustomerRepository) MarkRecused(ctx context.Context, id int64, msg string) error {
	return r.store.WithOperationalStore(ctx, func(db *gorm.DB) error {
		result := db.WithContext(ctx).Model(&models.Customer{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"recused":     true,
				"recused_msg": msg,
				"updated_at":  time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to mark customer %d recused: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrCustomerNotFound
		}
		return nil
	})
}

// MarkConsolidated confirms the ERP profile write was committed.
func (r *CustomerRepository) MarkConsolidated(ctx context.Context, id int64) error {
	return r.store.WithOperationalStore(ctx, func(db *gorm.DB) error {
		result := db.WithContext(ctx).Model(&models.Customer{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"consolid":   true,
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to mark customer %d consolidated: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrCustomerNotFound
		}
		return nil
	})
}
