package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/lojasys/cadastro-sync/internal/models"
)

// singletonConfigID is the only row the dashboard writes scheduling values to.
const singletonConfigID = 1

type ConfigRepository struct {
	store OperationalStore
}

func NewConfigRepository(store OperationalStore) *ConfigRepository {
	return &ConfigRepository{store: store}
}

// Get reads the singleton scheduling config. A missing row falls back to
// defaults so the scheduler always has a usable interval.
func (r *ConfigRepository) Get(ctx context.Context) (models.SyncConfig, error) {
	var cfg models.SyncConfig
	err := r.store.WithOperationalStore(ctx, func(db *gorm.DB) error {
		result := db.WithContext(ctx).First(&cfg, "id = ?", singletonConfigID)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				cfg = models.SyncConfig{ID: singletonConfigID, TimerMs: models.DefaultTimerMs}
				return nil
			}
			return fmt.Errorf("failed to read sync config: %w", result.Error)
		}
		return nil
	})
	return cfg, err
}
