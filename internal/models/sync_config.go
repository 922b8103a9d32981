package models

import "time"

// DefaultTimerMs is used when the config row is missing or carries a
// non-positive interval.
const DefaultTimerMs = 5000

// SyncConfig is the singleton scheduling row read by the config watcher.
// `timer` is the scheduler interval in milliseconds; when `automatic` is
// true, records that were never authorized by an operator are also eligible.
type SyncConfig struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	TimerMs   int       `gorm:"column:timer"`
	Automatic bool      `gorm:"column:automatic"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (SyncConfig) TableName() string {
	return "config_cadastro_clientes"
}

// Interval returns the scheduler interval, falling back to the default for
// non-positive values so a bad row can never stall the scheduler.
func (c SyncConfig) Interval() time.Duration {
	ms := c.TimerMs
	if ms <= 0 {
		ms = DefaultTimerMs
	}
	return time.Duration(ms) * time.Millisecond
}

// Equal reports whether two configs would produce the same schedule.
func (c SyncConfig) Equal(o SyncConfig) bool {
	return c.TimerMs == o.TimerMs && c.Automatic == o.Automatic
}
