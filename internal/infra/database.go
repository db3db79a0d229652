package infra

import (
	"fmt"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies the idempotent SQL patches that GORM
// cannot express (partial indexes).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), Config())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Config is the gorm configuration shared by the server and tests.
// TranslateError maps driver unique violations to gorm.ErrDuplicatedKey.
func Config() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
}

// Models lists every persisted entity in dependency order.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Lot{},
		&model.StockHolding{},
		&model.Transfer{},
		&model.StockRequest{},
		&model.JobOrder{},
		&model.Tag{},
		&model.StickerAllocation{},
		&model.Payment{},
		&model.Certificate{},
		&model.Delegation{},
		&model.ActionLog{},
		&model.Notification{},
	}
}

// RunMigrations applies AutoMigrate plus schema patches. Works on postgres and
// sqlite, so repository tests share the production schema.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL statements that GORM AutoMigrate cannot
// handle on its own. Each statement uses IF NOT EXISTS so re-running on an
// already-patched DB is safe. Syntax is kept to the subset shared by postgres
// and sqlite.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// at most one pending payment per job order
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_one_pending
		    ON payments (job_order_id) WHERE status = 'pending'`,
		// notification retry cron query
		`CREATE INDEX IF NOT EXISTS idx_notifications_pending_retry
		    ON notifications (next_retry_at) WHERE email_status = 'failed'`,
		// request approval scan
		`CREATE INDEX IF NOT EXISTS idx_lots_active_created
		    ON lots (created_at) WHERE status = 'active'`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
