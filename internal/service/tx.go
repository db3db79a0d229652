package service

import (
	"context"

	"gorm.io/gorm"
)

// runTx runs fn inside a DB transaction. When db is nil (unit tests with
// in-memory repositories) fn runs with a nil tx.
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}
