// Package repository holds the GORM data access layer. Services depend on the
// interfaces declared here, never on the concrete implementations.
//
// Every mutating method takes an optional tx. A nil tx runs on the repository's
// own connection; services pass the transaction opened by runTx.
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrConditionFailed is returned by conditional updates that matched no row:
// the guarded balance or status changed since the caller read it.
var ErrConditionFailed = errors.New("repository: condition not met")

// IsNotFound reports whether err is gorm's record-not-found.
func IsNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }

// IsDuplicate reports whether err is a unique constraint violation.
func IsDuplicate(err error) bool { return errors.Is(err, gorm.ErrDuplicatedKey) }

func conn(ctx context.Context, db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// affected converts a zero-row conditional update into ErrConditionFailed.
func affected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConditionFailed
	}
	return nil
}
