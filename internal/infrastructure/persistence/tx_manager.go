package persistence

import (
	"context"

	"gorm.io/gorm"
)

type txContextKey struct{}

// GormTxManager implements shared.TxManager on top of GORM transactions.
// The transaction handle travels in the context, so any repository built
// on dbFromContext participates in the same transaction without knowing
// who opened it.
type GormTxManager struct {
	db *gorm.DB
}

// NewGormTxManager creates a new GormTxManager
func NewGormTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

// WithinTransaction runs fn inside a transaction. The transaction commits
// when fn returns nil and rolls back when it returns an error or panics.
func (m *GormTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}

// dbFromContext returns the transaction handle carried by the context,
// falling back to the repository's own connection
func dbFromContext(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback
}
