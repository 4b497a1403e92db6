package store

import (
	"context"

	"giftbuyer/internal/store/model"
)

// UnitOfWork defines a transaction scope.
type UnitOfWork interface {
	Commit() error
	Rollback() error

	// Transactions returns the purchase repository within this transaction.
	Transactions() TransactionRepository
}

// Store is the entry point for database access.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	// Transactions reads outside of any unit of work.
	Transactions() TransactionRepository
	Close() error
}

// TransactionRepository persists confirmed gift purchases.
type TransactionRepository interface {
	Save(ctx context.Context, tx *model.GiftTransactionModel) error
	ListRecent(ctx context.Context, limit int) ([]model.GiftTransactionModel, error)
	ListByInvoice(ctx context.Context, invoiceID string, limit int) ([]model.GiftTransactionModel, error)
	CountByInvoice(ctx context.Context) (map[string]int, error)
}
