package buyer

import (
	"context"

	"giftbuyer/internal/gift"
)

// Source lists the gift catalog and executes single purchases. A nil
// transaction with a nil error means the purchase was declined.
type Source interface {
	ListAvailable(ctx context.Context) ([]gift.Gift, error)
	Purchase(ctx context.Context, g gift.Gift, recipientID int64, kind gift.RecipientKind) (*gift.Transaction, error)
}

// Session is implemented by sources that need setup before the first tick.
type Session interface {
	Init(ctx context.Context) error
}

// InvoiceSource yields the configured invoices. The version changes whenever
// the set is reloaded.
type InvoiceSource interface {
	Current() (version int64, invoices []gift.Invoice)
}

// TransactionRecorder persists confirmed purchases.
type TransactionRecorder interface {
	RecordTransaction(ctx context.Context, invoiceID string, tx gift.Transaction) error
}

// ReportSink receives the report of every tick.
type ReportSink interface {
	Publish(ctx context.Context, r Report) error
}
