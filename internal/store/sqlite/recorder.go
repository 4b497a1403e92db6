package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"giftbuyer/internal/gift"
	"giftbuyer/internal/store"
	"giftbuyer/internal/store/model"

	"gorm.io/datatypes"
)

// Recorder writes confirmed purchases to any Store.
type Recorder struct {
	store store.Store
}

func NewRecorder(st store.Store) *Recorder {
	return &Recorder{store: st}
}

// RecordTransaction stores a confirmed purchase inside its own unit of work.
func (r *Recorder) RecordTransaction(ctx context.Context, invoiceID string, tx gift.Transaction) error {
	uow, err := r.store.Begin(ctx)
	if err != nil {
		return err
	}
	row := TransactionToModel(invoiceID, tx)
	if err := uow.Transactions().Save(ctx, &row); err != nil {
		_ = uow.Rollback()
		return fmt.Errorf("save transaction %s: %w", tx.ID, err)
	}
	return uow.Commit()
}

func TransactionToModel(invoiceID string, tx gift.Transaction) model.GiftTransactionModel {
	return model.GiftTransactionModel{
		TxID:        tx.ID,
		InvoiceID:   invoiceID,
		GiftID:      tx.GiftID,
		RecipientID: tx.RecipientID,
		Price:       tx.Price.String(),
		Raw:         rawJSON(tx.Raw),
		PurchasedAt: tx.Timestamp.UnixMilli(),
	}
}

// rawJSON keeps executor payloads that are JSON as-is and quotes the rest.
func rawJSON(raw string) datatypes.JSON {
	if raw == "" {
		return nil
	}
	if json.Valid([]byte(raw)) {
		return datatypes.JSON(raw)
	}
	quoted, _ := json.Marshal(raw)
	return datatypes.JSON(quoted)
}
