package sqlite

import (
	"context"
	"errors"
	"strings"
	"time"

	"giftbuyer/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultListLimit = 100

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) *transactionRepository {
	return &transactionRepository{db: db}
}

// Save inserts a purchase. Saving the same tx id twice is a no-op.
func (r *transactionRepository) Save(ctx context.Context, tx *model.GiftTransactionModel) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}
	if strings.TrimSpace(tx.TxID) == "" {
		return errors.New("transaction id cannot be empty")
	}
	if tx.CreatedAtUnix == 0 {
		tx.CreatedAtUnix = time.Now().UnixMilli()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_id"}},
		DoNothing: true,
	}).Create(tx).Error
}

func (r *transactionRepository) ListRecent(ctx context.Context, limit int) ([]model.GiftTransactionModel, error) {
	var out []model.GiftTransactionModel
	if err := r.db.WithContext(ctx).
		Order("purchased_at DESC, id DESC").
		Limit(clampLimit(limit)).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *transactionRepository) ListByInvoice(ctx context.Context, invoiceID string, limit int) ([]model.GiftTransactionModel, error) {
	var out []model.GiftTransactionModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", strings.TrimSpace(invoiceID)).
		Order("purchased_at DESC, id DESC").
		Limit(clampLimit(limit)).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CountByInvoice returns how many gifts were bought per invoice id.
func (r *transactionRepository) CountByInvoice(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		InvoiceID string
		Total     int
	}
	if err := r.db.WithContext(ctx).
		Model(&model.GiftTransactionModel{}).
		Select("invoice_id, COUNT(*) AS total").
		Group("invoice_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.InvoiceID] = row.Total
	}
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return defaultListLimit
	}
	return limit
}
