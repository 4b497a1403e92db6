package model

import (
	"time"

	"gorm.io/datatypes"
)

// GiftTransactionModel is one confirmed purchase made for an invoice.
type GiftTransactionModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	TxID          string         `gorm:"column:tx_id;uniqueIndex"`
	InvoiceID     string         `gorm:"column:invoice_id;index"`
	GiftID        string         `gorm:"column:gift_id"`
	RecipientID   int64          `gorm:"column:recipient_id"`
	Price         string         `gorm:"column:price"`
	Raw           datatypes.JSON `gorm:"column:raw_json;type:TEXT"`
	PurchasedAt   int64          `gorm:"column:purchased_at;index"`
	CreatedAtUnix int64          `gorm:"column:created_at"`

	CreatedAt time.Time `gorm:"-"`
}

func (GiftTransactionModel) TableName() string { return "gift_transactions" }
