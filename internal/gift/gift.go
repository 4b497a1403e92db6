package gift

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrDeclined is returned by executors that want to surface a refused purchase
// as an error value. The allocation loop treats it like an absent transaction.
var ErrDeclined = errors.New("purchase declined")

// Gift is a catalog entry as observed from the item source. Snapshots are
// read-only; the loop re-fetches instead of mutating them.
type Gift struct {
	ID            string          `json:"id"`
	Price         decimal.Decimal `json:"price"`
	Limited       bool            `json:"limited"`
	TotalSupply   *int64          `json:"total_supply,omitempty"`
	CurrentSupply *int64          `json:"current_supply,omitempty"`
}

// Purchasable reports whether the gift is limited and still has supply left.
func (g Gift) Purchasable() bool {
	return g.Limited && g.CurrentSupply != nil && *g.CurrentSupply > 0
}

func (g Gift) String() string {
	supply := "unlimited"
	if g.Limited {
		supply = fmt.Sprintf("%s/%s", formatCount(g.CurrentSupply), formatCount(g.TotalSupply))
	}
	return fmt.Sprintf("gift(%s price=%s supply=%s)", g.ID, g.Price.String(), supply)
}

func formatCount(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

// RecipientKind selects how the purchase executor addresses the recipient.
type RecipientKind string

const (
	RecipientUser    RecipientKind = "user"
	RecipientChannel RecipientKind = "channel"
)

// ParseRecipientKind accepts the configured spelling of a recipient kind.
// An empty value means a user.
func ParseRecipientKind(raw string) (RecipientKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "user", "individual":
		return RecipientUser, nil
	case "channel", "chat", "group":
		return RecipientChannel, nil
	default:
		return "", fmt.Errorf("unknown recipient type %q", raw)
	}
}

// Recipient is opaque to the allocation loop and passed through to the executor.
type Recipient struct {
	ID   int64         `json:"id"`
	Kind RecipientKind `json:"kind"`
}

// Invoice is a standing demand for gifts. Amount is the remaining quantity.
type Invoice struct {
	ID        string           `json:"id"`
	Recipient Recipient        `json:"recipient"`
	MinPrice  *decimal.Decimal `json:"min_price,omitempty"`
	MaxPrice  *decimal.Decimal `json:"max_price,omitempty"`
	Amount    int              `json:"amount"`
	MaxSupply *int64           `json:"max_supply,omitempty"`
	Created   time.Time        `json:"created"`
}

// Accepts reports whether g is an eligible candidate for the invoice: it must
// be purchasable, priced inside the window (inclusive) and, when a ceiling is
// set, have a total supply at or below it.
func (inv Invoice) Accepts(g Gift) bool {
	if !g.Purchasable() {
		return false
	}
	if inv.MinPrice != nil && g.Price.LessThan(*inv.MinPrice) {
		return false
	}
	if inv.MaxPrice != nil && g.Price.GreaterThan(*inv.MaxPrice) {
		return false
	}
	if inv.MaxSupply != nil {
		if g.TotalSupply == nil || *g.TotalSupply > *inv.MaxSupply {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so snapshots never share pointers with the ledger.
func (inv Invoice) Clone() Invoice {
	out := inv
	if inv.MinPrice != nil {
		v := *inv.MinPrice
		out.MinPrice = &v
	}
	if inv.MaxPrice != nil {
		v := *inv.MaxPrice
		out.MaxPrice = &v
	}
	if inv.MaxSupply != nil {
		v := *inv.MaxSupply
		out.MaxSupply = &v
	}
	return out
}

// Transaction is the record of a confirmed purchase.
type Transaction struct {
	ID          string          `json:"id"`
	GiftID      string          `json:"gift_id"`
	RecipientID int64           `json:"recipient_id"`
	Price       decimal.Decimal `json:"price"`
	Timestamp   time.Time       `json:"ts"`
	// Raw keeps the executor's response body for auditing.
	Raw string `json:"raw,omitempty"`
}
