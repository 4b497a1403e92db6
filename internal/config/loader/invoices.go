package loader

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"giftbuyer/internal/config"
	"giftbuyer/internal/gift"

	"github.com/google/uuid"
)

// invoiceNamespace scopes content-derived invoice ids.
var invoiceNamespace = uuid.MustParse("6f1c1f7e-3b0c-4d61-9a55-7c1e2f0b9a11")

// BuildInvoices turns configured entries into ledger invoices. Entries without
// a recipient fall back to fallbackUserID; entries without an id get a stable
// id derived from their content, so reloading an unchanged file keeps
// progress.
func BuildInvoices(specs []config.InvoiceSpec, fallbackUserID int64, now time.Time) ([]gift.Invoice, error) {
	out := make([]gift.Invoice, 0, len(specs))
	ids := make(map[string]int, len(specs))
	occurrences := make(map[string]int, len(specs))
	for i, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("invoice[%d]: %w", i, err)
		}
		kind, err := gift.ParseRecipientKind(spec.RecipientType)
		if err != nil {
			return nil, fmt.Errorf("invoice[%d]: %w", i, err)
		}
		recipient := spec.RecipientID
		if recipient == 0 {
			recipient = fallbackUserID
		}
		if recipient == 0 {
			return nil, fmt.Errorf("invoice[%d]: recipient_id missing and no fallback_user_id configured", i)
		}
		minPrice, _ := config.ParsePrice(spec.MinPrice)
		maxPrice, _ := config.ParsePrice(spec.MaxPrice)

		id := strings.TrimSpace(spec.ID)
		if id == "" {
			key := contentKey(spec, recipient, kind)
			id = uuid.NewSHA1(invoiceNamespace, []byte(key+"#"+strconv.Itoa(occurrences[key]))).String()
			occurrences[key]++
		}
		if prev, dup := ids[id]; dup {
			return nil, fmt.Errorf("invoice[%d]: duplicate id %q (also invoice[%d])", i, id, prev)
		}
		ids[id] = i

		inv := gift.Invoice{
			ID:        id,
			Recipient: gift.Recipient{ID: recipient, Kind: kind},
			MinPrice:  minPrice,
			MaxPrice:  maxPrice,
			Amount:    spec.Amount,
			Created:   now.UTC(),
		}
		if spec.MaxSupply > 0 {
			ceiling := spec.MaxSupply
			inv.MaxSupply = &ceiling
		}
		out = append(out, inv)
	}
	return out, nil
}

func contentKey(spec config.InvoiceSpec, recipient int64, kind gift.RecipientKind) string {
	return strings.Join([]string{
		strconv.FormatInt(recipient, 10),
		string(kind),
		normalizePrice(spec.MinPrice),
		normalizePrice(spec.MaxPrice),
		strconv.Itoa(spec.Amount),
		strconv.FormatInt(spec.MaxSupply, 10),
	}, "|")
}

func normalizePrice(raw string) string {
	p, err := config.ParsePrice(raw)
	if err != nil || p == nil {
		return ""
	}
	return p.String()
}

// Static serves a fixed invoice list, used when invoices live inline in the
// main config file.
type Static struct {
	invoices []gift.Invoice
}

func NewStatic(specs []config.InvoiceSpec, fallbackUserID int64) (*Static, error) {
	invoices, err := BuildInvoices(specs, fallbackUserID, time.Now())
	if err != nil {
		return nil, err
	}
	return &Static{invoices: invoices}, nil
}

// Current always reports version 1; the list never changes.
func (s *Static) Current() (int64, []gift.Invoice) {
	return 1, cloneInvoices(s.invoices)
}

func cloneInvoices(in []gift.Invoice) []gift.Invoice {
	out := make([]gift.Invoice, len(in))
	for i, inv := range in {
		out[i] = inv.Clone()
	}
	return out
}
