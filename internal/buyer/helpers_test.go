package buyer

import (
	"context"
	"sync"

	"giftbuyer/internal/gift"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) ListAvailable(ctx context.Context) ([]gift.Gift, error) {
	args := m.Called(ctx)
	gifts, _ := args.Get(0).([]gift.Gift)
	return gifts, args.Error(1)
}

func (m *mockSource) Purchase(ctx context.Context, g gift.Gift, recipientID int64, kind gift.RecipientKind) (*gift.Transaction, error) {
	args := m.Called(ctx, g.ID, recipientID, kind)
	if fn, ok := args.Get(0).(func(context.Context, string, int64, gift.RecipientKind) *gift.Transaction); ok {
		return fn(ctx, g.ID, recipientID, kind), args.Error(1)
	}
	tx, _ := args.Get(0).(*gift.Transaction)
	return tx, args.Error(1)
}

type staticInvoices struct {
	version  int64
	invoices []gift.Invoice
}

func (s *staticInvoices) Current() (int64, []gift.Invoice) {
	return s.version, s.invoices
}

type memoryRecorder struct {
	mu  sync.Mutex
	txs map[string][]gift.Transaction
}

func (r *memoryRecorder) RecordTransaction(_ context.Context, invoiceID string, tx gift.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.txs == nil {
		r.txs = make(map[string][]gift.Transaction)
	}
	r.txs[invoiceID] = append(r.txs[invoiceID], tx)
	return nil
}

func limited(id string, price int64, total, remaining int64) gift.Gift {
	return gift.Gift{
		ID:            id,
		Price:         decimal.NewFromInt(price),
		Limited:       true,
		TotalSupply:   &total,
		CurrentSupply: &remaining,
	}
}

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func count(v int64) *int64 { return &v }

func invoice(id string, amount int) gift.Invoice {
	return gift.Invoice{
		ID:        id,
		Recipient: gift.Recipient{ID: 42, Kind: gift.RecipientUser},
		Amount:    amount,
	}
}

func bought(giftID string) *gift.Transaction {
	return &gift.Transaction{ID: "tx-" + giftID, GiftID: giftID, RecipientID: 42}
}

type chatNotifier struct {
	mu        sync.Mutex
	msgs      []string
	deadlines []bool
}

func (n *chatNotifier) SendTextContext(ctx context.Context, text string) error {
	_, bounded := ctx.Deadline()
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, text)
	n.deadlines = append(n.deadlines, bounded && ctx.Err() == nil)
	return nil
}

func (n *chatNotifier) bounded() []bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]bool(nil), n.deadlines...)
}

func (n *chatNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}
