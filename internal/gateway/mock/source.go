// Package mock is an in-process gift catalog for dry runs.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"giftbuyer/internal/gift"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item seeds one catalog entry. Total 0 means unlimited.
type Item struct {
	ID        string
	Price     decimal.Decimal
	Total     int64
	Remaining int64
}

// Source echoes purchases against a local catalog and decrements supply.
type Source struct {
	mu    sync.Mutex
	items []Item
	nowFn func() time.Time
}

// New returns a mock source seeded with items.
func New(items []Item) *Source {
	s := &Source{nowFn: time.Now}
	s.SetCatalog(items)
	return s
}

func (s *Source) Init(context.Context) error { return nil }

// SetCatalog replaces the catalog, e.g. to simulate a new drop.
func (s *Source) SetCatalog(items []Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]Item(nil), items...)
}

func (s *Source) ListAvailable(ctx context.Context) ([]gift.Gift, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gift.Gift, 0, len(s.items))
	for _, it := range s.items {
		g := gift.Gift{ID: it.ID, Price: it.Price}
		if it.Total > 0 {
			total, remaining := it.Total, it.Remaining
			g.Limited = true
			g.TotalSupply = &total
			g.CurrentSupply = &remaining
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *Source) Purchase(ctx context.Context, g gift.Gift, recipientID int64, _ gift.RecipientKind) (*gift.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		it := &s.items[i]
		if it.ID != g.ID {
			continue
		}
		if it.Total > 0 {
			if it.Remaining <= 0 {
				return nil, fmt.Errorf("%w: %s sold out", gift.ErrDeclined, g.ID)
			}
			it.Remaining--
		}
		return &gift.Transaction{
			ID:          "mock-" + uuid.NewString(),
			GiftID:      g.ID,
			RecipientID: recipientID,
			Price:       it.Price,
			Timestamp:   s.nowFn().UTC(),
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown gift %s", gift.ErrDeclined, g.ID)
}
