// Package ledger keeps the open invoices and their purchase progress.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"giftbuyer/internal/gift"
)

// ErrInvariant marks a bookkeeping violation. Callers must treat it as fatal.
var ErrInvariant = errors.New("ledger invariant violated")

// Outcome is what one invoice's processing unit achieved during a tick.
type Outcome struct {
	InvoiceID string
	// Remaining is the invoice's remaining quantity when processing started.
	Remaining int
	Purchased int
}

// SyncResult describes how a configuration snapshot changed the ledger.
type SyncResult struct {
	Added   []string
	Removed []string
	Updated []string
}

func (r SyncResult) Changed() bool {
	return len(r.Added)+len(r.Removed)+len(r.Updated) > 0
}

// Ledger is written by the allocation loop only; the mutex exists for the
// admin API readers.
type Ledger struct {
	mu        sync.RWMutex
	open      map[string]*gift.Invoice
	order     []string
	purchased map[string]int
	version   int64
}

func New() *Ledger {
	return &Ledger{
		open:      make(map[string]*gift.Invoice),
		purchased: make(map[string]int),
	}
}

// Sync replaces the ledger's definitions with a configuration snapshot.
// Amount in the snapshot is the total quantity wanted; progress already made
// for an id is subtracted, so a reload never re-buys what was bought. A
// snapshot with the version already applied is ignored.
func (l *Ledger) Sync(version int64, invoices []gift.Invoice) SyncResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	var res SyncResult
	if version != 0 && version == l.version {
		return res
	}
	l.version = version

	next := make(map[string]*gift.Invoice, len(invoices))
	order := make([]string, 0, len(invoices))
	for _, def := range invoices {
		if def.ID == "" {
			continue
		}
		if _, dup := next[def.ID]; dup {
			continue
		}
		inv := def.Clone()
		inv.Amount = def.Amount - l.purchased[def.ID]
		if inv.Amount <= 0 {
			continue
		}
		next[inv.ID] = &inv
		order = append(order, inv.ID)
		prev, ok := l.open[inv.ID]
		switch {
		case !ok:
			res.Added = append(res.Added, inv.ID)
		case !sameDefinition(*prev, inv):
			res.Updated = append(res.Updated, inv.ID)
		}
		if ok && !prev.Created.IsZero() {
			inv.Created = prev.Created
		}
	}
	for _, id := range l.order {
		if _, ok := next[id]; !ok {
			res.Removed = append(res.Removed, id)
		}
	}
	l.open = next
	l.order = order
	return res
}

func sameDefinition(a, b gift.Invoice) bool {
	return a.Amount == b.Amount &&
		a.Recipient == b.Recipient &&
		equalDecimal(a.MinPrice, b.MinPrice) &&
		equalDecimal(a.MaxPrice, b.MaxPrice) &&
		equalInt(a.MaxSupply, b.MaxSupply)
}

// Open returns copies of the invoices that still need gifts, in configuration order.
func (l *Ledger) Open() []gift.Invoice {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]gift.Invoice, 0, len(l.order))
	for _, id := range l.order {
		inv := l.open[id]
		if inv == nil || inv.Amount <= 0 {
			continue
		}
		out = append(out, inv.Clone())
	}
	return out
}

// Len is the number of open invoices.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.open)
}

// Purchased is the number of gifts bought for an invoice id so far.
func (l *Ledger) Purchased(id string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.purchased[id]
}

// Apply decrements remaining quantities by confirmed purchases and retires
// every invoice that reached zero. It returns the retired invoices.
func (l *Ledger) Apply(outcomes []Outcome) ([]gift.Invoice, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, o := range outcomes {
		if o.Purchased < 0 {
			return nil, fmt.Errorf("%w: invoice %s purchased %d", ErrInvariant, o.InvoiceID, o.Purchased)
		}
		if o.Purchased > o.Remaining {
			return nil, fmt.Errorf("%w: invoice %s purchased %d with %d remaining", ErrInvariant, o.InvoiceID, o.Purchased, o.Remaining)
		}
		if o.Purchased == 0 {
			continue
		}
		l.purchased[o.InvoiceID] += o.Purchased
		inv, ok := l.open[o.InvoiceID]
		if !ok {
			continue
		}
		if inv.Amount-o.Purchased < 0 {
			return nil, fmt.Errorf("%w: invoice %s would go to %d", ErrInvariant, o.InvoiceID, inv.Amount-o.Purchased)
		}
		inv.Amount -= o.Purchased
	}

	var retired []gift.Invoice
	kept := l.order[:0]
	for _, id := range l.order {
		inv := l.open[id]
		if inv.Amount <= 0 {
			retired = append(retired, inv.Clone())
			delete(l.open, id)
			continue
		}
		kept = append(kept, id)
	}
	l.order = kept
	return retired, nil
}
