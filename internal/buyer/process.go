package buyer

import (
	"context"
	"errors"
	"fmt"

	"giftbuyer/internal/gift"
	"giftbuyer/internal/ledger"
	"giftbuyer/internal/logger"

	"golang.org/x/sync/errgroup"
)

type purchase struct {
	gift gift.Gift
	tx   gift.Transaction
}

type planResult struct {
	admitted  bool
	outcome   ledger.Outcome
	attempts  int
	declined  int
	failed    int
	purchases []purchase
}

// process runs every plan under the limiter. Plans race each other; the
// attempts of one plan run in order.
func (e *Engine) process(ctx context.Context, plans []Plan) []planResult {
	results := make([]planResult, len(plans))
	var group errgroup.Group
	for i := range plans {
		i := i
		group.Go(func() error {
			// a plan that never gets a slot stays unadmitted
			_ = e.limiter.Do(ctx, func(ctx context.Context) error {
				results[i] = e.fulfil(ctx, plans[i])
				return nil
			})
			return nil
		})
	}
	_ = group.Wait()
	return results
}

// fulfil attempts the candidates one by one and stops as soon as the invoice
// has nothing left to buy.
func (e *Engine) fulfil(ctx context.Context, plan Plan) planResult {
	inv := plan.Invoice
	res := planResult{
		admitted: true,
		outcome:  ledger.Outcome{InvoiceID: inv.ID, Remaining: inv.Amount},
	}
	log := logger.With("invoice", inv.ID, "recipient", inv.Recipient.ID)
	log.Info("processing invoice", "remaining", inv.Amount, "candidates", len(plan.Candidates))

	remaining := inv.Amount
	for _, g := range plan.Candidates {
		if remaining <= 0 || ctx.Err() != nil {
			break
		}
		res.attempts++
		tx, err := e.attempt(ctx, g, inv.Recipient)
		switch {
		case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
			log.Info("purchase interrupted", "gift", g.ID)
			res.failed++
		case errors.Is(err, gift.ErrDeclined):
			log.Info("purchase declined", "gift", g.ID, "price", g.Price.String(), "reason", err.Error())
			res.declined++
		case err != nil:
			log.Error("purchase failed", "gift", g.ID, "price", g.Price.String(), "error", err)
			res.failed++
		case tx == nil:
			log.Info("purchase declined", "gift", g.ID, "price", g.Price.String())
			res.declined++
		default:
			remaining--
			res.purchases = append(res.purchases, purchase{gift: g, tx: *tx})
			log.Info("gift purchased", "gift", g.ID, "price", g.Price.String(), "tx", tx.ID, "remaining", remaining)
		}
	}
	res.outcome.Purchased = len(res.purchases)
	if res.outcome.Purchased > 0 {
		log.Info("invoice progress", "bought", res.outcome.Purchased, "remaining", remaining)
	}
	return res
}

// attempt isolates a single purchase: a panicking executor counts as a failed
// attempt and never reaches sibling attempts.
func (e *Engine) attempt(ctx context.Context, g gift.Gift, r gift.Recipient) (tx *gift.Transaction, err error) {
	defer func() {
		if p := recover(); p != nil {
			tx = nil
			err = fmt.Errorf("purchase panic: %v", p)
		}
	}()
	return e.source.Purchase(ctx, g, r.ID, r.Kind)
}
