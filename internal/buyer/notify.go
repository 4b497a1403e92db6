package buyer

import (
	"context"
	"fmt"
	"time"

	"giftbuyer/internal/gateway/notifier"
	"giftbuyer/internal/gift"
	"giftbuyer/internal/logger"
)

const (
	maxListedGifts = 20
	notifyTimeout  = 30 * time.Second
)

// announce pushes operator notifications for a finished tick. Sending is
// asynchronous so a slow chat API never delays the next tick. Messages
// outlive cancellation of ctx, bounded by notifyTimeout, so a purchase made
// right before shutdown is still reported.
func (e *Engine) announce(ctx context.Context, r Report, retired []gift.Invoice, firstFetch bool) {
	if e.notifier == nil {
		return
	}
	var msgs []notifier.StructuredMessage
	if len(r.NewIDs) > 0 && !firstFetch {
		msgs = append(msgs, notifier.StructuredMessage{
			Icon:      "🆕",
			Title:     fmt.Sprintf("%d new gifts in catalog", len(r.NewIDs)),
			Sections:  []notifier.MessageSection{{Title: "Gift ids", Lines: limitLines(r.NewIDs)}},
			Timestamp: r.Timestamp,
		})
	}
	if e.notifyPurchases && r.Purchased > 0 {
		msgs = append(msgs, notifier.StructuredMessage{
			Icon:  "🎁",
			Title: fmt.Sprintf("Bought %d gifts", r.Purchased),
			Sections: []notifier.MessageSection{{
				Title: "Tick",
				Lines: []string{
					fmt.Sprintf("attempts: %d", r.Attempts),
					fmt.Sprintf("declined: %d", r.Declined),
					fmt.Sprintf("failed: %d", r.Failed),
					fmt.Sprintf("open invoices: %d", r.OpenInvoices),
				},
			}},
			Timestamp: r.Timestamp,
		})
	}
	for _, inv := range retired {
		msgs = append(msgs, notifier.StructuredMessage{
			Icon:  "✅",
			Title: "Invoice fulfilled",
			Sections: []notifier.MessageSection{{
				Lines: []string{
					"id: " + inv.ID,
					fmt.Sprintf("recipient: %d (%s)", inv.Recipient.ID, inv.Recipient.Kind),
				},
			}},
			Timestamp: r.Timestamp,
		})
	}
	if len(msgs) == 0 {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	go func() {
		defer cancel()
		defer func() {
			if p := recover(); p != nil {
				logger.Errorf("GiftBuyer: notifier panic: %v", p)
			}
		}()
		for _, msg := range msgs {
			if err := e.notifier.SendTextContext(sendCtx, msg.RenderMarkdown()); err != nil {
				logger.Warnf("GiftBuyer: notification %q failed: %v", msg.Title, err)
			}
		}
	}()
}

func limitLines(ids []string) []string {
	if len(ids) <= maxListedGifts {
		return ids
	}
	out := append([]string(nil), ids[:maxListedGifts]...)
	return append(out, fmt.Sprintf("... and %d more", len(ids)-maxListedGifts))
}
