package buyer

import (
	"sort"

	"giftbuyer/internal/gift"
)

// Plan is one invoice together with the gifts it will try, best first.
type Plan struct {
	Invoice    gift.Invoice
	Candidates []gift.Gift
}

// SelectCandidates returns at most inv.Amount distinct gifts that the invoice
// accepts, most expensive first. Equal prices keep catalog order.
func SelectCandidates(inv gift.Invoice, gifts []gift.Gift) []gift.Gift {
	if inv.Amount <= 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(gifts))
	out := make([]gift.Gift, 0, len(gifts))
	for _, g := range gifts {
		if _, dup := seen[g.ID]; dup {
			continue
		}
		if !inv.Accepts(g) {
			continue
		}
		seen[g.ID] = struct{}{}
		out = append(out, g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Price.GreaterThan(out[j].Price)
	})
	if len(out) > inv.Amount {
		out = out[:inv.Amount]
	}
	return out
}

// BuildPlans pairs every open invoice with its candidates. Invoices without
// candidates are left out.
func BuildPlans(invoices []gift.Invoice, gifts []gift.Gift) []Plan {
	plans := make([]Plan, 0, len(invoices))
	for _, inv := range invoices {
		candidates := SelectCandidates(inv, gifts)
		if len(candidates) == 0 {
			continue
		}
		plans = append(plans, Plan{Invoice: inv, Candidates: candidates})
	}
	return plans
}

func purchasable(gifts []gift.Gift) []gift.Gift {
	out := make([]gift.Gift, 0, len(gifts))
	for _, g := range gifts {
		if g.Purchasable() {
			out = append(out, g)
		}
	}
	return out
}

func giftIDs(gifts []gift.Gift) []string {
	out := make([]string, 0, len(gifts))
	for _, g := range gifts {
		out = append(out, g.ID)
	}
	return out
}
