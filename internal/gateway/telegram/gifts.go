package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"giftbuyer/internal/gift"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// ListAvailable maps getAvailableGifts onto catalog entries. Gifts without a
// total_count are unlimited.
func (c *Client) ListAvailable(ctx context.Context) ([]gift.Gift, error) {
	res, err := c.call(ctx, "getAvailableGifts", nil)
	if err != nil {
		return nil, err
	}
	items := res.Get("gifts").Array()
	out := make([]gift.Gift, 0, len(items))
	for _, item := range items {
		g, ok := parseGift(item)
		if !ok {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func parseGift(item gjson.Result) (gift.Gift, bool) {
	id := strings.TrimSpace(item.Get("id").String())
	if id == "" {
		return gift.Gift{}, false
	}
	g := gift.Gift{
		ID:    id,
		Price: decimal.NewFromInt(item.Get("star_count").Int()),
	}
	if total := item.Get("total_count"); total.Exists() && total.Int() > 0 {
		t := total.Int()
		r := item.Get("remaining_count").Int()
		g.Limited = true
		g.TotalSupply = &t
		g.CurrentSupply = &r
	}
	return g, true
}

// Purchase sends one gift. Requests the API refuses come back wrapped in
// gift.ErrDeclined; throttling and transport problems are plain errors.
func (c *Client) Purchase(ctx context.Context, g gift.Gift, recipientID int64, kind gift.RecipientKind) (*gift.Transaction, error) {
	if err := c.purchases.Wait(ctx); err != nil {
		return nil, err
	}
	params := map[string]any{
		"gift_id":         g.ID,
		"text":            strings.ReplaceAll(c.giftText, "{recipient}", strconv.FormatInt(recipientID, 10)),
		"pay_for_upgrade": c.payForUpgrade,
	}
	switch kind {
	case gift.RecipientChannel:
		params["chat_id"] = recipientID
	default:
		params["user_id"] = recipientID
	}
	res, err := c.call(ctx, "sendGift", params)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Declined() {
			return nil, fmt.Errorf("%w: %s", gift.ErrDeclined, apiErr.Description)
		}
		return nil, err
	}
	if !res.Bool() {
		return nil, nil
	}
	return &gift.Transaction{
		ID:          uuid.NewString(),
		GiftID:      g.ID,
		RecipientID: recipientID,
		Price:       g.Price,
		Timestamp:   c.nowFn().UTC(),
		Raw:         res.Raw,
	}, nil
}
