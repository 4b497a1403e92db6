package gift

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limited(id string, price, total, current int64) Gift {
	return Gift{
		ID:            id,
		Price:         decimal.NewFromInt(price),
		Limited:       true,
		TotalSupply:   &total,
		CurrentSupply: &current,
	}
}

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestInvoiceAccepts(t *testing.T) {
	ceiling := int64(1000)
	inv := Invoice{ID: "inv", MinPrice: dec(50), MaxPrice: dec(100), Amount: 2, MaxSupply: &ceiling}

	assert.True(t, inv.Accepts(limited("1", 80, 500, 5)))
	assert.True(t, inv.Accepts(limited("edge-low", 50, 1000, 1)), "bounds are inclusive")
	assert.True(t, inv.Accepts(limited("edge-high", 100, 10, 1)))
	assert.False(t, inv.Accepts(limited("2", 95, 2000, 3)), "total supply above ceiling")
	assert.False(t, inv.Accepts(limited("cheap", 49, 10, 1)))
	assert.False(t, inv.Accepts(limited("pricey", 101, 10, 1)))
	assert.False(t, inv.Accepts(limited("sold-out", 80, 10, 0)))
	assert.False(t, inv.Accepts(Gift{ID: "unlimited", Price: decimal.NewFromInt(80)}))
}

func TestInvoiceAcceptsUnboundedWindow(t *testing.T) {
	inv := Invoice{ID: "open", Amount: 1}
	assert.True(t, inv.Accepts(limited("a", 1, 1_000_000, 1)))
	assert.True(t, inv.Accepts(limited("b", 100_000, 1, 1)))
}

func TestParseRecipientKind(t *testing.T) {
	kind, err := ParseRecipientKind(" Channel ")
	require.NoError(t, err)
	assert.Equal(t, RecipientChannel, kind)

	kind, err = ParseRecipientKind("")
	require.NoError(t, err)
	assert.Equal(t, RecipientUser, kind)

	_, err = ParseRecipientKind("robot")
	assert.Error(t, err)
}

func TestInvoiceCloneIsDeep(t *testing.T) {
	ceiling := int64(10)
	inv := Invoice{ID: "x", MinPrice: dec(1), MaxSupply: &ceiling}
	cp := inv.Clone()
	*cp.MaxSupply = 99
	*cp.MinPrice = decimal.NewFromInt(7)
	assert.Equal(t, int64(10), *inv.MaxSupply)
	assert.True(t, inv.MinPrice.Equal(decimal.NewFromInt(1)))
}
