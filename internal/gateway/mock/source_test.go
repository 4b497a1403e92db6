package mock

import (
	"context"
	"testing"

	"giftbuyer/internal/gift"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseDecrementsSupply(t *testing.T) {
	src := New([]Item{
		{ID: "a", Price: decimal.NewFromInt(50), Total: 10, Remaining: 1},
		{ID: "b", Price: decimal.NewFromInt(15)},
	})
	ctx := context.Background()

	gifts, err := src.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, gifts, 2)
	assert.True(t, gifts[0].Purchasable())
	assert.False(t, gifts[1].Limited)

	tx, err := src.Purchase(ctx, gifts[0], 7, gift.RecipientUser)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, int64(7), tx.RecipientID)

	_, err = src.Purchase(ctx, gifts[0], 7, gift.RecipientUser)
	assert.ErrorIs(t, err, gift.ErrDeclined)

	gifts, err = src.ListAvailable(ctx)
	require.NoError(t, err)
	assert.False(t, gifts[0].Purchasable())
}

func TestPurchaseUnknownGiftDeclines(t *testing.T) {
	src := New(nil)
	_, err := src.Purchase(context.Background(), gift.Gift{ID: "x"}, 1, gift.RecipientUser)
	assert.ErrorIs(t, err, gift.ErrDeclined)
}

func TestCancelledContext(t *testing.T) {
	src := New([]Item{{ID: "a", Total: 1, Remaining: 1}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.ListAvailable(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSetCatalogSimulatesNewDrop(t *testing.T) {
	src := New([]Item{{ID: "a", Price: decimal.NewFromInt(10), Total: 5, Remaining: 1}})
	ctx := context.Background()

	src.SetCatalog([]Item{
		{ID: "a", Price: decimal.NewFromInt(10), Total: 5, Remaining: 1},
		{ID: "b", Price: decimal.NewFromInt(90), Total: 100, Remaining: 100},
	})
	gifts, err := src.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, gifts, 2)
	assert.Equal(t, "b", gifts[1].ID)
	assert.True(t, gifts[1].Purchasable())
}
