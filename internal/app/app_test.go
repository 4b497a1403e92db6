package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"giftbuyer/internal/config"
	livehttp "giftbuyer/internal/transport/http/live"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		App: config.AppConfig{Env: "test", LogLevel: "error"},
		Buyer: config.BuyerConfig{
			MaxConcurrentInvoices: 2,
			EmptyDelayMS:          5,
			ErrorBackoffMS:        5,
			BreakerThreshold:      3,
			Invoices: []config.InvoiceSpec{
				{ID: "inv-1", RecipientID: 42, MinPrice: "50", MaxPrice: "100", Amount: 2, MaxSupply: 1000},
				{ID: "inv-2", RecipientID: 43, Amount: 1, MinPrice: "500"},
			},
		},
		Source: config.SourceConfig{
			Mode: config.SourceModeMock,
			MockGifts: []config.MockGiftSpec{
				{ID: "id1", Price: "80", Total: 500, Remaining: 5},
				{ID: "id2", Price: "120", Total: 500, Remaining: 5},
				{ID: "id3", Price: "60", Total: 500, Remaining: 5},
				{ID: "id4", Price: "90", Total: 5000, Remaining: 5},
			},
		},
		Store: config.StoreConfig{
			TransactionsPath: filepath.Join(dir, "transactions.db"),
			TickLogPath:      filepath.Join(dir, "ticks.db"),
		},
	}
}

func noHTTP(config.AppConfig, livehttp.StatusProvider, livehttp.TransactionReader, livehttp.TickReader) (*livehttp.Server, error) {
	return nil, nil
}

func TestAppBuysFromMockCatalog(t *testing.T) {
	cfg := mockConfig(t)
	app, err := NewAppBuilder(cfg, WithLiveHTTP(noHTTP)).Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, app.Summary)
	assert.Equal(t, 2, app.Summary.Capacity)
	assert.Len(t, app.Summary.Invoices, 2)

	engine := app.Engine()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		return engine.Purchased("inv-1") == 2
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}

	open := engine.OpenInvoices()
	require.Len(t, open, 1)
	assert.Equal(t, "inv-2", open[0].ID)
	assert.ElementsMatch(t, []string{"id1", "id2", "id3", "id4"}, engine.KnownGiftIDs())
}

func TestInvoiceFileReloadWakesBuyer(t *testing.T) {
	cfg := mockConfig(t)
	path := filepath.Join(t.TempDir(), "invoices.yaml")
	require.NoError(t, os.WriteFile(path, []byte("invoices:\n  - {id: first, recipient_id: 1, amount: 1}\n"), 0o644))
	cfg.Buyer.Invoices = nil
	cfg.Buyer.InvoicesPath = path
	cfg.Buyer.EmptyDelayMS = int(time.Hour / time.Millisecond)
	cfg.Source.MockGifts = []config.MockGiftSpec{{ID: "unlimited", Price: "10"}}

	app, err := NewAppBuilder(cfg, WithLiveHTTP(noHTTP)).Build(context.Background())
	require.NoError(t, err)
	engine := app.Engine()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool {
		_, ok := engine.LastReport()
		return ok
	}, 5*time.Second, 10*time.Millisecond)
	open := engine.OpenInvoices()
	require.Len(t, open, 1)
	assert.Equal(t, "first", open[0].ID)

	require.NoError(t, os.WriteFile(path, []byte("invoices:\n  - {id: second, recipient_id: 1, amount: 1}\n"), 0o644))
	assert.Eventually(t, func() bool {
		open := engine.OpenInvoices()
		return len(open) == 1 && open[0].ID == "second"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestBuildRejectsBadInlineInvoices(t *testing.T) {
	cfg := mockConfig(t)
	cfg.Buyer.Invoices = []config.InvoiceSpec{{Amount: 1}}
	_, err := NewAppBuilder(cfg, WithLiveHTTP(noHTTP)).Build(context.Background())
	assert.Error(t, err)
}

func TestNewAppRequiresConfig(t *testing.T) {
	_, err := NewApp(nil)
	assert.Error(t, err)
}
