package livehttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"giftbuyer/internal/buyer"
	"giftbuyer/internal/gift"
	"giftbuyer/internal/store/model"
	"giftbuyer/internal/store/ticklog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatus struct {
	invoices []gift.Invoice
	bought   map[string]int
	known    []string
	last     *buyer.Report
}

func (f *fakeStatus) OpenInvoices() []gift.Invoice { return f.invoices }
func (f *fakeStatus) Purchased(id string) int      { return f.bought[id] }
func (f *fakeStatus) KnownGiftIDs() []string       { return f.known }
func (f *fakeStatus) Capacity() int                { return 3 }

func (f *fakeStatus) LastReport() (buyer.Report, bool) {
	if f.last == nil {
		return buyer.Report{}, false
	}
	return *f.last, true
}

type fakeTransactions struct {
	lastInvoice string
	lastLimit   int
}

func (f *fakeTransactions) ListRecent(_ context.Context, limit int) ([]model.GiftTransactionModel, error) {
	f.lastLimit = limit
	return []model.GiftTransactionModel{{TxID: "t1"}, {TxID: "t2"}}, nil
}

func (f *fakeTransactions) ListByInvoice(_ context.Context, invoiceID string, limit int) ([]model.GiftTransactionModel, error) {
	f.lastInvoice, f.lastLimit = invoiceID, limit
	return []model.GiftTransactionModel{{TxID: "t1", InvoiceID: invoiceID}}, nil
}

func (f *fakeTransactions) CountByInvoice(context.Context) (map[string]int, error) {
	return map[string]int{"inv-1": 3, "gone": 7}, nil
}

type fakeTicks struct {
	query ticklog.Query
}

func (f *fakeTicks) List(_ context.Context, q ticklog.Query) ([]ticklog.Entry, error) {
	f.query = q
	return nil, nil
}

func newTestServer(t *testing.T, cfg ServerConfig) http.Handler {
	t.Helper()
	srv, err := NewServer(cfg)
	require.NoError(t, err)
	return srv.Handler()
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestNewServerRequiresStatus(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestHealthAndStatusEndpoints(t *testing.T) {
	status := &fakeStatus{
		invoices: []gift.Invoice{{ID: "inv-1", Recipient: gift.Recipient{ID: 42, Kind: gift.RecipientUser}, Amount: 2}},
		bought:   map[string]int{"inv-1": 1},
		known:    []string{"a", "b"},
	}
	h := newTestServer(t, ServerConfig{Status: status})

	rec, body := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, body = get(t, h, "/api/live/invoices")
	require.Equal(t, http.StatusOK, rec.Code)
	invoices := body["invoices"].([]any)
	require.Len(t, invoices, 1)
	first := invoices[0].(map[string]any)
	assert.Equal(t, "inv-1", first["id"])
	assert.EqualValues(t, 2, first["amount"])
	assert.EqualValues(t, 1, first["purchased"])
	assert.NotContains(t, first, "stored")
	assert.EqualValues(t, 3, body["capacity"])

	rec, body = get(t, h, "/api/live/gifts/known")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])

	rec, _ = get(t, h, "/api/live/reports/last")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	status.last = &buyer.Report{Tick: 9, Timestamp: time.Now(), NewIDs: []string{"b"}}
	rec, body = get(t, h, "/api/live/reports/last")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 9, body["tick"])
}

func TestOptionalStoresAnswerUnavailable(t *testing.T) {
	h := newTestServer(t, ServerConfig{Status: &fakeStatus{}})
	for _, path := range []string{"/api/live/transactions", "/api/live/reports", "/api/live/logs"} {
		rec, _ := get(t, h, path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestTransactionsEndpoint(t *testing.T) {
	txs := &fakeTransactions{}
	h := newTestServer(t, ServerConfig{Status: &fakeStatus{}, Transactions: txs})

	rec, body := get(t, h, "/api/live/transactions?limit=5000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["transactions"], 2)
	assert.Equal(t, maxListLimit, txs.lastLimit)

	rec, body = get(t, h, "/api/live/transactions?invoice_id=inv-1&limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["transactions"], 1)
	assert.Equal(t, "inv-1", txs.lastInvoice)
	assert.Equal(t, 10, txs.lastLimit)
}

func TestReportsEndpointPassesFilters(t *testing.T) {
	ticks := &fakeTicks{}
	h := newTestServer(t, ServerConfig{Status: &fakeStatus{}, Ticks: ticks})

	rec, body := get(t, h, "/api/live/reports?limit=20&offset=5&errors=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["reports"])
	assert.Equal(t, ticklog.Query{Limit: 20, Offset: 5, ErrorsOnly: true}, ticks.query)
}

func TestLogsEndpointTailsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644))
	h := newTestServer(t, ServerConfig{Status: &fakeStatus{}, LogPaths: map[string]string{"app": path}})

	rec, body := get(t, h, "/api/live/logs?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "app", body["name"])
	assert.Equal(t, []any{"two", "three"}, body["lines"])
}

func TestInvoicesIncludeStoredPurchaseCounts(t *testing.T) {
	status := &fakeStatus{
		invoices: []gift.Invoice{
			{ID: "inv-1", Recipient: gift.Recipient{ID: 42, Kind: gift.RecipientUser}, Amount: 5},
			{ID: "inv-2", Recipient: gift.Recipient{ID: 43, Kind: gift.RecipientUser}, Amount: 1},
		},
		bought: map[string]int{"inv-1": 1},
	}
	h := newTestServer(t, ServerConfig{Status: status, Transactions: &fakeTransactions{}})

	rec, body := get(t, h, "/api/live/invoices")
	require.Equal(t, http.StatusOK, rec.Code)
	invoices := body["invoices"].([]any)
	require.Len(t, invoices, 2)
	first := invoices[0].(map[string]any)
	assert.EqualValues(t, 1, first["purchased"])
	assert.EqualValues(t, 3, first["stored"])
	second := invoices[1].(map[string]any)
	assert.EqualValues(t, 0, second["stored"])
}
