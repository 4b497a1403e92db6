package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"giftbuyer/internal/buyer"
	"giftbuyer/internal/config"
	"giftbuyer/internal/config/loader"
	"giftbuyer/internal/gateway/mock"
	"giftbuyer/internal/gateway/notifier"
	"giftbuyer/internal/gateway/telegram"
	"giftbuyer/internal/ledger"
	"giftbuyer/internal/limiter"
	"giftbuyer/internal/logger"
	"giftbuyer/internal/pkg/circuit"
	"giftbuyer/internal/store/sqlite"
	"giftbuyer/internal/store/ticklog"
	"giftbuyer/internal/tracker"
	livehttp "giftbuyer/internal/transport/http/live"
)

// GiftSource is what the builder needs from a source backend.
type GiftSource interface {
	buyer.Source
	buyer.Session
}

type AppBuilder struct {
	cfg *config.Config

	sourceFn   func(config.SourceConfig) (GiftSource, error)
	invoicesFn func(config.BuyerConfig) (buyer.InvoiceSource, string, error)
	liveHTTPFn func(config.AppConfig, livehttp.StatusProvider, livehttp.TransactionReader, livehttp.TickReader) (*livehttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		sourceFn:   buildSource,
		invoicesFn: buildInvoiceSource,
		liveHTTPFn: buildLiveHTTPServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// WithSource replaces the configured source backend.
func WithSource(fn func(config.SourceConfig) (GiftSource, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.sourceFn = fn
		}
	}
}

// WithLiveHTTP replaces the admin server constructor. Returning a nil server
// disables the API.
func WithLiveHTTP(fn func(config.AppConfig, livehttp.StatusProvider, livehttp.TransactionReader, livehttp.TickReader) (*livehttp.Server, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.liveHTTPFn = fn
		}
	}
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)
	app := &App{cfg: cfg}
	fail := func(err error) (*App, error) {
		_ = app.Close()
		return nil, err
	}

	source, err := b.sourceFn(cfg.Source)
	if err != nil {
		return fail(err)
	}
	app.session = source

	invoices, invoicesFrom, err := b.invoicesFn(cfg.Buyer)
	if err != nil {
		return fail(err)
	}

	var (
		recorder buyer.TransactionRecorder
		txReader livehttp.TransactionReader
		sinks    []buyer.ReportSink
		ticks    livehttp.TickReader
	)
	if path := strings.TrimSpace(cfg.Store.TransactionsPath); path != "" {
		st, err := sqlite.NewSqliteStore(path)
		if err != nil {
			return fail(fmt.Errorf("open transaction store: %w", err))
		}
		app.closers = append(app.closers, st.Close)
		recorder = sqlite.NewRecorder(st)
		txReader = st.Transactions()
		logger.Infof("✓ Transaction store: %s", path)
	}
	if path := strings.TrimSpace(cfg.Store.TickLogPath); path != "" {
		tl, err := ticklog.New(path, cfg.Store.PersistAllTicks)
		if err != nil {
			return fail(fmt.Errorf("open tick log: %w", err))
		}
		app.closers = append(app.closers, tl.Close)
		sinks = append(sinks, tl)
		ticks = tl
		logger.Infof("✓ Tick log: %s (persist_all=%v)", path, cfg.Store.PersistAllTicks)
	}

	var textNotifier notifier.TextNotifier
	if tg := newTelegram(cfg.Notify); tg != nil {
		textNotifier = tg
	}

	var breaker *circuit.CircuitBreaker
	if cfg.Buyer.BreakerThreshold > 0 {
		breaker = circuit.NewCircuitBreaker("gift-fetch", cfg.Buyer.BreakerThreshold,
			time.Duration(cfg.Buyer.BreakerCooldownSeconds)*time.Second)
		breaker.SetStateChangeHandler(func(name string, from, to circuit.State) {
			logger.Warnf("circuit %s: %s -> %s", name, from, to)
		})
	}

	engine, err := buyer.NewEngine(buyer.EngineParams{
		Source:          source,
		Invoices:        invoices,
		Ledger:          ledger.New(),
		Known:           tracker.New(),
		Limiter:         limiter.New(cfg.Buyer.MaxConcurrentInvoices),
		Breaker:         breaker,
		Recorder:        recorder,
		Sinks:           sinks,
		Notifier:        textNotifier,
		EmptyDelay:      time.Duration(cfg.Buyer.EmptyDelayMS) * time.Millisecond,
		ErrorBackoff:    time.Duration(cfg.Buyer.ErrorBackoffMS) * time.Millisecond,
		NotifyPurchases: cfg.Buyer.NotifyPurchases,
	})
	if err != nil {
		return fail(err)
	}
	app.engine = engine
	if l, ok := invoices.(*loader.InvoiceLoader); ok {
		wakeOnReload(l, engine)
	}

	server, err := b.liveHTTPFn(cfg.App, engine, txReader, ticks)
	if err != nil {
		return fail(err)
	}
	app.liveHTTP = server

	_, snapshot := invoices.Current()
	app.Summary = &StartupSummary{
		Env:          cfg.App.Env,
		SourceMode:   cfg.Source.Mode,
		Capacity:     engine.Capacity(),
		InvoicesFrom: invoicesFrom,
		Invoices:     snapshot,
		HTTPAddr:     server.Addr(),
		Notify:       textNotifier != nil,
	}
	return app, nil
}

func buildSource(cfg config.SourceConfig) (GiftSource, error) {
	switch cfg.Mode {
	case config.SourceModeMock:
		items := make([]mock.Item, 0, len(cfg.MockGifts))
		for _, g := range cfg.MockGifts {
			price, err := config.ParsePrice(g.Price)
			if err != nil {
				return nil, fmt.Errorf("mock gift %s: %w", g.ID, err)
			}
			item := mock.Item{ID: g.ID, Total: g.Total, Remaining: g.Remaining}
			if price != nil {
				item.Price = *price
			}
			items = append(items, item)
		}
		logger.Warnf("Gift source: mock catalog with %d gifts, no real purchases are made", len(items))
		return mock.New(items), nil
	case config.SourceModeTelegram:
		client, err := telegram.NewClient(telegram.Config{
			APIBase:       cfg.APIURL,
			BotToken:      cfg.BotToken,
			Timeout:       time.Duration(cfg.TimeoutSeconds) * time.Second,
			PurchaseRate:  cfg.PurchaseRatePerSec,
			PayForUpgrade: cfg.PayForUpgrade,
			GiftText:      cfg.GiftText,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init telegram source: %w", err)
		}
		logger.Infof("Gift source: telegram bot api %s", cfg.APIURL)
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported source mode %q", cfg.Mode)
	}
}

func buildInvoiceSource(cfg config.BuyerConfig) (buyer.InvoiceSource, string, error) {
	if path := strings.TrimSpace(cfg.InvoicesPath); path != "" {
		l, err := loader.NewInvoiceLoader(path, cfg.FallbackUserID)
		if err != nil {
			return nil, "", err
		}
		return l, path + " (watched)", nil
	}
	s, err := loader.NewStatic(cfg.Invoices, cfg.FallbackUserID)
	if err != nil {
		return nil, "", fmt.Errorf("buyer.invoices: %w", err)
	}
	return s, "config (inline)", nil
}

// wakeOnReload starts the next tick as soon as a newer invoices file is
// loaded instead of waiting out the current delay.
func wakeOnReload(l *loader.InvoiceLoader, engine *buyer.Engine) {
	initial, _ := l.Current()
	l.Subscribe(func(snap loader.Snapshot) {
		if snap.Version <= initial {
			return
		}
		logger.Infof("Invoices: version %d loaded with %d invoices, waking buyer", snap.Version, len(snap.Invoices))
		engine.Wake()
	})
}

func buildLiveHTTPServer(cfg config.AppConfig, status livehttp.StatusProvider, txs livehttp.TransactionReader, ticks livehttp.TickReader) (*livehttp.Server, error) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" || addr == "off" {
		return nil, nil
	}
	logPaths := map[string]string{}
	if path := strings.TrimSpace(cfg.LogPath); path != "" {
		logPaths["app"] = path
	}
	server, err := livehttp.NewServer(livehttp.ServerConfig{
		Addr:         addr,
		Status:       status,
		Transactions: txs,
		Ticks:        ticks,
		LogPaths:     logPaths,
	})
	if err != nil {
		return nil, fmt.Errorf("init live http failed: %w", err)
	}
	logger.Infof("✓ Live HTTP listening on %s", server.Addr())
	return server, nil
}

func newTelegram(cfg config.NotifyConfig) *notifier.Telegram {
	if !cfg.Telegram.Enabled {
		return nil
	}
	return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}
