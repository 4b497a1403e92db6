package buyer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"giftbuyer/internal/gateway/notifier"
	"giftbuyer/internal/gift"
	"giftbuyer/internal/ledger"
	"giftbuyer/internal/limiter"
	"giftbuyer/internal/logger"
	"giftbuyer/internal/pkg/circuit"
	"giftbuyer/internal/scheduler"
	"giftbuyer/internal/tracker"
)

const (
	DefaultEmptyDelay   = 100 * time.Millisecond
	DefaultErrorBackoff = time.Second
	sinkTimeout         = 5 * time.Second
)

type EngineParams struct {
	Source   Source
	Invoices InvoiceSource
	Ledger   *ledger.Ledger
	Known    *tracker.KnownGifts
	Limiter  *limiter.Limiter
	Breaker  *circuit.CircuitBreaker
	Recorder TransactionRecorder
	Sinks    []ReportSink
	Notifier notifier.TextNotifier

	// Non-positive delays fall back to DefaultEmptyDelay and
	// DefaultErrorBackoff; config validation rejects them earlier.
	EmptyDelay      time.Duration
	ErrorBackoff    time.Duration
	NotifyPurchases bool
}

// Engine is the allocation loop: one tick fetches the catalog, plans each
// open invoice, buys under the limiter and reconciles the ledger.
type Engine struct {
	source   Source
	invoices InvoiceSource
	ledger   *ledger.Ledger
	known    *tracker.KnownGifts
	limiter  *limiter.Limiter
	breaker  *circuit.CircuitBreaker
	recorder TransactionRecorder
	sinks    []ReportSink
	notifier notifier.TextNotifier

	emptyDelay      time.Duration
	errorBackoff    time.Duration
	notifyPurchases bool

	ticks      atomic.Int64
	fetched    atomic.Bool
	lastReport atomic.Pointer[Report]
	wake       chan struct{}
	nowFn      func() time.Time
}

func NewEngine(p EngineParams) (*Engine, error) {
	if p.Source == nil {
		return nil, errors.New("buyer engine requires a gift source")
	}
	if p.Ledger == nil {
		p.Ledger = ledger.New()
	}
	if p.Known == nil {
		p.Known = tracker.New()
	}
	if p.Limiter == nil {
		p.Limiter = limiter.New(limiter.DefaultCapacity)
	}
	if p.EmptyDelay <= 0 {
		p.EmptyDelay = DefaultEmptyDelay
	}
	if p.ErrorBackoff <= 0 {
		p.ErrorBackoff = DefaultErrorBackoff
	}
	return &Engine{
		source:          p.Source,
		invoices:        p.Invoices,
		ledger:          p.Ledger,
		known:           p.Known,
		limiter:         p.Limiter,
		breaker:         p.Breaker,
		recorder:        p.Recorder,
		sinks:           p.Sinks,
		notifier:        p.Notifier,
		emptyDelay:      p.EmptyDelay,
		errorBackoff:    p.ErrorBackoff,
		notifyPurchases: p.NotifyPurchases,
		wake:            make(chan struct{}, 1),
		nowFn:           time.Now,
	}, nil
}

func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

func (e *Engine) Known() *tracker.KnownGifts { return e.known }

func (e *Engine) Capacity() int { return e.limiter.Capacity() }

// OpenInvoices returns copies of the invoices still being filled.
func (e *Engine) OpenInvoices() []gift.Invoice { return e.ledger.Open() }

// Purchased returns how many gifts were bought for an invoice id so far.
func (e *Engine) Purchased(invoiceID string) int { return e.ledger.Purchased(invoiceID) }

func (e *Engine) KnownGiftIDs() []string { return e.known.Snapshot() }

// Wake ends the current inter-tick delay, e.g. after the invoices changed.
// Calls made while a tick runs collapse into one early start.
func (e *Engine) Wake() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// LastReport returns the report of the most recent finished tick.
func (e *Engine) LastReport() (Report, bool) {
	r := e.lastReport.Load()
	if r == nil {
		return Report{}, false
	}
	return *r, true
}

// Run ticks until ctx is cancelled. It returns an error only for faults the
// loop cannot recover from, such as a ledger invariant violation.
func (e *Engine) Run(ctx context.Context) error {
	logger.Infof("GiftBuyer: allocation loop starting capacity=%d empty_delay=%s error_backoff=%s",
		e.limiter.Capacity(), e.emptyDelay, e.errorBackoff)
	loop := scheduler.NewLoop(ctx, "buyer")
	loop.SetWake(e.wake)
	err := loop.Start(func(ctx context.Context) (time.Duration, error) {
		report, delay, err := e.Tick(ctx)
		if !report.Timestamp.IsZero() {
			e.publish(ctx, report)
		}
		return delay, err
	})
	if err != nil {
		return fmt.Errorf("allocation loop: %w", err)
	}
	logger.Infof("GiftBuyer: allocation loop stopped")
	return nil
}

// Tick runs one fetch/select/process/reconcile pass. The returned delay is
// how long to wait before the next tick. A non-nil error is either ctx's
// error or a fatal ledger fault.
func (e *Engine) Tick(ctx context.Context) (Report, time.Duration, error) {
	start := e.nowFn()
	report := Report{Tick: e.ticks.Add(1), Timestamp: start.UTC()}

	gifts, err := e.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Report{}, 0, ctx.Err()
		}
		kind := ErrKindFetch
		if errors.Is(err, circuit.ErrOpen) {
			kind = ErrKindCircuitOpen
		}
		report.Error = &ReportError{Kind: kind, Message: err.Error()}
		report.KnownIDs = e.known.Snapshot()
		report.OpenInvoices = e.ledger.Len()
		report.Duration = e.nowFn().Sub(start)
		if kind == ErrKindFetch {
			logger.Errorf("GiftBuyer: tick=%d fetch failed: %v", report.Tick, err)
		} else {
			logger.Debugf("GiftBuyer: tick=%d fetch skipped, breaker open", report.Tick)
		}
		return report, e.errorBackoff, nil
	}

	available := purchasable(gifts)
	report.CurrentIDs = giftIDs(gifts)
	report.Available = len(available)

	e.syncInvoices()
	plans := BuildPlans(e.ledger.Open(), available)
	if len(available) == 0 {
		logger.Debugf("GiftBuyer: tick=%d no purchasable gifts among %d", report.Tick, len(gifts))
	}

	results := e.process(ctx, plans)
	retired, err := e.reconcile(ctx, results, &report)
	if err != nil {
		return report, 0, err
	}

	firstFetch := !e.fetched.Swap(true)
	report.NewIDs, report.KnownIDs = e.known.RecordAndDiff(report.CurrentIDs)
	report.OpenInvoices = e.ledger.Len()
	report.Duration = e.nowFn().Sub(start)

	e.announce(ctx, report, retired, firstFetch)

	if ctx.Err() != nil {
		return report, 0, ctx.Err()
	}
	if len(available) == 0 {
		return report, e.emptyDelay, nil
	}
	return report, 0, nil
}

func (e *Engine) fetch(ctx context.Context) ([]gift.Gift, error) {
	var gifts []gift.Gift
	call := func() error {
		var err error
		gifts, err = e.source.ListAvailable(ctx)
		return err
	}
	if e.breaker == nil {
		err := call()
		return gifts, err
	}
	// failures caused by our own cancellation say nothing about the source
	err := e.breaker.Execute(call, func(error) bool { return ctx.Err() != nil })
	return gifts, err
}

func (e *Engine) syncInvoices() {
	if e.invoices == nil {
		return
	}
	version, invoices := e.invoices.Current()
	res := e.ledger.Sync(version, invoices)
	if res.Changed() {
		logger.Infof("GiftBuyer: invoices synced version=%d added=%v removed=%v updated=%v open=%d",
			version, res.Added, res.Removed, res.Updated, e.ledger.Len())
	}
}

// reconcile is the only place the ledger is written during a tick.
func (e *Engine) reconcile(ctx context.Context, results []planResult, report *Report) ([]gift.Invoice, error) {
	outcomes := make([]ledger.Outcome, 0, len(results))
	for _, res := range results {
		if !res.admitted {
			continue
		}
		report.Attempts += res.attempts
		report.Declined += res.declined
		report.Failed += res.failed
		report.Purchased += len(res.purchases)
		outcomes = append(outcomes, res.outcome)
		e.record(ctx, res)
	}
	retired, err := e.ledger.Apply(outcomes)
	if err != nil {
		return nil, err
	}
	for _, inv := range retired {
		report.Retired = append(report.Retired, inv.ID)
		logger.Infof("GiftBuyer: invoice %s fulfilled (recipient=%d)", inv.ID, inv.Recipient.ID)
	}
	return retired, nil
}

func (e *Engine) record(ctx context.Context, res planResult) {
	if e.recorder == nil || len(res.purchases) == 0 {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()
	for _, p := range res.purchases {
		if err := e.recorder.RecordTransaction(rctx, res.outcome.InvoiceID, p.tx); err != nil {
			logger.Errorf("GiftBuyer: record transaction %s for invoice %s failed: %v", p.tx.ID, res.outcome.InvoiceID, err)
		}
	}
}

func (e *Engine) publish(ctx context.Context, report Report) {
	cp := report
	e.lastReport.Store(&cp)
	logger.Event("tick", report.logAttrs()...)
	if len(e.sinks) == 0 {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()
	for _, sink := range e.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Publish(sctx, report); err != nil {
			logger.Warnf("GiftBuyer: report sink failed tick=%d: %v", report.Tick, err)
		}
	}
}
