package watch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"batterystock/internal/core/changefeed"
	"batterystock/internal/domain/inventory"
	"batterystock/pkg/logger"
)

// Config tunes a session.
type Config struct {
	// SweepInterval schedules the safety-net check of every candidate key;
	// 0 disables it.
	SweepInterval time.Duration
	// BillRescanInterval re-evaluates unpaid bills; 0 disables it.
	BillRescanInterval time.Duration
	BillDueWindowDays  int
	CheckConcurrency   int
	// ResubscribeDelay is the first wait before re-opening a faulted
	// subscription; later waits grow exponentially.
	ResubscribeDelay time.Duration
}

// DefaultConfig returns the defaults used by cmd/worker.
func DefaultConfig() Config {
	return Config{
		BillRescanInterval: time.Hour,
		BillDueWindowDays:  DefaultBillDueWindowDays,
		CheckConcurrency:   8,
		ResubscribeDelay:   2 * time.Second,
	}
}

// Deps are the collaborators of a session.
type Deps struct {
	Feed       changefeed.Feed
	Variants   inventory.VariantRepository
	Products   inventory.ProductRepository
	Warehouses inventory.WarehouseRepository
	Notifier   Notifier
	Recorder   Recorder // optional
	Logger     *logger.Logger
	Now        func() time.Time // optional
}

// ErrSessionRunning is returned by Start on a running session.
var ErrSessionRunning = errors.New("watch: session already running")

// Session owns the watchers, their notified sets and subscriptions for
// the lifetime of one signed-in session. Stop tears everything down and
// clears the sets; a later Start begins from scratch.
type Session struct {
	cfg  Config
	feed changefeed.Feed
	log  *logger.Logger
	rec  Recorder

	Stock     *StockWatcher
	Bills     *BillWatcher
	Approvals *ApprovalWatcher

	lifecycleMu sync.Mutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	dispatcher  *Dispatcher

	// seedOnce guards the seeding sweep of the running session; seeded
	// is closed once it ran.
	seedOnce sync.Once
	seeded   chan struct{}
}

// NewSession wires the three watchers.
func NewSession(cfg Config, deps Deps) *Session {
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}
	em := emitter{notifier: deps.Notifier, recorder: deps.Recorder, now: deps.Now}
	return &Session{
		cfg:       cfg,
		feed:      deps.Feed,
		log:       deps.Logger.WithComponent("watch-session"),
		rec:       deps.Recorder,
		Stock:     NewStockWatcher(deps.Variants, deps.Products, deps.Warehouses, em, deps.Logger),
		Bills:     NewBillWatcher(cfg.BillDueWindowDays, em, deps.Logger),
		Approvals: NewApprovalWatcher(em, deps.Logger),
	}
}

// Start opens the subscriptions and returns once stock has been
// reconciled: the seeding sweep runs when the stock movements
// subscription first attaches, so nothing committed before the stream
// opened is missed. Listeners keep running until Stop or until ctx is
// cancelled.
func (s *Session) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.running {
		return ErrSessionRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.dispatcher = NewDispatcher(s.cfg.CheckConcurrency, func(key string, r any) {
		s.rec.CheckFailed(stockWatcherName)
		s.log.Errorw("panic in low-stock check", "key", key, "panic", r)
	})
	s.seedOnce = sync.Once{}
	s.seeded = make(chan struct{})

	s.Stock.Breached().Clear()
	s.Bills.Reset()
	s.Approvals.Reset()

	s.spawn(func() { s.listen(ctx, changefeed.StockMovements, s.handleMovements, s.seed) })
	s.spawn(func() { s.listen(ctx, changefeed.Bills, s.Bills.HandleBatch, nil) })
	s.spawn(func() { s.listen(ctx, changefeed.StockEntries, s.Approvals.HandleBatch, nil) })
	if s.cfg.SweepInterval > 0 {
		s.spawn(func() { s.every(ctx, s.cfg.SweepInterval, s.checkAll) })
	}
	if s.cfg.BillRescanInterval > 0 {
		s.spawn(func() { s.every(ctx, s.cfg.BillRescanInterval, s.Bills.Rescan) })
	}

	select {
	case <-s.seeded:
	case <-ctx.Done():
	}
	s.log.Infow("watch session started", "breached", s.Stock.Breached().Len())
	return nil
}

// Stop cancels listeners and in-flight checks, waits for them and clears
// every notified set. Stopping a stopped session is a no-op.
func (s *Session) Stop() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if !s.running {
		return
	}

	s.cancel()
	s.wg.Wait()
	s.dispatcher.Wait()

	s.Stock.Breached().Clear()
	s.Bills.Reset()
	s.Approvals.Reset()
	s.running = false
	s.log.Infow("watch session stopped")
}

// Running reports whether Start succeeded and Stop has not been called.
func (s *Session) Running() bool {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	return s.running
}

// Wait blocks until ctx is done, then stops the session.
func (s *Session) Wait(ctx context.Context) {
	<-ctx.Done()
	s.Stop()
}

func (s *Session) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// handleMovements checks the keys a batch touched. The Initial batch of
// the first attach seeds the breached set; the Initial batch of a
// re-subscription checks every candidate key, so breaches that began
// while the subscription was down still alert one by one.
func (s *Session) handleMovements(ctx context.Context, batch changefeed.Batch) {
	if batch.Initial {
		if !s.seed(ctx) {
			s.checkAll(ctx)
		}
		return
	}
	for _, key := range s.Stock.Keys(ctx, batch) {
		s.dispatchCheck(ctx, key)
	}
}

// seed runs the silent seeding sweep with its summary if it has not run
// in this session yet and reports whether it ran now.
func (s *Session) seed(ctx context.Context) bool {
	ran := false
	s.seedOnce.Do(func() {
		ran = true
		defer close(s.seeded)
		if _, err := s.Stock.Sweep(ctx, true); err != nil {
			// Targeted checks still work; the next reconciliation retries.
			s.rec.CheckFailed(stockWatcherName)
			s.log.Warnw("startup reconciliation sweep failed", "error", err)
		}
	})
	return ran
}

func (s *Session) dispatchCheck(ctx context.Context, key StockKey) {
	s.dispatcher.Dispatch(ctx, key.String(), func(ctx context.Context) {
		s.Stock.CheckAndLog(ctx, key)
	})
}

// checkAll dispatches a check for every candidate key.
func (s *Session) checkAll(ctx context.Context) {
	keys, err := s.Stock.Candidates(ctx)
	if err != nil {
		s.rec.CheckFailed(stockWatcherName)
		s.log.Warnw("reconciliation failed", "error", err)
		return
	}
	for _, key := range keys {
		s.dispatchCheck(ctx, key)
	}
}

// listen keeps one subscription open, re-opening it with backoff after a
// listener fault. onFault, if set, runs after every fault.
func (s *Session) listen(ctx context.Context, coll changefeed.Collection, handle changefeed.Handler, onFault func(ctx context.Context) bool) {
	log := s.log.With("collection", string(coll))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.ResubscribeDelay
	if b.InitialInterval <= 0 {
		b.InitialInterval = time.Second
	}
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0

	for {
		delivered := false
		err := s.feed.Watch(ctx, coll, func(ctx context.Context, batch changefeed.Batch) {
			delivered = true
			s.rec.EventsReceived(coll, batch.Initial, len(batch.Events))
			handle(ctx, batch)
		})
		if ctx.Err() != nil {
			return
		}
		if delivered {
			b.Reset()
		}
		if onFault != nil {
			onFault(ctx)
		}

		wait := b.NextBackOff()
		log.Warnw("change feed listener faulted, resubscribing", "error", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (s *Session) every(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
