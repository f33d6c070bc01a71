package watch

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Dispatcher runs keyed checks off the event stream. Checks for different
// keys run in parallel up to the concurrency limit; a key whose check is
// already running is re-run once after it finishes, no matter how many
// times it was dispatched meanwhile.
type Dispatcher struct {
	sem *semaphore.Weighted
	// onPanic receives recovered panics; may be nil
	onPanic func(key string, recovered any)

	mu      sync.Mutex
	pending map[string]bool // key -> re-run requested
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. concurrency < 1 means 1.
func NewDispatcher(concurrency int, onPanic func(key string, recovered any)) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		sem:     semaphore.NewWeighted(int64(concurrency)),
		onPanic: onPanic,
		pending: make(map[string]bool),
	}
}

// Dispatch schedules fn for key and returns immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, key string, fn func(ctx context.Context)) {
	d.mu.Lock()
	if _, busy := d.pending[key]; busy {
		d.pending[key] = true
		d.mu.Unlock()
		return
	}
	d.pending[key] = false
	d.wg.Add(1)
	d.mu.Unlock()

	go d.run(ctx, key, fn)
}

func (d *Dispatcher) run(ctx context.Context, key string, fn func(ctx context.Context)) {
	defer d.wg.Done()
	for {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			d.finish(key)
			return
		}
		d.call(ctx, key, fn)
		d.sem.Release(1)

		d.mu.Lock()
		if d.pending[key] {
			d.pending[key] = false
			d.mu.Unlock()
			continue
		}
		delete(d.pending, key)
		d.mu.Unlock()
		return
	}
}

func (d *Dispatcher) call(ctx context.Context, key string, fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil && d.onPanic != nil {
			d.onPanic(key, fmt.Sprint(r))
		}
	}()
	fn(ctx)
}

func (d *Dispatcher) finish(key string) {
	d.mu.Lock()
	delete(d.pending, key)
	d.mu.Unlock()
}

// InFlight returns the number of keys with a running or queued check.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Wait blocks until every dispatched check has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
