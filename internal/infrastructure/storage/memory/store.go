// Package memory is an in-process store for development, demos and tests.
//
// Documents are kept as JSON so every read hands out a private copy.
// Transactions are optimistic: reads remember the revision they saw, writes
// are buffered, and commit fails with ConcurrentModification if anything
// read has changed since. Committed writes are published to the change
// feed in commit order.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"batterystock/internal/core/apperror"
	"batterystock/internal/core/changefeed"
	"batterystock/internal/core/tx"
	"batterystock/pkg/logger"
)

var _ tx.Manager = (*Store)(nil)

const (
	collWarehouses = "warehouses"
	collProducts   = "products"
	collVariants   = "product_variants"
	collSuppliers  = "suppliers"
	collTransfers  = "transfers"
	collInvoices   = "invoices"

	collMovements = string(changefeed.StockMovements)
	collEntries   = string(changefeed.StockEntries)
	collBills     = string(changefeed.Bills)
)

// Options configure a Store.
type Options struct {
	Retry tx.RetryPolicy
	// OnRetry is called every time a conflicting transaction is re-run.
	OnRetry func(err error)
	// SubscriberBuffer is the number of undelivered batches a subscriber
	// may hold before it is dropped as lagging.
	SubscriberBuffer int
	Logger           *logger.Logger
}

type record struct {
	rev  uint64
	body []byte
}

type docKey struct {
	coll string
	id   string
}

// Store holds every collection.
type Store struct {
	opts Options
	log  *logger.Logger

	mu   sync.Mutex
	rev  uint64
	data map[string]map[string]record
	subs map[*subscriber]struct{}
}

// New creates an empty store.
func New(opts Options) *Store {
	if opts.Retry == (tx.RetryPolicy{}) {
		opts.Retry = tx.DefaultRetryPolicy()
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = 256
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Store{
		opts: opts,
		log:  opts.Logger.WithComponent("memory-store"),
		data: make(map[string]map[string]record),
		subs: make(map[*subscriber]struct{}),
	}
}

type txnKey struct{ s *Store }

// txn buffers one transaction.
type txn struct {
	s      *Store
	reads  map[docKey]uint64 // revision seen, 0 when absent
	writes map[docKey][]byte // encoded documents
	order  []docKey
}

func (s *Store) newTxn() *txn {
	return &txn{s: s, reads: make(map[docKey]uint64), writes: make(map[docKey][]byte)}
}

// RunInTransaction runs fn in an optimistic transaction. Nested calls
// join the outer transaction; top-level calls are retried on conflict.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txnKey{s}).(*txn); ok {
		return fn(ctx)
	}
	return s.opts.Retry.Run(ctx, apperror.IsRetryable, s.onRetry, func(ctx context.Context) error {
		t := s.newTxn()
		if err := fn(context.WithValue(ctx, txnKey{s}, t)); err != nil {
			return err
		}
		return s.commit(t)
	})
}

func (s *Store) onRetry(err error, wait time.Duration) {
	s.log.Debugw("transaction conflict, retrying", "error", err, "wait", wait)
	if s.opts.OnRetry != nil {
		s.opts.OnRetry(err)
	}
}

// do runs fn in the transaction carried by ctx, or in a single-operation
// transaction committed right away.
func (s *Store) do(ctx context.Context, fn func(t *txn) error) error {
	if t, ok := ctx.Value(txnKey{s}).(*txn); ok {
		return fn(t)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t := s.newTxn()
	if err := fn(t); err != nil {
		return err
	}
	return s.commit(t)
}

func (t *txn) get(coll, id string) ([]byte, bool) {
	k := docKey{coll, id}
	if body, ok := t.writes[k]; ok {
		return body, true
	}
	t.s.mu.Lock()
	rec, ok := t.s.data[coll][id]
	t.s.mu.Unlock()
	if _, seen := t.reads[k]; !seen {
		t.reads[k] = rec.rev
	}
	return rec.body, ok
}

// scan returns every document of coll ordered by id, own writes included.
func (t *txn) scan(coll string) [][]byte {
	t.s.mu.Lock()
	docs := make(map[string][]byte, len(t.s.data[coll]))
	for id, rec := range t.s.data[coll] {
		docs[id] = rec.body
		k := docKey{coll, id}
		if _, seen := t.reads[k]; !seen {
			t.reads[k] = rec.rev
		}
	}
	t.s.mu.Unlock()

	for k, body := range t.writes {
		if k.coll == coll {
			docs[k.id] = body
		}
	}

	ids := sortedKeys(docs)
	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		out = append(out, docs[id])
	}
	return out
}

func (t *txn) put(coll, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", coll, id, err)
	}
	k := docKey{coll, id}
	if _, ok := t.writes[k]; !ok {
		t.order = append(t.order, k)
	}
	t.writes[k] = body
	return nil
}

func (s *Store) commit(t *txn) error {
	if len(t.writes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, seen := range t.reads {
		if s.data[k.coll][k.id].rev != seen {
			return apperror.NewConcurrentModification(k.coll, k.id)
		}
	}

	s.rev++
	events := make(map[changefeed.Collection][]changefeed.Event)
	for _, k := range t.order {
		body := t.writes[k]
		docs := s.data[k.coll]
		if docs == nil {
			docs = make(map[string]record)
			s.data[k.coll] = docs
		}
		kind := changefeed.Modified
		if _, existed := docs[k.id]; !existed {
			kind = changefeed.Added
		}
		docs[k.id] = record{rev: s.rev, body: body}
		coll := changefeed.Collection(k.coll)
		events[coll] = append(events[coll], changefeed.JSONEvent(kind, coll, k.id, body))
	}
	s.publishLocked(events)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// decodeAll unmarshals a scan result.
func decodeAll[T any](docs [][]byte) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, body := range docs {
		var v T
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}
