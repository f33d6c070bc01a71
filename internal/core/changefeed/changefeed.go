// Package changefeed defines the subscription contract between the stores
// and the watchers: an initial snapshot batch followed by incremental
// added/modified/removed batches in commit order.
package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection names a watched document collection.
type Collection string

const (
	StockMovements Collection = "stock_movements"
	StockEntries   Collection = "stock_entries"
	Bills          Collection = "bills"
)

// Snapshotted reports whether the Initial batch of a subscription on c
// carries the existing documents. The stock movement ledger is
// append-only and never replayed: its Initial batch is always empty.
func (c Collection) Snapshotted() bool {
	return c != StockMovements
}

// Kind is the type of a document change.
type Kind string

const (
	Added    Kind = "added"
	Modified Kind = "modified"
	Removed  Kind = "removed"
)

// ErrNoDocument is returned by Event.Decode when the event carries no body
// (removals, and modifications on stores that cannot look the document up).
var ErrNoDocument = errors.New("changefeed: event has no document")

// Event is a single document change.
type Event struct {
	Kind       Kind
	Collection Collection
	DocumentID string

	decode func(v any) error
}

// Decode unmarshals the document carried by the event into v.
func (e Event) Decode(v any) error {
	if e.decode == nil {
		return ErrNoDocument
	}
	if err := e.decode(v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", e.Collection, e.DocumentID, err)
	}
	return nil
}

// NewEvent builds an event whose body is decoded lazily by decode.
func NewEvent(kind Kind, coll Collection, docID string, decode func(v any) error) Event {
	return Event{Kind: kind, Collection: coll, DocumentID: docID, decode: decode}
}

// JSONEvent builds an event carrying a JSON document body.
func JSONEvent(kind Kind, coll Collection, docID string, body []byte) Event {
	var decode func(v any) error
	if len(body) > 0 {
		decode = func(v any) error { return json.Unmarshal(body, v) }
	}
	return NewEvent(kind, coll, docID, decode)
}

// DocumentEvent marshals doc to JSON and wraps it in an event.
func DocumentEvent(kind Kind, coll Collection, docID string, doc any) (Event, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s/%s: %w", coll, docID, err)
	}
	return JSONEvent(kind, coll, docID, body), nil
}

// Batch is one delivery to a handler. The first batch of every
// subscription has Initial set. For snapshotted collections it contains
// the existing documents as Added events, possibly none; for the others
// it is empty. Either way it marks the point from which every later
// commit is delivered, so a handler can reconcile against the store when
// it arrives.
type Batch struct {
	Initial bool
	Events  []Event
}

// Handler consumes batches of one subscription. Batches are delivered
// sequentially from the goroutine that called Watch; a handler must not
// block for long.
type Handler func(ctx context.Context, batch Batch)

// Feed opens change subscriptions.
type Feed interface {
	// Watch delivers the snapshot of coll and then its changes to handler
	// until ctx is done (returns ctx.Err()) or the listener faults.
	Watch(ctx context.Context, coll Collection, handler Handler) error
}
