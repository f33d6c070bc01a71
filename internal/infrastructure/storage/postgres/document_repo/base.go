// Package document_repo provides PostgreSQL implementations of the
// document repositories: stock entries, bills, transfers and invoices.
package document_repo

import (
	"context"

	"batterystock/internal/core/changefeed"
	"batterystock/internal/infrastructure/storage/postgres"
)

// watchedTable writes documents of a watched collection together with
// their change log rows.
type watchedTable[T any] struct {
	*postgres.Table[T]
	coll     changefeed.Collection
	recorder *postgres.ChangeRecorder
}

func newWatchedTable[T any](txm *postgres.TxManager, recorder *postgres.ChangeRecorder, coll changefeed.Collection, entity string) watchedTable[T] {
	return watchedTable[T]{
		Table:    postgres.NewTable[T](txm, string(coll), entity),
		coll:     coll,
		recorder: recorder,
	}
}

func (t watchedTable[T]) create(ctx context.Context, id string, doc *T) error {
	return t.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		if err := t.Insert(ctx, id, doc); err != nil {
			return err
		}
		return t.recorder.Record(ctx, t.coll, changefeed.Added, id, doc)
	})
}

// replace writes every column of doc except the identity under a version
// check.
func (t watchedTable[T]) replace(ctx context.Context, id string, doc *T, expectedVersion int64) error {
	return t.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		set := postgres.Columns(doc, "id", "version", "created_at")
		if err := t.UpdateVersioned(ctx, id, expectedVersion, set); err != nil {
			return err
		}
		return t.recorder.Record(ctx, t.coll, changefeed.Modified, id, doc)
	})
}

// snapshot lists every document as Added events.
func (t watchedTable[T]) snapshot(ctx context.Context, idOf func(*T) string) ([]changefeed.Event, error) {
	docs, err := t.List(ctx, t.Select().OrderBy("id"))
	if err != nil {
		return nil, err
	}
	events := make([]changefeed.Event, 0, len(docs))
	for i := range docs {
		ev, err := changefeed.DocumentEvent(changefeed.Added, t.coll, idOf(&docs[i]), &docs[i])
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}
