package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"batterystock/internal/core/changefeed"
)

const (
	changesTable   = "sys_changes"
	changesChannel = "batterystock_changes"

	// changesLockKey serializes writers of sys_changes until commit.
	changesLockKey int64 = 0x62617474 // "batt"
)

// ChangeRow is a row of the change log.
type ChangeRow struct {
	ID         int64     `db:"id"`
	Collection string    `db:"collection"`
	Kind       string    `db:"kind"`
	DocumentID string    `db:"document_id"`
	Document   []byte    `db:"document"`
	CreatedAt  time.Time `db:"created_at"`
}

// Event converts the row to a change feed event.
func (c ChangeRow) Event() changefeed.Event {
	return changefeed.JSONEvent(changefeed.Kind(c.Kind), changefeed.Collection(c.Collection), c.DocumentID, c.Document)
}

// ChangeRecorder appends document changes to the change log within the
// writing transaction.
type ChangeRecorder struct {
	txManager *TxManager
}

// NewChangeRecorder creates a change recorder.
func NewChangeRecorder(txManager *TxManager) *ChangeRecorder {
	return &ChangeRecorder{txManager: txManager}
}

// Record logs one change. MUST be called inside a transaction context.
// The advisory lock is held until the transaction ends, so a change row
// never becomes visible before one with a smaller id.
func (r *ChangeRecorder) Record(ctx context.Context, coll changefeed.Collection, kind changefeed.Kind, docID string, doc any) error {
	tx := r.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("change record requires transaction context")
	}

	var payload []byte
	if doc != nil {
		var err error
		if payload, err = json.Marshal(doc); err != nil {
			return fmt.Errorf("marshal change document: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", changesLockKey); err != nil {
		return fmt.Errorf("lock change log: %w", err)
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO sys_changes (collection, kind, document_id, document, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, string(coll), string(kind), docID, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert change: %w", err)
	}
	// Delivered on commit; duplicates within a transaction are folded.
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", changesChannel, string(coll)); err != nil {
		return fmt.Errorf("notify change: %w", err)
	}
	return nil
}

// Prune deletes change rows older than retention. Subscribers more than
// retention behind lose those changes; resubscribing takes a snapshot.
func (r *ChangeRecorder) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx,
		"DELETE FROM sys_changes WHERE created_at < $1", time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("prune changes: %w", err)
	}
	return tag.RowsAffected(), nil
}
