package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"batterystock/internal/core/changefeed"
	"batterystock/pkg/logger"
)

var _ changefeed.Feed = (*Feed)(nil)

// SnapshotFunc lists the current documents of a collection. It runs in
// the snapshot transaction carried by ctx.
type SnapshotFunc func(ctx context.Context) ([]changefeed.Event, error)

// Feed implements changefeed.Feed on top of the change log. Each
// subscription holds a dedicated connection that LISTENs for commit
// notifications and reads the log past its cursor; a periodic poll covers
// notifications lost while reconnecting.
type Feed struct {
	pool         *pgxpool.Pool
	txManager    *TxManager
	builder      squirrel.StatementBuilderType
	pollInterval time.Duration
	batchSize    uint64
	log          *logger.Logger

	mu        sync.RWMutex
	snapshots map[changefeed.Collection]SnapshotFunc
}

// NewFeed creates a change feed.
func NewFeed(pool *Pool, txManager *TxManager, log *logger.Logger) *Feed {
	return &Feed{
		pool:         pool.Pool,
		txManager:    txManager,
		builder:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		pollInterval: 30 * time.Second,
		batchSize:    500,
		log:          log.WithComponent("pg-changefeed"),
		snapshots:    make(map[changefeed.Collection]SnapshotFunc),
	}
}

// Register sets the snapshot source of a collection.
func (f *Feed) Register(coll changefeed.Collection, fn SnapshotFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[coll] = fn
}

// Watch implements changefeed.Feed.
func (f *Feed) Watch(ctx context.Context, coll changefeed.Collection, handler changefeed.Handler) error {
	f.mu.RLock()
	snapshot, ok := f.snapshots[coll]
	f.mu.RUnlock()
	if !ok && coll.Snapshotted() {
		return fmt.Errorf("no snapshot source registered for %s", coll)
	}

	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection for LISTEN: %w", err)
	}
	defer func() {
		// A connection still listening must not go back to the pool.
		if _, err := conn.Exec(context.Background(), "UNLISTEN *"); err != nil {
			_ = conn.Conn().Close(context.Background())
		}
		conn.Release()
	}()

	// LISTEN before the snapshot: anything committed after it notifies.
	if _, err := conn.Exec(ctx, "LISTEN "+changesChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	cursor, initial, err := f.snapshot(ctx, snapshot)
	if err != nil {
		return err
	}
	handler(ctx, changefeed.Batch{Initial: true, Events: initial})
	f.log.Debugw("subscription attached", "collection", string(coll), "cursor", cursor, "documents", len(initial))

	for {
		rows, err := f.changesSince(ctx, coll, cursor)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			events := make([]changefeed.Event, len(rows))
			for i, row := range rows {
				events[i] = row.Event()
			}
			cursor = rows[len(rows)-1].ID
			handler(ctx, changefeed.Batch{Events: events})
			continue
		}

		waitCtx, cancel := context.WithTimeout(ctx, f.pollInterval)
		_, err = conn.Conn().WaitForNotification(waitCtx)
		cancel()
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			// poll
		case err != nil:
			return fmt.Errorf("wait for notification: %w", err)
		}
	}
}

// snapshot reads the log cursor and the documents in one repeatable read
// transaction, so the cursor matches the documents exactly. A nil fn
// reads only the cursor.
func (f *Feed) snapshot(ctx context.Context, fn SnapshotFunc) (int64, []changefeed.Event, error) {
	var (
		cursor int64
		events []changefeed.Event
	)
	err := f.txManager.RunInTransactionWithOptions(ctx, SnapshotTxOptions(), func(ctx context.Context) error {
		q := f.txManager.GetQuerier(ctx)
		if err := q.QueryRow(ctx, "SELECT COALESCE(MAX(id), 0) FROM "+changesTable).Scan(&cursor); err != nil {
			return fmt.Errorf("read change cursor: %w", err)
		}
		if fn == nil {
			return nil
		}
		var err error
		events, err = fn(ctx)
		return err
	})
	if err != nil {
		return 0, nil, fmt.Errorf("snapshot: %w", err)
	}
	return cursor, events, nil
}

func (f *Feed) changesSince(ctx context.Context, coll changefeed.Collection, cursor int64) ([]ChangeRow, error) {
	sql, args, err := f.changesQuery(coll, cursor).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build changes query: %w", err)
	}
	var rows []ChangeRow
	if err := pgxscan.Select(ctx, f.pool, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("read changes: %w", err)
	}
	return rows, nil
}

func (f *Feed) changesQuery(coll changefeed.Collection, cursor int64) squirrel.SelectBuilder {
	return f.builder.
		Select("id", "collection", "kind", "document_id", "document", "created_at").
		From(changesTable).
		Where(squirrel.Eq{"collection": string(coll)}).
		Where(squirrel.Gt{"id": cursor}).
		OrderBy("id").
		Limit(f.batchSize)
}
