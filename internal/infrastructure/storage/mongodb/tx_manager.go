package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"batterystock/internal/core/apperror"
	"batterystock/internal/core/tx"
	"batterystock/pkg/logger"
)

var _ tx.Manager = (*TxManager)(nil)

// inTxKey marks a context that already runs inside a session transaction.
type inTxKey struct{}

// TxManager runs functions in multi-document transactions. The driver
// re-runs transient transaction errors itself; version conflicts raised by
// the repositories are retried here with the configured policy.
type TxManager struct {
	client  *mongo.Client
	retry   tx.RetryPolicy
	onRetry func(err error)
}

// NewTxManager creates a transaction manager on c.
func NewTxManager(c *Client, retry tx.RetryPolicy) *TxManager {
	return &TxManager{client: c.client, retry: retry}
}

// OnRetry registers a callback invoked before a conflicting transaction
// is re-run.
func (m *TxManager) OnRetry(fn func(err error)) {
	m.onRetry = fn
}

// InTransaction reports whether ctx carries an open transaction.
func InTransaction(ctx context.Context) bool {
	v, _ := ctx.Value(inTxKey{}).(bool)
	return v
}

// RunInTransaction implements tx.Manager. Nested calls join the outer
// transaction.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	onRetry := func(err error, wait time.Duration) {
		logger.Debug(ctx, "retrying conflicting transaction", "error", err, "wait", wait)
		if m.onRetry != nil {
			m.onRetry(err)
		}
	}
	return m.retry.Run(ctx, apperror.IsRetryable, onRetry, m.runOnce(fn))
}

func (m *TxManager) runOnce(fn func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		session, err := m.client.StartSession()
		if err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		defer session.EndSession(ctx)

		txnOpts := options.Transaction().
			SetReadConcern(readconcern.Snapshot()).
			SetWriteConcern(writeconcern.Majority())

		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			return nil, fn(context.WithValue(sessCtx, inTxKey{}, true))
		}, txnOpts)
		if err != nil {
			var appErr *apperror.AppError
			if errors.As(err, &appErr) {
				return err
			}
			if mongo.IsDuplicateKeyError(err) {
				return apperror.NewConflict("duplicate key").WithCause(err)
			}
			return fmt.Errorf("transaction: %w", err)
		}
		return nil
	}
}
