package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"batterystock/internal/core/apperror"
)

// Table provides the CRUD statements shared by the repositories. Columns
// come from the "db" tags of T.
type Table[T any] struct {
	txManager *TxManager
	name      string
	entity    string
	cols      []string
	builder   squirrel.StatementBuilderType
}

// NewTable creates a table helper.
func NewTable[T any](txManager *TxManager, name, entity string) *Table[T] {
	return &Table[T]{
		txManager: txManager,
		name:      name,
		entity:    entity,
		cols:      ExtractDBColumns[T](),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Name returns the table name.
func (t *Table[T]) Name() string { return t.name }

// TxManager returns the transaction manager the table queries through.
func (t *Table[T]) TxManager() *TxManager { return t.txManager }

// Select starts a SELECT of every column.
func (t *Table[T]) Select() squirrel.SelectBuilder {
	return t.builder.Select(t.cols...).From(t.name)
}

// InsertQuery builds the INSERT of every column of row.
func (t *Table[T]) InsertQuery(row *T) squirrel.InsertBuilder {
	data := StructToMap(row)
	return t.builder.Insert(t.name).SetMap(data)
}

// Insert writes row. A duplicate id returns apperror Duplicate.
func (t *Table[T]) Insert(ctx context.Context, id string, row *T) error {
	sql, args, err := t.InsertQuery(row).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := t.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if IsUniqueViolation(err) {
			return apperror.NewDuplicate(t.entity, "id", id)
		}
		return fmt.Errorf("insert %s: %w", t.name, err)
	}
	return nil
}

// Get reads one row by id.
func (t *Table[T]) Get(ctx context.Context, id string) (*T, error) {
	sql, args, err := t.Select().Where(squirrel.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var row T
	if err := pgxscan.Get(ctx, t.txManager.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(t.entity, id)
		}
		return nil, fmt.Errorf("get %s: %w", t.name, err)
	}
	return &row, nil
}

// List runs a SELECT built from Select.
func (t *Table[T]) List(ctx context.Context, q squirrel.SelectBuilder) ([]T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows := []T{}
	if err := pgxscan.Select(ctx, t.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", t.name, err)
	}
	return rows, nil
}

// UpdateQuery builds a version-checked UPDATE of set that increments
// the version.
func (t *Table[T]) UpdateQuery(id string, expectedVersion int64, set map[string]any) squirrel.UpdateBuilder {
	return t.builder.
		Update(t.name).
		SetMap(set).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"version": expectedVersion}) // optimistic lock: expect current version
}

// UpdateVersioned applies set if the stored version equals
// expectedVersion. No matching row is reported as NotFound when the id is
// unknown and as ConcurrentModification otherwise.
func (t *Table[T]) UpdateVersioned(ctx context.Context, id string, expectedVersion int64, set map[string]any) error {
	sql, args, err := t.UpdateQuery(id, expectedVersion, set).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	q := t.txManager.GetQuerier(ctx)
	result, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", t.name, err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM "+t.name+" WHERE id = $1)", id).Scan(&exists); err != nil {
		return fmt.Errorf("check %s: %w", t.name, err)
	}
	if !exists {
		return apperror.NewNotFound(t.entity, id)
	}
	return apperror.NewConcurrentModification(t.entity, id).WithDetail("expected_version", expectedVersion)
}

// Columns returns every column except the listed ones, mapped to the
// values of row.
func Columns(row any, except ...string) map[string]any {
	data := StructToMap(row)
	for _, col := range except {
		delete(data, col)
	}
	return data
}
