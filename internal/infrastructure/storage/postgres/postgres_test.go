package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batterystock/internal/core/apperror"
	"batterystock/internal/core/changefeed"
	"batterystock/pkg/logger"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", fmt.Errorf("update: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"version conflict", fmt.Errorf("write: %w", apperror.NewConcurrentModification("variant", "v1")), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"not found", apperror.NewNotFound("variant", "v1"), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
}

func TestFeed_ChangesQuery(t *testing.T) {
	f := NewFeed(&Pool{}, nil, logger.Nop())

	sql, args, err := f.changesQuery(changefeed.Bills, 41).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, collection, kind, document_id, document, created_at FROM sys_changes WHERE collection = $1 AND id > $2 ORDER BY id LIMIT 500",
		sql)
	assert.Equal(t, []any{"bills", int64(41)}, args)
}

func TestChangeRow_Event(t *testing.T) {
	row := ChangeRow{ID: 7, Collection: "bills", Kind: "modified", DocumentID: "b1", Document: []byte(`{"id":"b1","reference":"INV-1"}`)}

	ev := row.Event()
	assert.Equal(t, changefeed.Modified, ev.Kind)
	assert.Equal(t, changefeed.Bills, ev.Collection)

	var doc struct{ Reference string }
	require.NoError(t, ev.Decode(&doc))
	assert.Equal(t, "INV-1", doc.Reference)

	empty := ChangeRow{Kind: "removed", DocumentID: "b2"}.Event()
	assert.ErrorIs(t, empty.Decode(&doc), changefeed.ErrNoDocument)
}
