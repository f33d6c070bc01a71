package register_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batterystock/internal/domain/ledger"
)

const movementCols = "id, variant_id, warehouse_id, delta, balance_after, reason, reference, created_at"

func TestMovementRepo_ListQuery(t *testing.T) {
	repo := NewMovementRepo(nil, nil)

	tests := []struct {
		name     string
		filter   ledger.MovementFilter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "unfiltered",
			wantSQL: "SELECT " + movementCols + " FROM stock_movements ORDER BY created_at, id",
		},
		{
			name:     "variant at warehouse",
			filter:   ledger.MovementFilter{VariantID: "v1", WarehouseID: "wh1"},
			wantSQL:  "SELECT " + movementCols + " FROM stock_movements WHERE variant_id = $1 AND warehouse_id = $2 ORDER BY created_at, id",
			wantArgs: []any{"v1", "wh1"},
		},
		{
			name:     "latest for a reference",
			filter:   ledger.MovementFilter{Reference: "tr-1", Limit: 2},
			wantSQL:  "SELECT " + movementCols + " FROM stock_movements WHERE reference = $1 ORDER BY created_at DESC, id DESC LIMIT 2",
			wantArgs: []any{"tr-1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.listQuery(tt.filter).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}
