package document_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batterystock/internal/domain/bill"
	"batterystock/internal/domain/stockentry"
)

const billCols = "id, supplier_id, reference, amount, paid_amount, due_date, status, payments, created_at, version"

func TestBillRepo_ListQuery(t *testing.T) {
	repo := NewBillRepo(nil, nil)

	sql, args, err := repo.listQuery(bill.Filter{SupplierID: "s1", UnpaidOnly: true}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT "+billCols+" FROM bills WHERE supplier_id = $1 AND paid_amount < amount ORDER BY due_date, id", sql)
	assert.Equal(t, []any{"s1"}, args)

	sql, _, err = repo.listQuery(bill.Filter{}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT "+billCols+" FROM bills ORDER BY due_date, id", sql)
}

func TestStockEntryRepo_PendingQuery(t *testing.T) {
	repo := NewStockEntryRepo(nil, nil)

	sql, args, err := repo.listQuery(stockentry.Filter{Status: stockentry.StatusPending}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM stock_entries WHERE status = $1 ORDER BY created_at, id")
	assert.Equal(t, []any{"pending"}, args)
}

func TestReplaceColumnsKeepIdentity(t *testing.T) {
	repo := NewBillRepo(nil, nil)
	b := &bill.Bill{ID: "b1", SupplierID: "s1", Version: 2}

	sql, _, err := repo.table.UpdateQuery(b.ID, 2, map[string]any{"status": "PAID"}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE bills SET status = $1, version = version + 1 WHERE id = $2 AND version = $3", sql)
}
