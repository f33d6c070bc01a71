package bill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"batterystock/internal/core/types"
)

func TestBill_DueMath(t *testing.T) {
	now := time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)
	b := Bill{Amount: types.MustMoney("100"), PaidAmount: types.Zero(), DueDate: time.Date(2026, 3, 13, 1, 0, 0, 0, time.UTC)}

	assert.Equal(t, 3, b.DaysUntilDue(now))
	assert.True(t, b.DueWithin(now, 7))
	assert.False(t, b.IsOverdue(now))

	later := now.AddDate(0, 0, 5)
	assert.Equal(t, -2, b.DaysUntilDue(later))
	assert.True(t, b.IsOverdue(later))

	far := Bill{Amount: types.MustMoney("100"), DueDate: now.AddDate(0, 0, 8)}
	assert.False(t, far.DueWithin(now, 7))
}

func TestBill_PaidIsNeverDue(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	b := Bill{Amount: types.MustMoney("100"), PaidAmount: types.MustMoney("100"), DueDate: now.AddDate(0, 0, -30)}

	assert.True(t, b.FullyPaid())
	assert.False(t, b.IsOverdue(now))
	assert.False(t, b.DueWithin(now, 7))
}

func TestStatusAfterPayment(t *testing.T) {
	tests := []struct {
		paid string
		want Status
	}{
		{"0", StatusUnpaid},
		{"40", StatusPartial},
		{"100", StatusPaid},
	}
	for _, tt := range tests {
		b := Bill{Amount: types.MustMoney("100"), PaidAmount: types.MustMoney(tt.paid)}
		assert.Equal(t, tt.want, statusAfterPayment(&b), tt.paid)
	}
}

func TestStatus_Valid(t *testing.T) {
	assert.True(t, StatusOverdue.Valid())
	assert.False(t, Status("LOST").Valid())
}
