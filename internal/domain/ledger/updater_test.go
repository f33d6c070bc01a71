package ledger

import (
	"context"
	"errors"
	"maps"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batterystock/internal/core/apperror"
	"batterystock/internal/core/types"
	"batterystock/internal/domain/inventory"
	"batterystock/internal/domain/supplier"
)

// --- hand-written fakes ---

type fakeVariants struct {
	inventory.VariantRepository
	items  map[string]*inventory.Variant
	reads  int
	writes int
	getErr error
}

func (f *fakeVariants) Get(_ context.Context, id string) (*inventory.Variant, error) {
	f.reads++
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.items[id]
	if !ok {
		return nil, apperror.NewNotFound("variant", id)
	}
	cp := *v
	cp.StockLevels = maps.Clone(v.StockLevels)
	return &cp, nil
}

func (f *fakeVariants) UpdateStockLevels(_ context.Context, id string, levels map[string]int64, expected int64) error {
	f.writes++
	v := f.items[id]
	if v.Version != expected {
		return apperror.NewConcurrentModification("variant", id)
	}
	v.StockLevels = levels
	v.Version++
	return nil
}

type fakeSuppliers struct {
	supplier.Repository
	items  map[string]*supplier.Supplier
	reads  int
	writes []supplier.BalanceUpdate
}

func (f *fakeSuppliers) Get(_ context.Context, id string) (*supplier.Supplier, error) {
	f.reads++
	s, ok := f.items[id]
	if !ok {
		return nil, apperror.NewNotFound("supplier", id)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSuppliers) UpdateBalance(_ context.Context, id string, upd supplier.BalanceUpdate, expected int64) error {
	f.writes = append(f.writes, upd)
	s := f.items[id]
	if s.Version != expected {
		return apperror.NewConcurrentModification("supplier", id)
	}
	if upd.TotalDebit != nil {
		s.TotalDebit = *upd.TotalDebit
	}
	if upd.TotalCredit != nil {
		s.TotalCredit = *upd.TotalCredit
	}
	s.Version++
	return nil
}

type fakeMovements struct {
	appended []Movement
	err      error
}

func (f *fakeMovements) Append(_ context.Context, m *Movement) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, *m)
	return nil
}

func (f *fakeMovements) List(context.Context, MovementFilter) ([]Movement, error) {
	return f.appended, nil
}

func newFixture() (*Updater, *fakeVariants, *fakeSuppliers, *fakeMovements) {
	variants := &fakeVariants{items: map[string]*inventory.Variant{
		"v1": {ID: "v1", StockLevels: map[string]int64{"wh1": 10}, Version: 1},
	}}
	suppliers := &fakeSuppliers{items: map[string]*supplier.Supplier{
		"s1": {ID: "s1", TotalDebit: types.MustMoney("100"), TotalCredit: types.MustMoney("40"), Version: 3},
	}}
	movements := &fakeMovements{}
	return NewUpdater(variants, suppliers, movements), variants, suppliers, movements
}

// --- UpdateVariantStock ---

func TestUpdateVariantStock_AppliesDelta(t *testing.T) {
	u, variants, _, movements := newFixture()
	ctx := context.Background()

	require.NoError(t, u.UpdateVariantStock(ctx, "v1", "wh1", -4))
	require.NoError(t, u.UpdateVariantStock(ctx, "v1", "wh2", 3))

	v := variants.items["v1"]
	assert.Equal(t, map[string]int64{"wh1": 6, "wh2": 3}, v.StockLevels)
	assert.Equal(t, int64(3), v.Version)
	require.Len(t, movements.appended, 2)
	assert.Equal(t, int64(6), movements.appended[0].BalanceAfter)
	assert.Equal(t, ReasonAdjustment, movements.appended[0].Reason)
	assert.Equal(t, int64(3), movements.appended[1].BalanceAfter)
}

func TestUpdateVariantStock_AllowsNegative(t *testing.T) {
	u, variants, _, _ := newFixture()

	require.NoError(t, u.UpdateVariantStock(context.Background(), "v1", "wh1", -15))
	assert.Equal(t, int64(-5), variants.items["v1"].StockLevels["wh1"])
}

func TestUpdateVariantStock_NoOps(t *testing.T) {
	tests := []struct {
		name      string
		variantID string
		delta     int64
		reads     int
	}{
		{"empty variant id", "", 5, 0},
		{"zero delta", "v1", 0, 0},
		{"missing variant", "ghost", 5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, variants, _, movements := newFixture()

			err := u.UpdateVariantStock(context.Background(), tt.variantID, "wh1", tt.delta)

			assert.NoError(t, err)
			assert.Equal(t, tt.reads, variants.reads)
			assert.Zero(t, variants.writes)
			assert.Empty(t, movements.appended)
		})
	}
}

func TestUpdateVariantStock_PropagatesErrors(t *testing.T) {
	u, variants, _, _ := newFixture()
	boom := errors.New("connection reset")
	variants.getErr = boom

	err := u.UpdateVariantStock(context.Background(), "v1", "wh1", 1)
	assert.ErrorIs(t, err, boom)
}

func TestApplyMovement_ConflictSurfaces(t *testing.T) {
	u, variants, _, _ := newFixture()
	// Another writer bumps the version between our read and write.
	variants.items["v1"].Version = 1
	fake := &racingVariants{fakeVariants: variants}
	u.variants = fake

	_, err := u.ApplyMovement(context.Background(), Movement{VariantID: "v1", WarehouseID: "wh1", Delta: 1})
	assert.True(t, apperror.IsConcurrentModification(err))
}

type racingVariants struct {
	*fakeVariants
}

func (r *racingVariants) Get(ctx context.Context, id string) (*inventory.Variant, error) {
	v, err := r.fakeVariants.Get(ctx, id)
	r.items[id].Version++
	return v, err
}

func TestApplyMovement_RequiresWarehouse(t *testing.T) {
	u, _, _, _ := newFixture()

	_, err := u.ApplyMovement(context.Background(), Movement{VariantID: "v1", Delta: 1})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestApplyMovement_MovementError(t *testing.T) {
	u, _, _, movements := newFixture()
	movements.err = errors.New("insert failed")

	_, err := u.ApplyMovement(context.Background(), Movement{VariantID: "v1", WarehouseID: "wh1", Delta: 2, Reason: ReasonEntry})
	assert.Error(t, err)
}

// --- UpdateSupplierBalance ---

func TestUpdateSupplierBalance_ZeroDeltasNoWrites(t *testing.T) {
	u, _, suppliers, _ := newFixture()

	err := u.UpdateSupplierBalance(context.Background(), "s1", types.Zero(), types.Zero())

	assert.NoError(t, err)
	assert.Zero(t, suppliers.reads)
	assert.Empty(t, suppliers.writes)
}

func TestUpdateSupplierBalance_OnlyNonZeroFields(t *testing.T) {
	u, _, suppliers, _ := newFixture()
	ctx := context.Background()

	require.NoError(t, u.UpdateSupplierBalance(ctx, "s1", types.MustMoney("25.50"), types.Zero()))
	require.NoError(t, u.UpdateSupplierBalance(ctx, "s1", types.Zero(), types.MustMoney("10")))

	require.Len(t, suppliers.writes, 2)
	assert.NotNil(t, suppliers.writes[0].TotalDebit)
	assert.Nil(t, suppliers.writes[0].TotalCredit)
	assert.Nil(t, suppliers.writes[1].TotalDebit)
	assert.NotNil(t, suppliers.writes[1].TotalCredit)

	s := suppliers.items["s1"]
	assert.Equal(t, "125.50", s.TotalDebit.StringFixed(2))
	assert.Equal(t, "50.00", s.TotalCredit.StringFixed(2))
	assert.Equal(t, int64(5), s.Version)
}

func TestUpdateSupplierBalance_MissingSupplier(t *testing.T) {
	u, _, suppliers, _ := newFixture()

	assert.NoError(t, u.UpdateSupplierBalance(context.Background(), "ghost", types.MustMoney("1"), types.Zero()))
	assert.NoError(t, u.UpdateSupplierBalance(context.Background(), "", types.MustMoney("1"), types.Zero()))
	assert.Empty(t, suppliers.writes)
}

func TestSum(t *testing.T) {
	got := Sum([]Movement{
		{WarehouseID: "wh1", Delta: 10},
		{WarehouseID: "wh1", Delta: -4},
		{WarehouseID: "wh2", Delta: 3},
	})
	assert.Equal(t, map[string]int64{"wh1": 6, "wh2": 3}, got)
}
