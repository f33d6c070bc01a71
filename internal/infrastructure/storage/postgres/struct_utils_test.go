package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"batterystock/internal/domain/inventory"
)

type Audited struct {
	CreatedBy string `db:"created_by"`
}

type withEmbedded struct {
	Audited
	ID    string `db:"id"`
	Note  string
	Skip  string `db:"-"`
	Count int    `db:"count"`
}

func TestExtractDBColumns_Variant(t *testing.T) {
	cols := ExtractDBColumns[inventory.Variant]()

	assert.Equal(t, "id", cols[0])
	for _, want := range []string{"product_id", "stock_levels", "min_quantities", "archived", "version", "updated_at"} {
		assert.Contains(t, cols, want)
	}
}

func TestExtractDBColumns_EmbeddedAndIgnored(t *testing.T) {
	assert.Equal(t, []string{"created_by", "id", "count"}, ExtractDBColumns[withEmbedded]())
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	v := &inventory.Variant{
		ID:          "v1",
		ProductID:   "p1",
		StockLevels: map[string]int64{"wh1": 3},
		Version:     4,
		CreatedAt:   now,
	}

	m := StructToMap(v)

	assert.Equal(t, "v1", m["id"])
	assert.Equal(t, "p1", m["product_id"])
	assert.Equal(t, map[string]int64{"wh1": 3}, m["stock_levels"])
	assert.Equal(t, int64(4), m["version"])
	assert.Equal(t, now, m["created_at"])

	e := StructToMap(withEmbedded{Audited: Audited{CreatedBy: "u1"}, ID: "x", Count: 2})
	assert.Equal(t, map[string]any{"created_by": "u1", "id": "x", "count": 2}, e)
	assert.Nil(t, StructToMap(42))
}
