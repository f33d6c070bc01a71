package changefeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	ID  string `json:"id"`
	Qty int64  `json:"qty"`
}

func TestDocumentEvent_Decode(t *testing.T) {
	ev, err := DocumentEvent(Added, StockMovements, "m1", doc{ID: "m1", Qty: -3})
	require.NoError(t, err)

	var got doc
	require.NoError(t, ev.Decode(&got))
	assert.Equal(t, doc{ID: "m1", Qty: -3}, got)
	assert.Equal(t, Added, ev.Kind)
	assert.Equal(t, "m1", ev.DocumentID)
}

func TestEvent_DecodeWithoutBody(t *testing.T) {
	ev := JSONEvent(Removed, Bills, "b1", nil)

	var got doc
	assert.ErrorIs(t, ev.Decode(&got), ErrNoDocument)
}

func TestEvent_DecodeError(t *testing.T) {
	ev := JSONEvent(Modified, Bills, "b1", []byte("{broken"))

	var got doc
	err := ev.Decode(&got)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bills/b1")
}

func TestCollection_Snapshotted(t *testing.T) {
	assert.False(t, StockMovements.Snapshotted())
	assert.True(t, StockEntries.Snapshotted())
	assert.True(t, Bills.Snapshotted())
}
