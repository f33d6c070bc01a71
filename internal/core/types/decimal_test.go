package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineTotal(t *testing.T) {
	got := LineTotal(3, MustMoney("12.35"))
	assert.True(t, got.Equal(MustMoney("37.05")))
	assert.True(t, LineTotal(0, MustMoney("9.99")).IsZero())
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, "1.24", RoundMoney(MustMoney("1.245")).StringFixed(2))
	assert.Equal(t, "1.26", RoundMoney(MustMoney("1.255")).StringFixed(2))
}

func TestMustMoney_Panics(t *testing.T) {
	assert.Panics(t, func() { MustMoney("abc") })
}
