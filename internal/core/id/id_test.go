package id

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IsVersion7(t *testing.T) {
	v, err := uuid.Parse(New())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), v.Version())
}

func TestNew_TimeOrdered(t *testing.T) {
	a := New()
	b := New()
	assert.Less(t, a, b)
}

func TestNormalize(t *testing.T) {
	got, err := Normalize("0190A0E2-7B1C-7C3D-8E4F-123456789ABC")
	require.NoError(t, err)
	assert.Equal(t, "0190a0e2-7b1c-7c3d-8e4f-123456789abc", got)

	_, err = Normalize("not-an-id")
	assert.Error(t, err)
	assert.False(t, Valid("not-an-id"))
}
