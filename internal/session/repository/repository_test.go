package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseRepository runs the behaviour every Repository implementation must share.
func exerciseRepository(t *testing.T, r Repository) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := r.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok, "missing key should report ok=false")

	require.NoError(t, r.Set(ctx, "token", "t1"))
	v, ok, err := r.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "t1", v)

	require.NoError(t, r.Set(ctx, "token", "t2"))
	v, _, err = r.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "t2", v, "Set should replace the previous value")

	require.NoError(t, r.Set(ctx, "emailForOtp", ""))
	v, ok, err = r.Get(ctx, "emailForOtp")
	require.NoError(t, err)
	assert.True(t, ok, "empty value is still a stored value")
	assert.Equal(t, "", v)

	require.NoError(t, r.Remove(ctx, "token"))
	_, ok, err = r.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Remove(ctx, "token"), "removing a missing key is not an error")

	_, _, err = r.Get(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyKey)
	assert.ErrorIs(t, r.Set(ctx, "", "x"), ErrEmptyKey)
	assert.ErrorIs(t, r.Remove(ctx, ""), ErrEmptyKey)
}

func TestMemoryStore(t *testing.T) {
	exerciseRepository(t, NewMemoryStore())
}
