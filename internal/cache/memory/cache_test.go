package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCache_GetMissingTitle(t *testing.T) {
	t.Parallel()

	c := New()
	price, ok, err := c.Get(context.Background(), "never seen")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 0.0, price)
}

func TestCache_SetThenGet(t *testing.T) {
	t.Parallel()

	c := New()
	require.NoError(t, c.Set(context.Background(), "Dental Mirror", 1250))

	price, ok, err := c.Get(context.Background(), "Dental Mirror")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1250.0, price)
}

func TestCache_SetOverwrites(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "Probe", 10))
	require.NoError(t, c.Set(ctx, "Probe", 12.5))

	price, ok, err := c.Get(ctx, "Probe")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 12.5, price)

	require.NoError(t, c.Close())
}
