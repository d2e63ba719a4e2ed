package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkchain-gateway/internal/domain"
)

func TestChannelPerformanceStore_PutAndGetAll(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewChannelPerformanceStore(pool)
	ctx := context.Background()

	err := store.Put(ctx, domain.ChannelRPC, &domain.ChannelPerformance{
		SuccessRate:      0.95,
		AvgConfirmTimeMs: 8000,
		TotalTxs:         42,
	})
	require.NoError(t, err)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Contains(t, all, domain.ChannelRPC)
	assert.Equal(t, 0.95, all[domain.ChannelRPC].SuccessRate)
	assert.Equal(t, int64(42), all[domain.ChannelRPC].TotalTxs)

	// Put upserts.
	err = store.Put(ctx, domain.ChannelRPC, &domain.ChannelPerformance{
		SuccessRate:      0.955,
		AvgConfirmTimeMs: 7800,
		TotalTxs:         43,
	})
	require.NoError(t, err)

	all, err = store.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(43), all[domain.ChannelRPC].TotalTxs)
}

func TestChannelPerformanceStore_Replace(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewChannelPerformanceStore(pool)
	ctx := context.Background()

	err := store.Put(ctx, "stale", &domain.ChannelPerformance{SuccessRate: 0.5})
	require.NoError(t, err)

	err = store.Replace(ctx, domain.DefaultChannelPerformance())
	require.NoError(t, err)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.NotContains(t, all, "stale")
	require.Len(t, all, 4)
	assert.Equal(t, 0.99, all[domain.ChannelGateway].SuccessRate)
	assert.Equal(t, float64(3000), all[domain.ChannelGateway].AvgConfirmTimeMs)
}
