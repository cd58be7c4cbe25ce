package storage

import (
	"context"
	"testing"

	"finance-client/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisTokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewRedisTokenStore(client, "finance:"), mr
}

func TestRedisTokenStore_SaveLoadClear(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	tokens, err := store.LoadTokens(ctx)
	require.NoError(t, err)
	assert.True(t, tokens.Empty())

	require.NoError(t, store.SaveTokens(ctx, models.TokenPair{AccessToken: "acc", RefreshToken: "ref"}))
	got, err := mr.Get("finance:access_token")
	require.NoError(t, err)
	assert.Equal(t, "acc", got)

	tokens, err = store.LoadTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TokenPair{AccessToken: "acc", RefreshToken: "ref"}, tokens)

	require.NoError(t, store.ClearTokens(ctx))
	assert.False(t, mr.Exists("finance:access_token"))
	assert.False(t, mr.Exists("finance:refresh_token"))
}

func TestRedisTokenStore_HalfPairReadsAsEmpty(t *testing.T) {
	store, mr := newTestRedisStore(t)
	require.NoError(t, mr.Set("finance:access_token", "orphan"))

	tokens, err := store.LoadTokens(context.Background())
	require.NoError(t, err)
	assert.True(t, tokens.Empty())
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}
