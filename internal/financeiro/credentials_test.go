package financeiro

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestCredentialStoreCacheHit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	medicoID := uuid.New()
	mr.HSet(cacheKey(medicoID), "api_key", "key-from-cache", "pix_key", "pix@clinic.example")

	// A nil pool proves the database is never touched on a cache hit.
	store := NewCredentialStore(nil, client, nil)
	cred, err := store.Load(context.Background(), medicoID)
	require.NoError(t, err)
	require.Equal(t, "key-from-cache", cred.APIKey)
	require.Equal(t, "pix@clinic.example", cred.PixKey)
}

func TestCredentialStoreCacheExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	medicoID := uuid.New()
	mr.HSet(cacheKey(medicoID), "api_key", "key-from-cache")
	mr.SetTTL(cacheKey(medicoID), credentialCacheTTL)

	mr.FastForward(credentialCacheTTL * 2)
	require.False(t, mr.Exists(cacheKey(medicoID)))
}
