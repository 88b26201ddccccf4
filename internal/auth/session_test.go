package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/trialdesk/trialdesk/internal/shared"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSessionStoreRoundTrip(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	entry := &SessionEntry{
		Principal: shared.Principal{
			ID:          "u-1",
			Email:       "cra@site.example",
			Role:        "cra",
			Permissions: []string{"studies.view", "queries.resolve"},
		},
		LastActivity: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Set(ctx, "u-1", entry))

	got, err := store.Get(ctx, "u-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, entry.Principal, got.Principal)
	require.True(t, entry.LastActivity.Equal(got.LastActivity))
}

func TestSessionStoreMissReturnsNil(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewSessionStore(client, time.Hour)

	got, err := store.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSessionStoreExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "u-1", &SessionEntry{Principal: shared.Principal{ID: "u-1"}}))

	mr.FastForward(time.Hour + time.Minute)

	got, err := store.Get(ctx, "u-1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSessionStoreDelete(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "u-1", &SessionEntry{Principal: shared.Principal{ID: "u-1"}}))
	require.NoError(t, store.Delete(ctx, "u-1"))
	require.NoError(t, store.Delete(ctx, "u-1"))

	got, err := store.Get(ctx, "u-1")
	require.NoError(t, err)
	require.Nil(t, got)
}
