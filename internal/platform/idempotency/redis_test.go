package idempotency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStore(client, "")
	require.NoError(t, err)
	return store, server
}

func TestRedisStoreLifecycle(t *testing.T) {
	store, server := newTestRedisStore(t)
	ctx := context.Background()
	key := "client:c1|order-1"

	first, err := store.Reserve(ctx, key, "fp-1", fixedTime, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, StateNew, first.State)
	assert.True(t, server.Exists(defaultRedisPrefix+storageID(key)))

	again, err := store.Reserve(ctx, key, "fp-1", fixedTime, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, StateInFlight, again.State)

	_, err = store.Reserve(ctx, key, "fp-2", fixedTime, time.Hour)
	assert.ErrorIs(t, err, ErrFingerprintMismatch)

	header := http.Header{"Content-Type": {"application/json"}, "Content-Length": {"17"}}
	require.NoError(t, store.Complete(ctx, key, "fp-1", Response{Status: http.StatusCreated, Header: header, Body: []byte(`{"order":"PFS-1"}`)}, fixedTime, time.Hour))

	replay, err := store.Reserve(ctx, key, "fp-1", fixedTime, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, StateReplay, replay.State)
	assert.Equal(t, http.StatusCreated, replay.Record.Response.Status)
	assert.Equal(t, `{"order":"PFS-1"}`, string(replay.Record.Response.Body))
	assert.Equal(t, "application/json", replay.Record.Response.Header.Get("Content-Type"))
	assert.Empty(t, replay.Record.Response.Header.Get("Content-Length"))

	require.NoError(t, store.Release(ctx, key))
	assert.False(t, server.Exists(defaultRedisPrefix+storageID(key)))
}

func TestRedisStoreEntriesExpire(t *testing.T) {
	store, server := newTestRedisStore(t)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "client:c1|order-2", "fp", fixedTime, time.Minute)
	require.NoError(t, err)

	server.FastForward(2 * time.Minute)

	res, err := store.Reserve(ctx, "client:c1|order-2", "other", fixedTime.Add(2*time.Minute), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StateNew, res.State)

	removed, err := store.CleanupExpired(ctx, fixedTime, 10)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestRedisStoreWorksWithMiddleware(t *testing.T) {
	store, _ := newTestRedisStore(t)
	handler := &countingHandler{status: http.StatusCreated}
	mw := Middleware(store)(handler)

	for i := 0; i < 2; i++ {
		mw.ServeHTTP(httptest.NewRecorder(), checkoutRequest("order-3", "c1", `{"currency":"UAH"}`))
	}
	assert.EqualValues(t, 1, handler.calls.Load())
}
