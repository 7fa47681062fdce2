package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type level struct {
	Quantity int `json:"quantity"`
}

func TestFetchJSONCachesLoaderResult(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewJSONCache(client, time.Minute)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return level{Quantity: 5}, nil
	}

	var got level
	require.NoError(t, c.FetchJSON(ctx, "k", &got, loader))
	require.Equal(t, 5, got.Quantity)
	require.NoError(t, c.FetchJSON(ctx, "k", &got, loader))
	require.Equal(t, 1, calls)
	require.True(t, mr.Exists("k"))

	require.NoError(t, c.Delete(ctx, "k"))
	require.False(t, mr.Exists("k"))
	require.NoError(t, c.FetchJSON(ctx, "k", &got, loader))
	require.Equal(t, 2, calls)
}

func TestFetchJSONDoesNotCacheErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewJSONCache(client, time.Minute)
	boom := errors.New("boom")
	var got level
	err := c.FetchJSON(context.Background(), "k", &got, func(context.Context) (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("k"))
}

func TestFetchJSONWithoutClientCallsLoader(t *testing.T) {
	var c *JSONCache
	var got level
	require.NoError(t, c.FetchJSON(context.Background(), "k", &got, func(context.Context) (any, error) {
		return level{Quantity: 2}, nil
	}))
	require.Equal(t, 2, got.Quantity)
	require.NoError(t, c.Delete(context.Background(), "k"))
}

func TestFetchJSONSharedLoadSurvivesCancelledCaller(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewJSONCache(client, time.Minute)
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	loader := func(ctx context.Context) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return level{Quantity: 7}, nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		var got level
		firstErr <- c.FetchJSON(ctx, "k", &got, loader)
	}()
	<-started
	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	require.Eventually(t, func() bool { return mr.Exists("k") }, time.Second, 10*time.Millisecond)

	var got level
	require.NoError(t, c.FetchJSON(context.Background(), "k", &got, loader))
	require.Equal(t, 7, got.Quantity)
}

func TestFetchJSONFallsBackToLoaderWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	c := NewJSONCache(client, time.Minute).WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	var got level
	err = c.FetchJSON(context.Background(), "k", &got, func(context.Context) (any, error) {
		return level{Quantity: 3}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, got.Quantity)
}
