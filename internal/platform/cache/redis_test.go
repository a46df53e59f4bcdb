package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name string `json:"name"`
	Qty  int64  `json:"qty"`
}

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, time.Minute), mr
}

func TestFetchJSONPopulatesAndReuses(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return payload{Name: "bearing", Qty: 50}, nil
	}

	var first payload
	require.NoError(t, store.FetchJSON(ctx, "stock:items:1", &first, loader))
	require.Equal(t, int64(50), first.Qty)
	require.Equal(t, 1, calls)

	var second payload
	require.NoError(t, store.FetchJSON(ctx, "stock:items:1", &second, loader))
	require.Equal(t, first, second)
	require.Equal(t, 1, calls, "second read must come from cache")
}

func TestFetchJSONPropagatesLoaderError(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	wantErr := errors.New("stock query failed")
	var out payload
	err := store.FetchJSON(ctx, "stock:items:2", &out, func(context.Context) (any, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)
}

func TestInvalidateDropsMatchingPrefix(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	loader := func(context.Context) (any, error) {
		return payload{Name: "pump", Qty: 4}, nil
	}
	var out payload
	require.NoError(t, store.FetchJSON(ctx, "stock:items:1", &out, loader))
	require.NoError(t, store.FetchJSON(ctx, "stock:locations:10", &out, loader))

	require.NoError(t, store.Invalidate(ctx, "stock:items:"))
	require.False(t, mr.Exists("stock:items:1"))
	require.True(t, mr.Exists("stock:locations:10"))
}

func TestNilStoreFallsThroughToLoader(t *testing.T) {
	var store *Store
	ctx := context.Background()

	var out payload
	require.NoError(t, store.FetchJSON(ctx, "anything", &out, func(context.Context) (any, error) {
		return payload{Name: "belt", Qty: 20}, nil
	}))
	require.Equal(t, "belt", out.Name)
	require.NoError(t, store.Invalidate(ctx, "anything"))
}
