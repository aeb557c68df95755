package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stats struct {
	Total int `json:"total"`
}

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() {
		_ = client.Close()
		SetClient(nil)
	})
	return mr
}

func TestAside_LoadsOnceThenServesFromCache(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()
	var calls int32
	load := func(context.Context) (stats, error) {
		atomic.AddInt32(&calls, 1)
		return stats{Total: 4}, nil
	}

	got, err := Aside(ctx, CommunityStatsKey, StatsTTL, load)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Total)
	assert.True(t, mr.Exists(CommunityStatsKey))

	got, err = Aside(ctx, CommunityStatsKey, StatsTTL, load)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Total)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	InvalidateCommunity(ctx)
	assert.False(t, mr.Exists(CommunityStatsKey))
}

func TestAside_NoClientAlwaysLoads(t *testing.T) {
	SetClient(nil)
	var calls int
	for i := 0; i < 2; i++ {
		_, err := Aside(context.Background(), TicketStatsKey, StatsTTL, func(context.Context) (stats, error) {
			calls++
			return stats{}, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestAside_LoadErrorIsNotCached(t *testing.T) {
	mr := withMiniredis(t)
	_, err := Aside(context.Background(), TicketStatsKey, StatsTTL, func(context.Context) (stats, error) {
		return stats{}, errors.New("db down")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists(TicketStatsKey))
}

func TestAside_ConcurrentMissesShareLoad(t *testing.T) {
	withMiniredis(t)
	var calls int32
	release := make(chan struct{})
	load := func(context.Context) (stats, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return stats{Total: 1}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Aside(context.Background(), UserActivityKey(3), UserActivityTTL, load)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
