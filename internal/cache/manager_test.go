package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/config"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := Config{
		Addr:       mr.Addr(),
		KeyPrefix:  "test:",
		DefaultTTL: time.Minute,
	}

	manager, err := NewManager(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestNewManager(t *testing.T) {
	_, manager := setupTestRedis(t)
	assert.NoError(t, manager.Ping(context.Background()))
}

func TestNewManager_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewManager(Config{Addr: addr}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestManager_SetAndGet(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "k", []byte("v"), 0))

	got, err := manager.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestManager_GetMiss(t *testing.T) {
	_, manager := setupTestRedis(t)

	_, err := manager.Get(context.Background(), "absent")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_DefaultTTL(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "k", []byte("v"), 0))
	assert.Equal(t, time.Minute, mr.TTL("k"))

	require.NoError(t, manager.Set(ctx, "short", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)
	_, err := manager.Get(ctx, "short")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_ReportRoundTrip(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	assert.Equal(t, "test:report:j1:json", manager.ReportKey("j1", "json"))

	_, err := manager.GetReport(ctx, "j1", "json")
	assert.True(t, IsCacheMiss(err))

	require.NoError(t, manager.SetReport(ctx, "j1", "json", []byte(`{"id":"j1"}`)))
	require.NoError(t, manager.SetReport(ctx, "j1", "dot", []byte("digraph {}")))
	require.NoError(t, manager.SetReport(ctx, "j2", "json", []byte(`{"id":"j2"}`)))

	got, err := manager.GetReport(ctx, "j1", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"j1"}`, string(got))
	assert.True(t, mr.Exists("test:report:j1:dot"))

	require.NoError(t, manager.InvalidateJourney(ctx, "j1"))
	assert.False(t, mr.Exists("test:report:j1:json"))
	assert.False(t, mr.Exists("test:report:j1:dot"))
	assert.True(t, mr.Exists("test:report:j2:json"))
}

func TestManager_InvalidateNothing(t *testing.T) {
	_, manager := setupTestRedis(t)
	assert.NoError(t, manager.InvalidateJourney(context.Background(), "none"))
}

func TestManager_Closed(t *testing.T) {
	mr := miniredis.RunT(t)
	manager, err := NewManager(Config{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	ctx := context.Background()
	assert.Error(t, manager.Set(ctx, "k", []byte("v"), 0))
	_, err = manager.Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, manager.Ping(ctx))
}

func TestManager_HealthCheckLoopStops(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	manager, err := NewManagerWithClient(client, Config{HealthCheckInterval: 10 * time.Millisecond}, nil)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, manager.Close())
}

func TestManager_ConcurrentOperations(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			assert.NoError(t, manager.SetReport(ctx, id, "json", []byte(id)))
			got, err := manager.GetReport(ctx, id, "json")
			assert.NoError(t, err)
			assert.Equal(t, []byte(id), got)
		}(i)
	}
	wg.Wait()
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.CacheConfig{Addr: "r:6379", DB: 2, TTL: 5 * time.Minute})
	assert.Equal(t, "r:6379", cfg.Addr)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, 5*time.Minute, cfg.DefaultTTL)
	assert.Equal(t, "shopper:", cfg.KeyPrefix)

	cfg = ConfigFrom(config.CacheConfig{KeyPrefix: "x:"})
	assert.Equal(t, "x:", cfg.KeyPrefix)
	assert.Equal(t, time.Hour, cfg.DefaultTTL)
}
