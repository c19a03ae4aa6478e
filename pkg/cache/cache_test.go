package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/config"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var out map[string]int
	hit, err := m.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, m.Set(ctx, "k", map[string]int{"a": 1}, 0))
	hit, err = m.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, out["a"])

	require.NoError(t, m.Del(ctx, "k"))
	hit, _ = m.Get(ctx, "k", &out)
	assert.False(t, hit)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(func() time.Time { return now })

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))

	var v string
	hit, _ := m.Get(ctx, "k", &v)
	assert.True(t, hit)

	now = now.Add(time.Minute)
	hit, _ = m.Get(ctx, "k", &v)
	assert.False(t, hit)
}

func TestMemorySetNX(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(func() time.Time { return now })

	ok, err := m.SetNX(ctx, "evt_1", 1, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.SetNX(ctx, "evt_1", 1, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Hour)
	ok, _ = m.SetNX(ctx, "evt_1", 1, time.Hour)
	assert.True(t, ok, "expired key can be claimed again")
}

func TestMemorySetNXConcurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var won int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := m.SetNX(ctx, "once", true, time.Minute); ok {
				atomic.AddInt32(&won, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), won)
}

func TestConnectWithoutAddrFallsBackToMemory(t *testing.T) {
	s, err := Connect(context.Background(), config.Redis{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
	assert.NoError(t, Close(s))
}
