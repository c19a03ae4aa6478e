package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/config"
)

func testConfig(t *testing.T, extra map[string]string) config.Config {
	t.Helper()
	values := map[string]string{"DATABASE_DSN": "file::memory:"}
	for k, v := range extra {
		values[k] = v
	}
	cfg, err := config.Parse(values)
	require.NoError(t, err)
	return cfg
}

func TestBootAndClose(t *testing.T) {
	a, err := Boot(context.Background(), testConfig(t, nil))
	require.NoError(t, err)

	assert.NotNil(t, a.Kernel)
	assert.NotNil(t, a.Reconcile)
	assert.NotEmpty(t, a.Kernel.Routes())
	assert.Len(t, a.Scheduler().List(), 1)

	require.NoError(t, a.Close())
}

func TestBootRedisQueueNeedsRedis(t *testing.T) {
	_, err := Boot(context.Background(), testConfig(t, map[string]string{"QUEUE_DRIVER": "redis"}))
	assert.ErrorContains(t, err, "REDIS_ADDR")
}

func TestSchedulerSkipsDisabledSweep(t *testing.T) {
	a := &App{Config: testConfig(t, map[string]string{"RECONCILE_INTERVAL": "0s"})}
	assert.Empty(t, a.Scheduler().List())
}
