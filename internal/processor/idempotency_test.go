package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/sms-verify/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	t.Helper()
	mr := miniredis.RunT(t)

	// adapters are cached by name, keep them unique per test
	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "test:", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	return mr, adapter
}

func TestIdempotencyService_AcquireProcessingLock_FirstAttempt(t *testing.T) {
	_, adapter := setupTestRedis(t)
	service := NewIdempotencyService(adapter, DefaultIdempotencyConfig())

	procCtx, err := service.AcquireProcessingLock(context.Background(), "payment:paystack:ref-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if procCtx.Key != "payment:paystack:ref-1" {
		t.Errorf("unexpected key %s", procCtx.Key)
	}
	if procCtx.RetryCount != 0 || procCtx.IsRetry {
		t.Errorf("first attempt should not be a retry, got %d", procCtx.RetryCount)
	}
	if !procCtx.Held() {
		t.Error("Expected lock to be acquired")
	}
}

func TestIdempotencyService_AcquireProcessingLock_Concurrent(t *testing.T) {
	_, adapter := setupTestRedis(t)
	service := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	first, err := service.AcquireProcessingLock(ctx, "k")
	require.NoError(t, err)

	second, err := service.AcquireProcessingLock(ctx, "k")
	assert.ErrorIs(t, err, ErrLockAcquireFailed)
	assert.Nil(t, second)
	assert.True(t, first.Held())
}

func TestIdempotencyService_MarkSuccess(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	service := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	procCtx, err := service.AcquireProcessingLock(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, service.MarkSuccess(ctx, procCtx))

	assert.False(t, procCtx.Held())
	assert.False(t, mr.Exists("test:lock:k"))
	assert.True(t, mr.Exists("test:processed:k"))

	processed, err := service.IsProcessed(ctx, "k")
	require.NoError(t, err)
	assert.True(t, processed)

	again, err := service.AcquireProcessingLock(ctx, "k")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Nil(t, again)
}

func TestIdempotencyService_MarkFailure_WithRetry(t *testing.T) {
	_, adapter := setupTestRedis(t)
	config := DefaultIdempotencyConfig()
	config.MaxRetries = 3
	service := NewIdempotencyService(adapter, config)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		procCtx, err := service.AcquireProcessingLock(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, i, procCtx.RetryCount)
		assert.Equal(t, i > 0, procCtx.IsRetry)
		require.NoError(t, service.MarkFailure(ctx, procCtx, errors.New("boom")))
	}

	count, err := service.GetRetryCount(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIdempotencyService_MaxRetriesExceeded(t *testing.T) {
	_, adapter := setupTestRedis(t)
	config := DefaultIdempotencyConfig()
	config.MaxRetries = 1
	service := NewIdempotencyService(adapter, config)
	ctx := context.Background()

	procCtx, err := service.AcquireProcessingLock(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, service.MarkFailure(ctx, procCtx, errors.New("boom")))

	_, err = service.AcquireProcessingLock(ctx, "k")
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
}

func TestIdempotencyService_LockExpires(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	config := DefaultIdempotencyConfig()
	config.LockTTL = time.Second
	service := NewIdempotencyService(adapter, config)
	ctx := context.Background()

	_, err := service.AcquireProcessingLock(ctx, "k")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	procCtx, err := service.AcquireProcessingLock(ctx, "k")
	require.NoError(t, err)
	assert.True(t, procCtx.Held())
}

func TestIdempotencyService_ReleaseLock(t *testing.T) {
	_, adapter := setupTestRedis(t)
	service := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	assert.NoError(t, service.ReleaseLock(ctx, nil))

	procCtx, err := service.AcquireProcessingLock(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, service.ReleaseLock(ctx, procCtx))
	assert.False(t, procCtx.Held())

	_, err = service.AcquireProcessingLock(ctx, "k")
	assert.NoError(t, err)
}

func TestIdempotencyService_AcquireProcessingLock_StoreDown(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	service := NewIdempotencyService(adapter, DefaultIdempotencyConfig())

	mr.SetError("ERR redis unavailable")
	defer mr.SetError("")

	pc, err := service.AcquireProcessingLock(context.Background(), "payment:paystack:ref-down")
	assert.ErrorIs(t, err, ErrLockStoreDown)
	assert.NotErrorIs(t, err, ErrLockAcquireFailed)
	assert.Nil(t, pc)
}

func TestIdempotencyService_PaymentConfigHasNoRetryCap(t *testing.T) {
	_, adapter := setupTestRedis(t)
	service := NewIdempotencyService(adapter, PaymentIdempotencyConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		pc, err := service.AcquireProcessingLock(ctx, "payment:paystack:ref-flaky")
		require.NoError(t, err)
		require.NoError(t, service.MarkFailure(ctx, pc, errors.New("db down")))
	}

	pc, err := service.AcquireProcessingLock(ctx, "payment:paystack:ref-flaky")
	require.NoError(t, err)
	assert.Equal(t, 5, pc.RetryCount)
}
