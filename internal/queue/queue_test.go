package queue

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/sms-verify/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Use unique connection name per test to avoid global adapter caching issues
	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func testConfig(name string) QueueConfig {
	return QueueConfig{
		Name:              name,
		ConsumerGroup:     "test-group",
		ConsumerName:      "test-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      50 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
	}
}

func TestQueue_PublishAndConsume(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue, err := NewQueue(adapter, testConfig("audit:events"))
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	ctx := context.Background()
	_, err = queue.PublishJSON(ctx, map[string]string{"event_type": "sms_request"}, map[string]string{"type": "sms_request"})
	require.NoError(t, err)

	received := make(chan *Message, 1)
	require.NoError(t, queue.Consume(func(ctx context.Context, msg *Message) error {
		received <- msg
		return nil
	}))

	select {
	case msg := <-received:
		var data map[string]string
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		assert.Equal(t, "sms_request", data["event_type"])
		assert.Equal(t, "sms_request", msg.Metadata["type"])
		assert.WithinDuration(t, time.Now(), msg.Timestamp, 5*time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}

	require.Eventually(t, func() bool {
		stats, err := queue.GetStats(ctx)
		return err == nil && stats.PendingMessages == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestQueue_ReopenExistingGroup(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	q1, err := NewQueue(adapter, testConfig("audit:events"))
	require.NoError(t, err)
	defer q1.Stop(time.Second)

	q2, err := NewQueue(adapter, testConfig("audit:events"))
	require.NoError(t, err, "an existing consumer group is not an error")
	defer q2.Stop(time.Second)
}

func TestQueue_FailingMessageEndsInDeadLetter(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	cfg := testConfig("audit:retry")
	cfg.MaxRetries = 2
	cfg.VisibilityTimeout = 100 * time.Millisecond
	cfg.PollInterval = 20 * time.Millisecond
	cfg.EnableDLQ = true

	queue, err := NewQueue(adapter, cfg)
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	ctx := context.Background()
	_, err = queue.PublishJSON(ctx, map[string]string{"test": "retry"}, map[string]string{"type": "x"})
	require.NoError(t, err)

	var attempts atomic.Int32
	require.NoError(t, queue.Consume(func(ctx context.Context, msg *Message) error {
		attempts.Add(1)
		return assert.AnError
	}))

	require.Eventually(t, func() bool {
		n, err := adapter.XLen(ctx, "audit:retry:dlq")
		return err == nil && n == 1
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, int32(2), attempts.Load())

	stats, err := queue.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.PendingMessages)
}

func TestQueue_RetrySucceeds(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	cfg := testConfig("audit:flaky")
	cfg.VisibilityTimeout = 100 * time.Millisecond
	cfg.PollInterval = 20 * time.Millisecond

	queue, err := NewQueue(adapter, cfg)
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	_, err = queue.Publish(context.Background(), []byte(`{}`), nil)
	require.NoError(t, err)

	var attempts atomic.Int32
	done := make(chan struct{})
	require.NoError(t, queue.Consume(func(ctx context.Context, msg *Message) error {
		if attempts.Add(1) == 1 {
			return assert.AnError
		}
		close(done)
		return nil
	}))

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("message was not redelivered")
	}
}

func TestQueue_GetStats(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue, err := NewQueue(adapter, testConfig("test:stats:queue"))
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := queue.PublishJSON(ctx, map[string]int{"count": i}, nil)
		require.NoError(t, err)
	}

	stats, err := queue.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.TotalMessages)
}

func TestMessage_AckNack(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue, err := NewQueue(adapter, testConfig("test:ack:queue"))
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	t.Run("ack marks message as processed", func(t *testing.T) {
		msgID, err := queue.Publish(context.Background(), []byte(`{"test":"data"}`), nil)
		require.NoError(t, err)

		msg := &Message{ID: msgID, queue: queue}
		assert.NoError(t, msg.Ack())
		assert.True(t, msg.acked)
		assert.False(t, msg.nacked)
	})

	t.Run("nack marks message for retry", func(t *testing.T) {
		msg := &Message{ID: "test-2", queue: queue}
		assert.NoError(t, msg.Nack())
		assert.True(t, msg.nacked)
	})

	t.Run("cannot ack already acked message", func(t *testing.T) {
		msg := &Message{ID: "test-3", acked: true}
		err := msg.Ack()
		assert.ErrorContains(t, err, "already acknowledged")
	})

	t.Run("cannot nack already nacked message", func(t *testing.T) {
		msg := &Message{ID: "test-4", nacked: true}
		err := msg.Nack()
		assert.ErrorContains(t, err, "already rejected")
	})
}

func TestQueueConfig_Validation(t *testing.T) {
	_, adapter := setupTestRedis(t)

	_, err := NewQueue(adapter, QueueConfig{})
	assert.Error(t, err)

	queue, err := NewQueue(adapter, QueueConfig{Name: "defaults"})
	require.NoError(t, err)
	defer queue.Stop(time.Second)
	assert.Equal(t, "default-group", queue.config.ConsumerGroup)
	assert.Equal(t, 3, queue.config.MaxRetries)
	assert.Equal(t, int64(10), queue.config.BatchSize)
}

func TestQueue_ConcurrentPublish(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue, err := NewQueue(adapter, testConfig("test:concurrent:queue"))
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	ctx := context.Background()
	numGoroutines := 10
	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			_, err := queue.PublishJSON(ctx, map[string]int{"id": id}, nil)
			assert.NoError(t, err)
			done <- true
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	stats, err := queue.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(numGoroutines), stats.TotalMessages)
}

func TestQueue_Stop(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue, err := NewQueue(adapter, testConfig("test:stop:queue"))
	require.NoError(t, err)

	require.NoError(t, queue.Consume(func(ctx context.Context, msg *Message) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	}))

	assert.NoError(t, queue.Stop(2*time.Second))
}
