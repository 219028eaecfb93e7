package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/port-poller/internal/coremodel"
)

// 使用测试用Redis客户端（需要真实Redis实例）
func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // 使用测试专用数据库
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping test")
		return nil
	}

	client.FlushDB(ctx)
	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})
	return client
}

func TestStatusPublisher_SetAndNotify(t *testing.T) {
	client := setupTestRedis(t)
	if client == nil {
		return
	}
	ctx := context.Background()

	sub := client.Subscribe(ctx, "test:status:updated")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewStatusPublisher(client, "test:status", "test:status:updated")
	_, err = pub.LatestStatus(ctx)
	assert.ErrorIs(t, err, ErrNoStatus)

	doc := coremodel.StatusDocument{{ID: 423297, Name: "桩1", UpdatedAt: "2026-10-19 12:00:00"}}
	require.NoError(t, pub.PublishStatus(ctx, doc))

	got, err := pub.LatestStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "test:status", msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no update notification")
	}
}

func TestStatusPublisher_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	err := NewStatusPublisher(client, "k", "").PublishStatus(context.Background(), coremodel.StatusDocument{})
	assert.Error(t, err)
}
