package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/taoyao-code/port-poller/internal/coremodel"
	"github.com/taoyao-code/port-poller/internal/snapshot"
)

// ErrNoStatus 尚未发布过状态文档
var ErrNoStatus = errors.New("no status published")

// StatusPublisher 把最新状态文档写入固定 key，并在 channel 上通知更新。
// 与状态文件内容一致，整体替换。
type StatusPublisher struct {
	client  redis.UniversalClient
	key     string
	channel string
}

// NewStatusPublisher channel 为空时只写 key
func NewStatusPublisher(client redis.UniversalClient, key, channel string) *StatusPublisher {
	return &StatusPublisher{client: client, key: key, channel: channel}
}

// PublishStatus SET key + PUBLISH channel，同一个 pipeline 内完成
func (p *StatusPublisher) PublishStatus(ctx context.Context, doc coremodel.StatusDocument) error {
	data, err := snapshot.Encode(doc)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, p.key, data, 0)
	if p.channel != "" {
		pipe.Publish(ctx, p.channel, p.key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish status to redis: %w", err)
	}
	return nil
}

// LatestStatus 读取最近一次发布的状态文档；key 不存在时返回 ErrNoStatus
func (p *StatusPublisher) LatestStatus(ctx context.Context) (coremodel.StatusDocument, error) {
	b, err := p.client.Get(ctx, p.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoStatus
	}
	if err != nil {
		return nil, fmt.Errorf("get status from redis: %w", err)
	}
	return snapshot.Decode(b)
}
