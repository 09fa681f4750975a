package api

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// NotificationFeed 订阅用户通知频道。Subscribe 返回时订阅已生效，
// 之后发布的消息都会出现在 Subscription.Channel 中。
type NotificationFeed interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription 是 *redis.PubSub 在推送链路上用到的部分。
type Subscription interface {
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

// RedisFeed 基于 Redis Pub/Sub，与 worker 的 Publish 对应。
type RedisFeed struct {
	client *redis.Client
}

func NewRedisFeed(client *redis.Client) RedisFeed {
	return RedisFeed{client: client}
}

func (f RedisFeed) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	pubsub := f.client.Subscribe(ctx, channel)
	// 等到订阅确认，保证随后读取的快照不会漏掉并发发布的通知。
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	return pubsub, nil
}
