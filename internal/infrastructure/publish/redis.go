package publish

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/nabolaget/vibbobridge/internal/application/ports"
	"github.com/nabolaget/vibbobridge/internal/domain"
)

// RedisPublisher publishes each snapshot to a per-organization pub/sub
// channel so dashboard clients can subscribe instead of polling the bridge.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

func NewRedisPublisher(client *redis.Client, channelPrefix string) *RedisPublisher {
	if channelPrefix == "" {
		channelPrefix = "vibbo:feed:"
	}
	return &RedisPublisher{client: client, prefix: channelPrefix}
}

func (p *RedisPublisher) Publish(ctx context.Context, snapshot domain.FeedSnapshot) error {
	body, err := json.Marshal(snapshotPayload(snapshot))
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.prefix+snapshot.OrgSlug, body).Err()
}

var _ ports.SnapshotPublisher = (*RedisPublisher)(nil)
