package ports

import (
	"context"

	"github.com/nabolaget/vibbobridge/internal/domain"
)

// SnapshotPublisher pushes a freshly built snapshot to an external consumer
// (webhook endpoint, pub/sub channel). Publish errors are logged by the
// poller, never failed on; the snapshot itself is already committed.
type SnapshotPublisher interface {
	Publish(ctx context.Context, snapshot domain.FeedSnapshot) error
}
