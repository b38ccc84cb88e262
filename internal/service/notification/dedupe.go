package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"activity-hub/internal/repository"
)

const dedupePrefix = "notif:dedupe:"

// Deduper decides whether a keyed notification may be delivered now.
type Deduper interface {
	// Claim reports true the first time key is seen within window.
	Claim(ctx context.Context, key string, window time.Duration) (bool, error)
	// Release drops a claim whose notification was never stored.
	Release(ctx context.Context, key string) error
}

// RedisDeduper claims keys with SET NX and falls back to the notifications
// table when Redis is missing or failing.
type RedisDeduper struct {
	client *redis.Client
	repo   repository.NotificationRepository
	now    func() time.Time
	logger *slog.Logger
}

func NewRedisDeduper(client *redis.Client, repo repository.NotificationRepository, logger *slog.Logger) *RedisDeduper {
	return &RedisDeduper{client: client, repo: repo, now: time.Now, logger: logger}
}

func (d *RedisDeduper) Claim(ctx context.Context, key string, window time.Duration) (bool, error) {
	if d.client != nil {
		ok, err := d.client.SetNX(ctx, dedupePrefix+key, 1, window).Result()
		if err == nil {
			return ok, nil
		}
		d.logger.Warn("redis dedupe failed, using database", "key", key, "error", err)
	}

	exists, err := d.repo.ExistsSince(ctx, key, d.now().Add(-window))
	if err != nil {
		return false, fmt.Errorf("dedupe lookup: %w", err)
	}
	return !exists, nil
}

// Release deletes the Redis claim. The database fallback keys off stored
// rows, so there is nothing to undo there.
func (d *RedisDeduper) Release(ctx context.Context, key string) error {
	if d.client == nil {
		return nil
	}
	if err := d.client.Del(ctx, dedupePrefix+key).Err(); err != nil {
		return fmt.Errorf("release dedupe key: %w", err)
	}
	return nil
}
