// Package publish pushes live stats updates to Redis: a keyed snapshot
// with a short TTL for pollers plus a pub/sub fan-out for subscribers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hlstatsd/hlstatsd/internal/models"
)

const (
	// Channel carries every stats update. At-least-once.
	Channel = "hlstats:live"

	liveTTL = 5 * time.Minute
)

// liveKey is where the latest snapshot for a server is kept.
func liveKey(serverID int32) string {
	return fmt.Sprintf("live:server:%d", serverID)
}

// Redis publishes stats updates through a single pipeline round trip.
type Redis struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

func NewRedis(client *redis.Client, logger *zap.SugaredLogger) *Redis {
	return &Redis{client: client, logger: logger}
}

// Publish writes the keyed snapshot and broadcasts the update.
func (p *Redis) Publish(ctx context.Context, update *models.StatsUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal stats update: %w", err)
	}

	pipe := p.client.Pipeline()
	pipe.Set(ctx, liveKey(update.ServerID), data, liveTTL)
	pipe.Publish(ctx, Channel, data)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return fmt.Errorf("publish stats update: %w", err)
	}
	return nil
}

// Ping probes the connection. Used by readiness checks.
func (p *Redis) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
