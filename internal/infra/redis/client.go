package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/softscan/internal/core/domain"
)

const defaultChannelPrefix = "softscan:batch"

// Config holds Redis connection configuration.
type Config struct {
	URL           string `yaml:"url"`
	Password      string `yaml:"password"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

// Enabled reports whether a Redis URL was configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// publisher is the subset of the Redis API the emitter needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Client publishes batch events on Redis pub/sub so that remote consumers
// can follow a scan. Each batch gets its own channel.
type Client struct {
	rdb    publisher
	prefix string
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newClient(rdb, cfg.ChannelPrefix), nil
}

func newClient(rdb publisher, prefix string) *Client {
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	return &Client{rdb: rdb, prefix: prefix}
}

// Channel returns the pub/sub channel used for a batch.
func (c *Client) Channel(batchID string) string {
	return fmt.Sprintf("%s:%s", c.prefix, batchID)
}

// Emit publishes the event as JSON on the batch channel.
func (c *Client) Emit(ctx context.Context, event *domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := c.rdb.Publish(ctx, c.Channel(event.BatchID), payload).Err(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
