package streams

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher appends weather updates to a Redis Stream
type Publisher struct {
	rdb    *redis.Client
	stream string
}

// NewPublisher connects to redisURL and publishes to StreamWeatherUpdates
func NewPublisher(redisURL string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return NewPublisherWithClient(redis.NewClient(opts)), nil
}

// NewPublisherWithClient publishes through an existing client
func NewPublisherWithClient(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb, stream: StreamWeatherUpdates}
}

// PublishWeatherUpdate adds update to the stream and returns the entry id
func (p *Publisher) PublishWeatherUpdate(ctx context.Context, update WeatherUpdate) (string, error) {
	payload, err := json.Marshal(update)
	if err != nil {
		return "", fmt.Errorf("failed to marshal update: %w", err)
	}

	result := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload":        string(payload),
			"published_at":   time.Now().Unix(),
			"schema_version": SchemaVersionV1,
		},
	})
	if err := result.Err(); err != nil {
		return "", fmt.Errorf("failed to publish to stream: %w", err)
	}

	return result.Val(), nil
}

// Close closes the Redis client connection
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
