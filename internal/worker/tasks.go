package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TaskFetchCityWeather = "weather:fetch_city"
	TaskRefreshAllCities = "weather:refresh_all"
)

const (
	fetchTaskTimeout   = time.Minute
	refreshTaskTimeout = 5 * time.Minute
	taskRetention      = 24 * time.Hour
)

// FetchCityPayload is the payload of a TaskFetchCityWeather task
type FetchCityPayload struct {
	CityID  uint   `json:"city_id"`
	BatchID string `json:"batch_id,omitempty"`
}

// NewFetchCityTask builds a per-city fetch task. The queue retries it at most
// MaxRetries times; the delay between attempts comes from the job's outcome.
func NewFetchCityTask(cityID uint, batchID string) (*asynq.Task, error) {
	payload, err := json.Marshal(FetchCityPayload{CityID: cityID, BatchID: batchID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskFetchCityWeather,
		payload,
		asynq.MaxRetry(MaxRetries),
		asynq.Timeout(fetchTaskTimeout),
		asynq.Retention(taskRetention),
	), nil
}

// NewRefreshAllTask builds the periodic fan-out task. It never retries.
func NewRefreshAllTask() *asynq.Task {
	return asynq.NewTask(
		TaskRefreshAllCities,
		nil, // handler lists every city itself
		asynq.MaxRetry(0),
		asynq.Timeout(refreshTaskTimeout),
		asynq.Retention(taskRetention),
	)
}

// Client enqueues fetch tasks
type Client struct {
	client *asynq.Client
}

// NewClient connects an asynq client to redisURL
func NewClient(redisURL string) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Client{client: asynq.NewClient(opt)}, nil
}

// Close closes the underlying connection
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueFetchCity submits one fetch job for cityID and returns its task id
func (c *Client) EnqueueFetchCity(ctx context.Context, cityID uint) (string, error) {
	return c.EnqueueFetchCityBatch(ctx, cityID, "")
}

// EnqueueFetchCityBatch submits one fetch job tagged with a fan-out batch id
func (c *Client) EnqueueFetchCityBatch(ctx context.Context, cityID uint, batchID string) (string, error) {
	task, err := NewFetchCityTask(cityID, batchID)
	if err != nil {
		return "", fmt.Errorf("failed to build fetch task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task, asynq.TaskID(uuid.NewString()))
	if err != nil {
		return "", fmt.Errorf("failed to enqueue fetch for city %d: %w", cityID, err)
	}
	return info.ID, nil
}
