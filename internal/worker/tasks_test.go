package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pendingDefaultKey = "asynq:{default}:pending"

func newTestClient(t *testing.T) (*Client, *asynq.Inspector, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisURL := "redis://" + mr.Addr()

	client, err := NewClient(redisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	opt, err := asynq.ParseRedisURI(redisURL)
	require.NoError(t, err)
	inspector := asynq.NewInspector(opt)
	t.Cleanup(func() { _ = inspector.Close() })

	return client, inspector, mr
}

func TestEnqueueFetchCity(t *testing.T) {
	client, inspector, mr := newTestClient(t)

	taskID, err := client.EnqueueFetchCity(context.Background(), 42)
	require.NoError(t, err)

	_, err = uuid.Parse(taskID)
	assert.NoError(t, err, "task id should be a uuid")

	pending, err := mr.List(pendingDefaultKey)
	require.NoError(t, err)
	assert.Equal(t, []string{taskID}, pending)

	info, err := inspector.GetTaskInfo("default", taskID)
	require.NoError(t, err)
	assert.Equal(t, TaskFetchCityWeather, info.Type)
	assert.Equal(t, MaxRetries, info.MaxRetry)
	assert.Equal(t, fetchTaskTimeout, info.Timeout)
	assert.Equal(t, taskRetention, info.Retention)

	var payload FetchCityPayload
	require.NoError(t, json.Unmarshal(info.Payload, &payload))
	assert.Equal(t, uint(42), payload.CityID)
	assert.Empty(t, payload.BatchID)
}

func TestEnqueueFetchCityBatch(t *testing.T) {
	client, inspector, mr := newTestClient(t)
	ctx := context.Background()

	first, err := client.EnqueueFetchCityBatch(ctx, 1, "batch-7")
	require.NoError(t, err)
	second, err := client.EnqueueFetchCityBatch(ctx, 2, "batch-7")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	pending, err := mr.List(pendingDefaultKey)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first, second}, pending)

	info, err := inspector.GetTaskInfo("default", second)
	require.NoError(t, err)
	var payload FetchCityPayload
	require.NoError(t, json.Unmarshal(info.Payload, &payload))
	assert.Equal(t, uint(2), payload.CityID)
	assert.Equal(t, "batch-7", payload.BatchID)
}

func TestEnqueueFetchCityRedisDown(t *testing.T) {
	client, _, mr := newTestClient(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := client.EnqueueFetchCity(ctx, 42)
	assert.Error(t, err)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not-a-redis-url://")
	assert.Error(t, err)
}
