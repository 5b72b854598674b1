package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jimdaga/weather-tracker/internal/config"
)

const shutdownTimeout = 30 * time.Second

// RetryError asks the queue to run the task again after Delay
type RetryError struct {
	Delay time.Duration
	Err   error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry in %s: %v", e.Delay, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// OutcomeRecorder counts fetch job outcomes
type OutcomeRecorder interface {
	FetchJob(outcome string)
}

// Handlers binds the fetch job and the dispatcher to asynq task types
type Handlers struct {
	job        *FetchJob
	dispatcher *Dispatcher
	recorder   OutcomeRecorder
	logger     *slog.Logger
}

// NewHandlers creates the task handlers. recorder may be nil.
func NewHandlers(job *FetchJob, dispatcher *Dispatcher, recorder OutcomeRecorder, logger *slog.Logger) *Handlers {
	return &Handlers{job: job, dispatcher: dispatcher, recorder: recorder, logger: logger}
}

// Mux routes task types to their handlers
func (h *Handlers) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskFetchCityWeather, h.handleFetchCityWeather)
	mux.HandleFunc(TaskRefreshAllCities, h.handleRefreshAllCities)
	return mux
}

// handleFetchCityWeather runs one attempt of the per-city job and turns its
// Outcome into what asynq expects: nil, a RetryError or a SkipRetry error.
func (h *Handlers) handleFetchCityWeather(ctx context.Context, task *asynq.Task) error {
	var payload FetchCityPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.CityID == 0 {
		return fmt.Errorf("invalid payload: missing city_id: %w", asynq.SkipRetry)
	}

	attempt, _ := asynq.GetRetryCount(ctx)
	taskID, _ := asynq.GetTaskID(ctx)

	h.logger.Debug("Processing weather:fetch_city task",
		"task_id", taskID,
		"city_id", payload.CityID,
		"batch_id", payload.BatchID,
		"attempt", attempt,
	)

	outcome := h.job.Run(ctx, payload.CityID, attempt)
	if h.recorder != nil {
		h.recorder.FetchJob(outcome.Kind.String())
	}
	return resolveOutcome(task, outcome)
}

func resolveOutcome(task *asynq.Task, outcome Outcome) error {
	switch outcome.Kind {
	case OutcomeSuccess:
		result := map[string]interface{}{"status": "ok", "city_id": outcome.CityID}
		if outcome.Report != nil {
			result["city"] = outcome.Report.City
			result["temp"] = outcome.Report.Temp
			result["desc"] = outcome.Report.Description
		}
		writeResult(task, result)
		return nil
	case OutcomeMissing:
		writeResult(task, map[string]interface{}{"status": "missing", "city_id": outcome.CityID})
		return nil
	case OutcomeRetry:
		return &RetryError{Delay: outcome.Delay, Err: outcome.Err}
	case OutcomePermanent:
		return fmt.Errorf("%w: %w", outcome.Err, asynq.SkipRetry)
	default:
		return fmt.Errorf("unknown outcome %d: %w", outcome.Kind, asynq.SkipRetry)
	}
}

// handleRefreshAllCities runs the fan-out dispatcher. It never retries.
func (h *Handlers) handleRefreshAllCities(ctx context.Context, task *asynq.Task) error {
	result, err := h.dispatcher.Dispatch(ctx)
	if result.Status != "" {
		writeResult(task, result)
	}
	if err != nil {
		return fmt.Errorf("refresh all cities: %v: %w", err, asynq.SkipRetry)
	}
	return nil
}

// writeResult stores a JSON result on tasks that come from a live queue
func writeResult(task *asynq.Task, v interface{}) {
	rw := task.ResultWriter()
	if rw == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = rw.Write(data)
}

// retryDelay honours the delay chosen by the job and falls back to the same
// backoff curve for errors raised outside it (panics recovered by asynq).
func retryDelay(n int, err error, _ *asynq.Task) time.Duration {
	var retryErr *RetryError
	if errors.As(err, &retryErr) {
		return retryErr.Delay
	}
	return Backoff(n)
}

// Start starts the worker server in the background and returns a stop function
// so the caller can coordinate shutdown.
func Start(cfg *config.Config, handlers *Handlers, logger *slog.Logger) (stop func(), err error) {
	srv, err := newServer(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(handlers.Mux()); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return func() { srv.Shutdown() }, nil
}

func newServer(cfg *config.Config, logger *slog.Logger) (*asynq.Server, error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     cfg.WorkerConcurrency,
			ShutdownTimeout: shutdownTimeout,
			RetryDelayFunc:  retryDelay,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
			Logger:          &asynqLogger{logger: logger},
			LogLevel:        asynq.InfoLevel,
		},
	)

	logger.Info("Worker starting", "concurrency", cfg.WorkerConcurrency)
	return srv, nil
}

// makeErrorHandler logs failed executions and tasks that will be archived
func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		var retryErr *RetryError
		if errors.As(err, &retryErr) {
			logger.Debug("Task scheduled for retry",
				"task_type", task.Type(),
				"retry_count", retried,
				"retry_in", retryErr.Delay.String(),
			)
			return
		}

		logger.Error(
			"Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)

		if errors.Is(err, asynq.SkipRetry) || retried >= maxRetry {
			logger.Error(
				"Task archived as dead",
				"task_type", task.Type(),
				"payload", string(task.Payload()),
			)
		}
	}
}
