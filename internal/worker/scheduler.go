package worker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jimdaga/weather-tracker/internal/config"
)

// StartScheduler registers the periodic fan-out task and starts the asynq
// Scheduler. Returns a stop function for graceful shutdown.
func StartScheduler(cfg *config.Config, logger *slog.Logger) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
			Logger:   &asynqLogger{logger: logger},
			PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
				if err != nil {
					logger.Error("Failed to enqueue scheduled refresh", "error", err.Error())
					return
				}
				logger.Debug("Scheduled refresh enqueued", "task_id", info.ID)
			},
		},
	)

	entryID, err := scheduler.Register(cfg.RefreshSchedule, NewRefreshAllTask())
	if err != nil {
		return nil, fmt.Errorf("failed to register refresh schedule: %w", err)
	}

	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info("Scheduler started", "schedule", cfg.RefreshSchedule, "entry_id", entryID)

	return func() { scheduler.Shutdown() }, nil
}
