package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jimdaga/weather-tracker/internal/cities"
	"github.com/jimdaga/weather-tracker/internal/models"
	"github.com/jimdaga/weather-tracker/internal/notify"
	"github.com/jimdaga/weather-tracker/internal/streams"
	"github.com/jimdaga/weather-tracker/internal/weather"
)

// Retry policy for the per-city fetch job
const (
	MaxRetries = 6
	MaxBackoff = 600 * time.Second
)

// Backoff returns min(2^attempt, 600) seconds; attempt starts at 0
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// 2^10s already exceeds the cap
	if attempt >= 10 {
		return MaxBackoff
	}
	delay := time.Duration(1<<attempt) * time.Second
	if delay > MaxBackoff {
		return MaxBackoff
	}
	return delay
}

// OutcomeKind classifies how one fetch job execution ended
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRetry
	OutcomePermanent
	OutcomeMissing
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetry:
		return "retry"
	case OutcomePermanent:
		return "permanent"
	case OutcomeMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// Outcome is the result of one fetch job execution, interpreted by the queue
// adapter. Delay is set for OutcomeRetry, Err for OutcomeRetry and
// OutcomePermanent, Report for OutcomeSuccess.
type Outcome struct {
	Kind   OutcomeKind
	CityID uint
	Delay  time.Duration
	Err    error
	Report *weather.Report
}

// CityStore is the subset of the City Store the fetch job needs
type CityStore interface {
	Get(ctx context.Context, id uint) (models.City, error)
	UpdateWeather(ctx context.Context, id uint, snap cities.Snapshot) error
}

// Notifier delivers best-effort mail
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) string
}

// EventPublisher announces stored snapshots
type EventPublisher interface {
	PublishWeatherUpdate(ctx context.Context, update streams.WeatherUpdate) (string, error)
}

// FetchRecorder observes upstream latency
type FetchRecorder interface {
	ObserveFetch(d time.Duration)
}

// FetchJob fetches, stores and announces the weather for one city
type FetchJob struct {
	store     CityStore
	weather   weather.Fetcher
	notifier  Notifier
	publisher EventPublisher
	recorder  FetchRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// FetchJobOption customizes a FetchJob
type FetchJobOption func(*FetchJob)

// WithPublisher publishes a WeatherUpdate after every stored snapshot
func WithPublisher(p EventPublisher) FetchJobOption {
	return func(j *FetchJob) { j.publisher = p }
}

// WithFetchRecorder records upstream call latency
func WithFetchRecorder(r FetchRecorder) FetchJobOption {
	return func(j *FetchJob) { j.recorder = r }
}

// WithClock overrides the time source used for last_fetched_at
func WithClock(now func() time.Time) FetchJobOption {
	return func(j *FetchJob) { j.now = now }
}

// NewFetchJob wires a FetchJob from its collaborators
func NewFetchJob(store CityStore, fetcher weather.Fetcher, notifier Notifier, logger *slog.Logger, opts ...FetchJobOption) *FetchJob {
	j := &FetchJob{
		store:    store,
		weather:  fetcher,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run executes one attempt for cityID. attempt is the number of retries that
// already happened for this job, starting at 0.
func (j *FetchJob) Run(ctx context.Context, cityID uint, attempt int) (outcome Outcome) {
	cityName := ""

	defer func() {
		if r := recover(); r != nil {
			outcome = j.retryOrFail(cityID, cityName, attempt, fmt.Errorf("panic: %v", r))
		}
	}()

	city, err := j.store.Get(ctx, cityID)
	if errors.Is(err, cities.ErrNotFound) {
		j.logger.Warn("City does not exist, skipping fetch", "city_id", cityID)
		return Outcome{Kind: OutcomeMissing, CityID: cityID}
	}
	if err != nil {
		return j.retryOrFail(cityID, cityName, attempt, err)
	}
	cityName = city.Name

	j.logger.Info("Fetching weather", "city_id", cityID, "city_name", cityName, "attempt", attempt)

	started := time.Now()
	report, err := j.weather.Fetch(ctx, cityName)
	if j.recorder != nil {
		j.recorder.ObserveFetch(time.Since(started))
	}
	if err != nil {
		if weather.IsConfigError(err) {
			j.logger.Error("Weather client misconfigured, not retrying",
				"city_id", cityID, "city_name", cityName, "error", err.Error())
			return Outcome{Kind: OutcomePermanent, CityID: cityID, Err: err}
		}
		return j.retryOrFail(cityID, cityName, attempt, err)
	}

	fetchedAt := j.now().UTC()
	err = j.store.UpdateWeather(ctx, cityID, cities.Snapshot{
		Temp:        report.Temp,
		Description: report.Description,
		FetchedAt:   fetchedAt,
	})
	if errors.Is(err, cities.ErrNotFound) {
		j.logger.Warn("City deleted before weather was stored", "city_id", cityID, "city_name", cityName)
		return Outcome{Kind: OutcomeMissing, CityID: cityID}
	}
	if err != nil {
		return j.retryOrFail(cityID, cityName, attempt, err)
	}

	j.notifier.Notify(ctx, notify.Message{
		To:      city.EmailAddress(),
		Subject: "Weather update for " + cityName,
		Text:    fmt.Sprintf("%s: %s°C, %s", cityName, formatTemp(report.Temp), report.Description),
	})

	if j.publisher != nil {
		msgID, err := j.publisher.PublishWeatherUpdate(ctx, streams.WeatherUpdate{
			CityID:      cityID,
			CityName:    cityName,
			Temp:        report.Temp,
			Description: report.Description,
			FetchedAt:   fetchedAt,
		})
		if err != nil {
			j.logger.Error("Failed to publish weather update", "city_id", cityID, "error", err.Error())
		} else {
			j.logger.Debug("Weather update published", "city_id", cityID, "stream_msg_id", msgID)
		}
	}

	j.logger.Info("Weather stored",
		"city_id", cityID,
		"city_name", cityName,
		"temp", formatTemp(report.Temp),
		"description", report.Description,
	)
	return Outcome{Kind: OutcomeSuccess, CityID: cityID, Report: &report}
}

// retryOrFail applies the backoff policy to a retryable error
func (j *FetchJob) retryOrFail(cityID uint, cityName string, attempt int, err error) Outcome {
	if attempt >= MaxRetries {
		j.logger.Error("Permanent failure fetching weather",
			"city_id", cityID,
			"city_name", cityName,
			"attempt", attempt,
			"error", err.Error(),
		)
		return Outcome{
			Kind:   OutcomePermanent,
			CityID: cityID,
			Err:    fmt.Errorf("giving up on city %d after %d retries: %w", cityID, attempt, err),
		}
	}

	delay := Backoff(attempt)
	j.logger.Warn("Fetch failed, retrying",
		"city_id", cityID,
		"city_name", cityName,
		"attempt", attempt,
		"retry_in", delay.String(),
		"error", err.Error(),
	)
	return Outcome{Kind: OutcomeRetry, CityID: cityID, Delay: delay, Err: err}
}

func formatTemp(temp *float64) string {
	if temp == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*temp, 'f', -1, 64)
}
