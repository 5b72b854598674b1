package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jimdaga/weather-tracker/internal/cities"
	"github.com/jimdaga/weather-tracker/internal/config"
	"github.com/jimdaga/weather-tracker/internal/database"
	"github.com/jimdaga/weather-tracker/internal/health"
	"github.com/jimdaga/weather-tracker/internal/metrics"
	"github.com/jimdaga/weather-tracker/internal/notify"
	"github.com/jimdaga/weather-tracker/internal/streams"
	"github.com/jimdaga/weather-tracker/internal/weather"
	"github.com/jimdaga/weather-tracker/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const httpShutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := worker.NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Error("Failed to close database", "error", err.Error())
		}
	}()

	if err := database.Migrate(db, logger); err != nil {
		return err
	}
	if cfg.SeedDevData {
		if err := database.SeedDevData(db, logger); err != nil {
			return err
		}
	}

	store := cities.NewStore(db)
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	queue, err := worker.NewClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer queue.Close()

	var stops []func()
	defer func() {
		// reverse order: scheduler, worker, then anything started earlier
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}()

	if cfg.RunsWorker() {
		handlers, closeHandlers, err := buildHandlers(cfg, store, queue, collector, logger)
		if err != nil {
			return err
		}
		stops = append(stops, closeHandlers)

		stopWorker, err := worker.Start(cfg, handlers, logger)
		if err != nil {
			return err
		}
		stops = append(stops, stopWorker)

		stopScheduler, err := worker.StartScheduler(cfg, logger)
		if err != nil {
			return err
		}
		stops = append(stops, stopScheduler)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !cfg.RunsWeb() {
		logger.Info("Running in worker mode")
		<-ctx.Done()
		logger.Info("Shutting down")
		return nil
	}

	return serveHTTP(ctx, cfg, newRouter(store, queue, logger), logger)
}

// buildHandlers wires the fetch job and the dispatcher for the queue server.
// The returned func releases the event publisher.
func buildHandlers(cfg *config.Config, store *cities.Store, queue *worker.Client, collector *metrics.Collector, logger *slog.Logger) (*worker.Handlers, func(), error) {
	client := weather.NewClient(cfg.Weather.URL, cfg.Weather.APIKey, cfg.Weather.Timeout)
	fetcher := weather.NewBreakerClient("openweather", client, cfg.Weather.BreakerMaxFailures, cfg.Weather.BreakerTimeout)

	mailer := notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From)
	notifier := notify.NewNotifier(mailer, logger, collector)

	opts := []worker.FetchJobOption{worker.WithFetchRecorder(collector)}
	closer := func() {}
	if cfg.EventsEnabled {
		publisher, err := streams.NewPublisher(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create event publisher: %w", err)
		}
		opts = append(opts, worker.WithPublisher(publisher))
		closer = func() {
			if err := publisher.Close(); err != nil {
				logger.Error("Failed to close event publisher", "error", err.Error())
			}
		}
	}

	job := worker.NewFetchJob(store, fetcher, notifier, logger, opts...)
	dispatcher := worker.NewDispatcher(store, queue, collector, logger)
	return worker.NewHandlers(job, dispatcher, collector, logger), closer, nil
}

func newRouter(store *cities.Store, queue *worker.Client, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", gin.WrapF(health.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	cities.RegisterRoutes(router, store, queue, logger)

	return router
}

func serveHTTP(ctx context.Context, cfg *config.Config, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "port", cfg.Port, "mode", cfg.Mode, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
