package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Dispatch statuses
const (
	DispatchStatusDispatched = "dispatched"
	DispatchStatusNoCities   = "no_cities"
)

// CityLister lists every registered city id
type CityLister interface {
	ListIDs(ctx context.Context) ([]uint, error)
}

// BatchEnqueuer submits a fetch job that belongs to a fan-out batch
type BatchEnqueuer interface {
	EnqueueFetchCityBatch(ctx context.Context, cityID uint, batchID string) (string, error)
}

// DispatchRecorder counts enqueued jobs
type DispatchRecorder interface {
	Dispatched(n int)
}

// DispatchResult reports one fan-out run
type DispatchResult struct {
	Status  string `json:"status"`
	Count   int    `json:"count"`
	BatchID string `json:"batch_id,omitempty"`
}

// Dispatcher fans out one fetch job per registered city
type Dispatcher struct {
	lister   CityLister
	enqueuer BatchEnqueuer
	recorder DispatchRecorder
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. recorder may be nil.
func NewDispatcher(lister CityLister, enqueuer BatchEnqueuer, recorder DispatchRecorder, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{lister: lister, enqueuer: enqueuer, recorder: recorder, logger: logger}
}

// Dispatch enqueues one independent fetch job per city. A failed enqueue does
// not stop the others; the failures are joined into the returned error and
// Count only includes jobs that were accepted by the queue.
func (d *Dispatcher) Dispatch(ctx context.Context) (DispatchResult, error) {
	ids, err := d.lister.ListIDs(ctx)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("failed to list cities: %w", err)
	}

	if len(ids) == 0 {
		d.logger.Info("No cities to update")
		return DispatchResult{Status: DispatchStatusNoCities}, nil
	}

	batchID := uuid.NewString()
	dispatched := 0
	var errs []error

	for _, id := range ids {
		if _, err := d.enqueuer.EnqueueFetchCityBatch(ctx, id, batchID); err != nil {
			d.logger.Error("Failed to enqueue city fetch", "city_id", id, "batch_id", batchID, "error", err.Error())
			errs = append(errs, err)
			continue
		}
		dispatched++
	}

	if d.recorder != nil {
		d.recorder.Dispatched(dispatched)
	}

	d.logger.Info("Dispatched city fetch jobs", "count", dispatched, "failed", len(errs), "batch_id", batchID)

	result := DispatchResult{Status: DispatchStatusDispatched, Count: dispatched, BatchID: batchID}
	return result, errors.Join(errs...)
}
