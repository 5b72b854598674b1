package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jimdaga/weather-tracker/internal/cities"
	"github.com/jimdaga/weather-tracker/internal/models"
	"github.com/jimdaga/weather-tracker/internal/notify"
	"github.com/jimdaga/weather-tracker/internal/streams"
	"github.com/jimdaga/weather-tracker/internal/weather"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

// memStore is an in-memory City Store
type memStore struct {
	mu        sync.Mutex
	cities    map[uint]models.City
	getErr    error
	updateErr error
	writes    int
	listErr   error
}

func newMemStore(list ...models.City) *memStore {
	s := &memStore{cities: make(map[uint]models.City)}
	for _, c := range list {
		s.cities[c.ID] = c
	}
	return s
}

func (s *memStore) Get(_ context.Context, id uint) (models.City, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return models.City{}, s.getErr
	}
	c, ok := s.cities[id]
	if !ok {
		return models.City{}, cities.ErrNotFound
	}
	return c, nil
}

func (s *memStore) UpdateWeather(_ context.Context, id uint, snap cities.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	c, ok := s.cities[id]
	if !ok {
		return cities.ErrNotFound
	}
	s.writes++
	desc := snap.Description
	fetchedAt := snap.FetchedAt
	c.LastTemp = snap.Temp
	c.LastDesc = &desc
	c.LastFetchedAt = &fetchedAt
	s.cities[id] = c
	return nil
}

func (s *memStore) ListIDs(_ context.Context) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	ids := make([]uint, 0, len(s.cities))
	for id := range s.cities {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memStore) delete(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cities, id)
}

func (s *memStore) city(id uint) models.City {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cities[id]
}

// scriptedWeather returns errs[i] on call i, then report forever
type scriptedWeather struct {
	mu     sync.Mutex
	calls  []string
	errs   []error
	report weather.Report
	panics bool
}

func (w *scriptedWeather) Fetch(_ context.Context, city string) (weather.Report, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.panics {
		panic("unexpected upstream shape")
	}
	n := len(w.calls)
	w.calls = append(w.calls, city)
	if n < len(w.errs) && w.errs[n] != nil {
		return weather.Report{}, w.errs[n]
	}
	r := w.report
	r.City = city
	return r, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

type fakePublisher struct {
	updates []streams.WeatherUpdate
	err     error
}

func (p *fakePublisher) PublishWeatherUpdate(_ context.Context, u streams.WeatherUpdate) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.updates = append(p.updates, u)
	return "1-0", nil
}

type fakeEnqueuer struct {
	mu      sync.Mutex
	cityIDs []uint
	batches map[string]int
	failFor map[uint]bool
}

func (e *fakeEnqueuer) EnqueueFetchCityBatch(_ context.Context, cityID uint, batchID string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failFor[cityID] {
		return "", errors.New("redis unavailable")
	}
	if e.batches == nil {
		e.batches = make(map[string]int)
	}
	e.cityIDs = append(e.cityIDs, cityID)
	e.batches[batchID]++
	return "task-id", nil
}

type countingRecorder struct {
	outcomes   []string
	dispatched int
	fetches    int
}

func (r *countingRecorder) FetchJob(outcome string)      { r.outcomes = append(r.outcomes, outcome) }
func (r *countingRecorder) Dispatched(n int)             { r.dispatched += n }
func (r *countingRecorder) ObserveFetch(_ time.Duration) { r.fetches++ }

var fixedNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func newTestJob(store CityStore, w weather.Fetcher, mailer notify.Mailer, opts ...FetchJobOption) *FetchJob {
	logger := discardLogger()
	opts = append([]FetchJobOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewFetchJob(store, w, notify.NewNotifier(mailer, logger, nil), logger, opts...)
}
