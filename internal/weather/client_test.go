package weather_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jimdaga/weather-tracker/internal/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUpstream(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchParsesTemperatureAndDescription(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Springfield", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"main":{"temp":21.5,"humidity":40},"weather":[{"main":"Clear","description":"clear sky"}]}`))
	})

	client := weather.NewClient(srv.URL, "test-key", 2*time.Second)
	report, err := client.Fetch(context.Background(), "Springfield")
	require.NoError(t, err)

	assert.Equal(t, "Springfield", report.City)
	require.NotNil(t, report.Temp)
	assert.Equal(t, 21.5, *report.Temp)
	assert.Equal(t, "clear sky", report.Description)
}

func TestFetchMissingFieldsDefault(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"Springfield"}`))
	})

	client := weather.NewClient(srv.URL, "test-key", 2*time.Second)
	report, err := client.Fetch(context.Background(), "Springfield")
	require.NoError(t, err)

	assert.Nil(t, report.Temp)
	assert.Equal(t, "", report.Description)
}

func TestFetchEmptyWeatherList(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"main":{"temp":-3},"weather":[]}`))
	})

	client := weather.NewClient(srv.URL, "test-key", 2*time.Second)
	report, err := client.Fetch(context.Background(), "Oslo")
	require.NoError(t, err)

	require.NotNil(t, report.Temp)
	assert.Equal(t, -3.0, *report.Temp)
	assert.Equal(t, "", report.Description)
}

func TestFetchMissingAPIKey(t *testing.T) {
	called := false
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	client := weather.NewClient(srv.URL, "", 2*time.Second)
	_, err := client.Fetch(context.Background(), "Springfield")

	assert.ErrorIs(t, err, weather.ErrMissingAPIKey)
	assert.True(t, weather.IsConfigError(err))
	assert.False(t, called, "no request should be sent without a key")
}

func TestFetchNon2xxStatus(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusBadGateway} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"cod":"err"}`))
			})

			client := weather.NewClient(srv.URL, "test-key", 2*time.Second)
			_, err := client.Fetch(context.Background(), "Springfield")
			require.Error(t, err)

			var statusErr *weather.StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, status, statusErr.StatusCode)
			assert.False(t, weather.IsConfigError(err))
		})
	}
}

func TestFetchMalformedBody(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})

	client := weather.NewClient(srv.URL, "test-key", 2*time.Second)
	_, err := client.Fetch(context.Background(), "Springfield")

	assert.ErrorIs(t, err, weather.ErrMalformedResponse)
	assert.False(t, weather.IsConfigError(err))
}

func TestFetchTimeout(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	})

	client := weather.NewClient(srv.URL, "test-key", 50*time.Millisecond)
	_, err := client.Fetch(context.Background(), "Springfield")

	require.Error(t, err)
	assert.False(t, weather.IsConfigError(err))
}
