// Package weather fetches current conditions for a city from the OpenWeatherMap API
package weather

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingAPIKey means the client has no credential. Retrying cannot fix it.
var ErrMissingAPIKey = errors.New("OPENWEATHER_API_KEY is not set")

// ErrMalformedResponse means the upstream body could not be decoded
var ErrMalformedResponse = errors.New("malformed weather response")

// Report is the current weather for one city. Temp is nil when the upstream
// response carries no temperature.
type Report struct {
	City        string
	Temp        *float64
	Description string
}

// StatusError is returned for any non-2xx upstream response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("weather API returned status %d: %s", e.StatusCode, e.Body)
}

// IsClientError reports whether err is a 4xx response about this one request,
// such as an unknown city name. 429 is excluded since it reflects upstream load.
func IsClientError(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 &&
		statusErr.StatusCode != http.StatusTooManyRequests
}

// IsConfigError reports whether err is a configuration failure that must not be retried
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMissingAPIKey)
}

// currentResponse is the subset of the OpenWeatherMap current-weather body we read
type currentResponse struct {
	Main struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}
