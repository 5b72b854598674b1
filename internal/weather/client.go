package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const maxErrorBody = 512

// HTTPClient is the transport used by Client
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the OpenWeatherMap current-weather endpoint
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPClient
}

// NewClient creates a Client with its own http.Client bounded by timeout
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, apiKey, &http.Client{Timeout: timeout})
}

// NewClientWithHTTP creates a Client on top of an existing transport
func NewClientWithHTTP(baseURL, apiKey string, httpClient HTTPClient) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// Fetch requests current metric weather for city
func (c *Client) Fetch(ctx context.Context, city string) (Report, error) {
	if c.apiKey == "" {
		return Report{}, ErrMissingAPIKey
	}
	if city == "" {
		return Report{}, fmt.Errorf("city name is required")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return Report{}, fmt.Errorf("invalid weather API URL: %w", err)
	}
	q := u.Query()
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Report{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Report{}, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var raw currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	report := Report{City: city, Temp: raw.Main.Temp}
	if len(raw.Weather) > 0 {
		report.Description = raw.Weather[0].Description
	}
	return report, nil
}
