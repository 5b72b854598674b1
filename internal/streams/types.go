// Package streams publishes weather update events to Redis Streams
package streams

import "time"

// StreamWeatherUpdates receives one entry per persisted weather snapshot
const StreamWeatherUpdates = "weather:updates"

// SchemaVersionV1 tags the WeatherUpdate payload layout
const SchemaVersionV1 = "v1"

// maxStreamLen bounds the stream with approximate trimming
const maxStreamLen = 10000

// WeatherUpdate is published after a city's snapshot has been stored
type WeatherUpdate struct {
	CityID      uint      `json:"city_id"`
	CityName    string    `json:"city_name"`
	Temp        *float64  `json:"temp"`
	Description string    `json:"description"`
	FetchedAt   time.Time `json:"fetched_at"`
}
