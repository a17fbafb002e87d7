package models

import "encoding/json"

// WeatherReading holds the four fields the summary route accepts. Everything
// else in an upstream payload is opaque to the proxy.
type WeatherReading struct {
	Temp        float64 `json:"temp"`
	FeelsLike   float64 `json:"feels_like"`
	Description string  `json:"description"`
	WindSpeed   float64 `json:"wind_speed"`
}

// CacheRecord is a timestamped opaque payload as persisted by a record store.
// SavedAt is epoch milliseconds, written by the cache's clock at Put time.
type CacheRecord struct {
	SavedAt int64           `json:"savedAt"`
	Payload json.RawMessage `json:"payload"`
}

// CitySuggestion is one geocoding result relayed to the dashboard. Missing
// upstream string fields map to "".
type CitySuggestion struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   string  `json:"state"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}
