package models

import (
	"time"

	"github.com/noah-isme/lecture-intel-api/pkg/weather"
)

// Weather sources.
const (
	WeatherSourceLive      = "live"
	WeatherSourceSynthetic = "synthetic"
)

// WeatherReport is the weather widget payload.
type WeatherReport struct {
	weather.Reading
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}
