package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Reading is a normalised current-conditions sample.
type Reading struct {
	City        string  `json:"city"`
	TempC       float64 `json:"temp_c"`
	FeelsLikeC  float64 `json:"feels_like_c"`
	Humidity    int     `json:"humidity"`
	WindKPH     float64 `json:"wind_kph"`
	Condition   string  `json:"condition"`
	Description string  `json:"description"`
}

// Client queries an OpenWeatherMap-compatible current weather endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New builds a weather client.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type currentResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

// Current returns current conditions for a city in metric units.
func (c *Client) Current(ctx context.Context, city string) (*Reading, error) {
	q := url.Values{}
	q.Set("q", city)
	q.Set("units", "metric")
	q.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("weather service error %d: %s", resp.StatusCode, string(body))
	}

	var raw currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode weather: %w", err)
	}

	reading := &Reading{
		City:       raw.Name,
		TempC:      raw.Main.Temp,
		FeelsLikeC: raw.Main.FeelsLike,
		Humidity:   raw.Main.Humidity,
		WindKPH:    raw.Wind.Speed * 3.6,
	}
	if reading.City == "" {
		reading.City = city
	}
	if len(raw.Weather) > 0 {
		reading.Condition = raw.Weather[0].Main
		reading.Description = raw.Weather[0].Description
	}
	return reading, nil
}
