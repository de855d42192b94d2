package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/infrastructure/upstream"
	"DailyBriefing/internal/ports"
)

const (
	unitsCelsius       = "°C"
	summaryNotFound    = "city not found"
	summaryNoData      = "no forecast data available"
	summaryLookupError = "weather lookup failed"
)

// Options configures the Open-Meteo endpoints; zero values use the public API.
type Options struct {
	GeocodingURL string
	ForecastURL  string
	Language     string
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Client resolves a city via geocoding and fetches today's min/max.
type Client struct {
	geocodingURL string
	forecastURL  string
	language     string
	http         *http.Client
	logger       *slog.Logger
}

var _ ports.WeatherSource = (*Client)(nil)

// NewClient builds a weather source. Open-Meteo needs no API key.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	geo := opts.GeocodingURL
	if geo == "" {
		geo = "https://geocoding-api.open-meteo.com/v1/search"
	}
	forecast := opts.ForecastURL
	if forecast == "" {
		forecast = "https://api.open-meteo.com/v1/forecast"
	}
	lang := opts.Language
	if lang == "" {
		lang = "pt"
	}
	return &Client{
		geocodingURL: geo,
		forecastURL:  forecast,
		language:     lang,
		http:         client,
		logger:       opts.Logger,
	}
}

type place struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
}

// Fetch never fails: every miss or error degrades to a report with nil min/max.
func (c *Client) Fetch(ctx context.Context, city, timezone string) domain.WeatherReport {
	report := domain.WeatherReport{City: city, Timezone: timezone, Units: unitsCelsius}

	loc, found, err := c.geocode(ctx, city)
	if err != nil {
		c.warn("geocoding failed", "city", city, "error", err)
		return degraded(report, summaryLookupError)
	}
	if !found {
		return degraded(report, summaryNotFound)
	}
	if report.Timezone == "" {
		report.Timezone = loc.Timezone
	}
	if report.Timezone == "" {
		report.Timezone = "UTC"
	}

	lo, hi, err := c.forecast(ctx, loc, report.Timezone)
	if err != nil {
		c.warn("forecast failed", "city", city, "error", err)
		return degraded(report, summaryLookupError)
	}
	report.Min, report.Max = lo, hi
	if !report.Available() {
		report.Summary = summaryNoData
		return report
	}
	report.Summary = fmt.Sprintf("Today in %s: min %s%s, max %s%s",
		city, formatTemp(*lo), unitsCelsius, formatTemp(*hi), unitsCelsius)
	return report
}

func degraded(report domain.WeatherReport, summary string) domain.WeatherReport {
	if report.Timezone == "" {
		report.Timezone = "UTC"
	}
	report.Min, report.Max = nil, nil
	report.Summary = summary
	return report
}

func (c *Client) geocode(ctx context.Context, city string) (place, bool, error) {
	if strings.TrimSpace(city) == "" {
		return place{}, false, nil
	}
	query := url.Values{}
	query.Set("name", city)
	query.Set("count", "1")
	query.Set("language", c.language)
	query.Set("format", "json")

	var body struct {
		Results []place `json:"results"`
	}
	if err := c.getJSON(ctx, c.geocodingURL, query, &body); err != nil {
		return place{}, false, err
	}
	if len(body.Results) == 0 {
		return place{}, false, nil
	}
	return body.Results[0], true, nil
}

func (c *Client) forecast(ctx context.Context, loc place, timezone string) (*float64, *float64, error) {
	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	query.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	query.Set("daily", "temperature_2m_max,temperature_2m_min")
	query.Set("forecast_days", "1")
	query.Set("timezone", timezone)

	var body struct {
		Daily struct {
			Max []*float64 `json:"temperature_2m_max"`
			Min []*float64 `json:"temperature_2m_min"`
		} `json:"daily"`
	}
	if err := c.getJSON(ctx, c.forecastURL, query, &body); err != nil {
		return nil, nil, err
	}

	var lo, hi *float64
	if len(body.Daily.Min) > 0 {
		lo = body.Daily.Min[0]
	}
	if len(body.Daily.Max) > 0 {
		hi = body.Daily.Max[0]
	}
	return lo, hi, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return upstream.StatusError("open-meteo", "weather_status", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func formatTemp(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (c *Client) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
