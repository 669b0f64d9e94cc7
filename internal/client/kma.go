package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/busan-travel-service/internal/kma"
	"github.com/kjstillabower/busan-travel-service/internal/models"
	"github.com/kjstillabower/busan-travel-service/internal/observability"
)

const (
	forecastRows    = 2000
	observationRows = 100
)

// WeatherClient fetches decoded temperature samples from the KMA feeds.
type WeatherClient interface {
	// Configured is false when no usable service key was supplied.
	Configured() bool
	GetForecast(ctx context.Context, coord models.GridCoordinate, slot models.Slot) ([]models.TemperatureSample, error)
	GetObservation(ctx context.Context, coord models.GridCoordinate, slot models.Slot) ([]models.TemperatureSample, error)
}

var (
	ErrMissingCredential = errors.New("service key not configured")
	ErrInvalidCredential = errors.New("service key rejected")
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrRateLimited       = errors.New("rate limited")
)

// noDataCode is the KMA result code for a valid query with nothing to return.
const noDataCode = "03"

// KMAClient calls the KMA village forecast service (short-term forecast and
// ultra-short-term live observation). It performs a single attempt per call.
type KMAClient struct {
	serviceKey     string
	forecastURL    string
	observationURL string
	client         *http.Client
}

// NewKMAClient returns a client for the two feeds. An empty or placeholder key is
// accepted; such a client reports Configured() == false and never hits the network.
func NewKMAClient(serviceKey, forecastURL, observationURL string, timeout time.Duration) *KMAClient {
	return &KMAClient{
		serviceKey:     strings.TrimSpace(serviceKey),
		forecastURL:    forecastURL,
		observationURL: observationURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// IsPlaceholderKey reports whether key is empty or one of the template values
// shipped in sample configs ("여기에 키 입력", "YOUR_SERVICE_KEY", "<service-key>").
func IsPlaceholderKey(key string) bool {
	key = strings.TrimSpace(key)
	switch {
	case key == "":
		return true
	case strings.Contains(key, "여기에"):
		return true
	case strings.HasPrefix(strings.ToUpper(key), "YOUR"):
		return true
	case strings.HasPrefix(key, "<") && strings.HasSuffix(key, ">"):
		return true
	}
	return false
}

// Configured reports whether a usable service key was supplied.
func (c *KMAClient) Configured() bool {
	return !IsPlaceholderKey(c.serviceKey)
}

// GetForecast returns the temperature records of the short-term forecast published at slot.
func (c *KMAClient) GetForecast(ctx context.Context, coord models.GridCoordinate, slot models.Slot) ([]models.TemperatureSample, error) {
	p, err := c.call(ctx, models.FeedForecast, c.forecastURL, forecastRows, coord, slot)
	if err != nil {
		return nil, err
	}
	return kma.ForecastSamples(p.Items), nil
}

// GetObservation returns the records of the live observation published at slot.
func (c *KMAClient) GetObservation(ctx context.Context, coord models.GridCoordinate, slot models.Slot) ([]models.TemperatureSample, error) {
	p, err := c.call(ctx, models.FeedObservation, c.observationURL, observationRows, coord, slot)
	if err != nil {
		return nil, err
	}
	return kma.ObservationSamples(p.Items), nil
}

func (c *KMAClient) call(ctx context.Context, feed, apiURL string, rows int, coord models.GridCoordinate, slot models.Slot) (kma.Payload, error) {
	if !c.Configured() {
		return kma.Payload{}, ErrMissingCredential
	}
	start := time.Now()

	req, err := c.buildRequest(ctx, apiURL, rows, coord, slot)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(feed, "error").Inc()
		return kma.Payload{}, fmt.Errorf("build request: %w", err)
	}

	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.UpstreamCallsTotal.WithLabelValues(feed, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(feed, "error").Observe(duration)

		if isTimeout(err) {
			return kma.Payload{}, fmt.Errorf("request timeout: %w", err)
		}
		return kma.Payload{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(feed, status).Inc()
	observability.UpstreamDuration.WithLabelValues(feed, status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp); err != nil {
		return kma.Payload{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return kma.Payload{}, fmt.Errorf("read response body: %w", err)
	}

	p, err := kma.Decode(body)
	if err != nil {
		return kma.Payload{}, fmt.Errorf("parse response: %w", err)
	}
	if p.ResultCode != "" && p.ResultCode != "00" && p.ResultCode != noDataCode {
		return kma.Payload{}, fmt.Errorf("%w: result code %s (%s)", ErrUpstreamFailure, p.ResultCode, p.ResultMsg)
	}
	return p, nil
}

func (c *KMAClient) buildRequest(ctx context.Context, apiURL string, rows int, coord models.GridCoordinate, slot models.Slot) (*http.Request, error) {
	baseURL, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("serviceKey", c.serviceKey)
	params.Set("pageNo", "1")
	params.Set("numOfRows", strconv.Itoa(rows))
	params.Set("dataType", "JSON")
	params.Set("base_date", slot.Date)
	params.Set("base_time", slot.Time)
	params.Set("nx", strconv.Itoa(coord.NX))
	params.Set("ny", strconv.Itoa(coord.NY))
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidCredential, resp.StatusCode)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value(observability.CorrelationIDKey); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
