//go:build integration
// +build integration

// Package testhelpers builds live-upstream fixtures for integration tests.
package testhelpers

import (
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/busan-travel-service/internal/cache"
	"github.com/kjstillabower/busan-travel-service/internal/client"
	"github.com/kjstillabower/busan-travel-service/internal/clock"
	"github.com/kjstillabower/busan-travel-service/internal/models"
	"github.com/kjstillabower/busan-travel-service/internal/observability"
	"github.com/kjstillabower/busan-travel-service/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	ServiceKey     string
	ForecastURL    string
	ObservationURL string
	CacheBackend   string // "in_memory" or "memcached"
	MemcachedAddr  string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test when KMA_SERVICE_KEY is missing or a placeholder.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	key := os.Getenv("KMA_SERVICE_KEY")
	if client.IsPlaceholderKey(key) {
		t.Skip("KMA_SERVICE_KEY not set, skipping integration test")
	}
	if decoded, err := url.QueryUnescape(key); err == nil {
		key = decoded
	}

	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		ServiceKey:     key,
		ForecastURL:    envOr("KMA_FORECAST_URL", "https://apis.data.go.kr/1360000/VilageFcstInfoService_2.0/getVilageFcst"),
		ObservationURL: envOr("KMA_OBSERVATION_URL", "https://apis.data.go.kr/1360000/VilageFcstInfoService_2.0/getUltraSrtNcst"),
		CacheBackend:   os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr:  memcachedAddr,
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// SetupIntegrationClient creates a live KMA client.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) *client.KMAClient {
	t.Helper()
	return client.NewKMAClient(cfg.ServiceKey, cfg.ForecastURL, cfg.ObservationURL, 10*time.Second)
}

// SetupIntegrationService creates a weather service over the live client, backed by
// memcached when INTEGRATION_CACHE_BACKEND=memcached and reachable.
// Returns the service, the cache backend and a cleanup function.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.WeatherService, cache.Backend, func()) {
	t.Helper()
	logger, err := observability.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	var backend cache.Backend = cache.NewInMemoryCache()
	cleanup := func() {}
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil && mc.Ping() == nil {
			backend = mc
			cleanup = func() { _ = mc.Close() }
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
		} else {
			t.Logf("Memcached not available, using in-memory cache")
		}
	}

	store := cache.NewStore(backend, cache.DefaultForecastTTL, cache.DefaultObservationTTL, logger)
	svc := service.NewWeatherService(
		SetupIntegrationClient(t, cfg),
		store,
		clock.New(clock.DefaultZone),
		models.GridCoordinate{NX: 98, NY: 76},
		logger,
	)
	return svc, backend, cleanup
}
