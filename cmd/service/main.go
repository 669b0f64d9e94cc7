package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/busan-travel-service/internal/cache"
	"github.com/kjstillabower/busan-travel-service/internal/circuitbreaker"
	"github.com/kjstillabower/busan-travel-service/internal/client"
	"github.com/kjstillabower/busan-travel-service/internal/clock"
	"github.com/kjstillabower/busan-travel-service/internal/config"
	"github.com/kjstillabower/busan-travel-service/internal/degraded"
	httphandler "github.com/kjstillabower/busan-travel-service/internal/http"
	"github.com/kjstillabower/busan-travel-service/internal/idle"
	"github.com/kjstillabower/busan-travel-service/internal/lifecycle"
	"github.com/kjstillabower/busan-travel-service/internal/models"
	"github.com/kjstillabower/busan-travel-service/internal/observability"
	"github.com/kjstillabower/busan-travel-service/internal/service"
	"github.com/kjstillabower/busan-travel-service/internal/views"
)

const inFlightCheckInterval = 100 * time.Millisecond

func main() {
	lifecycle.SetPhase(lifecycle.PhaseStarting)

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	clk := clock.New(cfg.TimeZone)
	if clk.Fallback() {
		logger.Warn("time zone data unavailable, using fixed UTC+9", zap.String("zone", cfg.TimeZone))
	}

	backend, memcacheCloser, err := newCacheBackend(cfg, logger)
	if err != nil {
		logger.Fatal("cache backend", zap.Error(err))
	}
	store := cache.NewStore(backend, cfg.ForecastTTL, cfg.ObservationTTL, logger)

	kmaClient := client.NewKMAClient(cfg.KMAServiceKey, cfg.KMAForecastURL, cfg.KMAObservationURL, cfg.KMATimeout)
	if !kmaClient.Configured() {
		logger.Warn("KMA service key missing or placeholder; weather will render as --")
	}
	coord := models.GridCoordinate{NX: cfg.GridNX, NY: cfg.GridNY}
	weatherService := service.NewWeatherService(kmaClient, store, clk, coord, logger)

	searchClient := client.NewNaverSearchClient(cfg.SearchURL, cfg.NaverClientID, cfg.NaverClientSecret, cfg.SearchDisplay, cfg.SearchTimeout)
	if cfg.BreakerEnabled {
		searchClient.SetCircuitBreaker(newBreaker(cfg, "naver_search"))
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.BreakerFailureThreshold),
			zap.Duration("timeout", cfg.BreakerTimeout))
	}
	if !searchClient.Configured() {
		logger.Warn("Naver credentials missing; blog search returns 400")
	}
	recommendations := service.NewRecommendationService(searchClient, logger)

	renderer, err := views.New()
	if err != nil {
		logger.Fatal("templates", zap.Error(err))
	}

	healthConfig := &httphandler.HealthConfig{
		Degraded: degraded.Policy{
			Window:             cfg.HealthWindow,
			ErrorRateThreshold: float64(cfg.HealthErrorRatePct) / 100,
			MinSamples:         cfg.HealthMinSamples,
		},
		OverloadDenials: cfg.HealthOverloadDenials,
		KMAConfigured:   kmaClient.Configured(),
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	handler := httphandler.NewHandler(
		weatherService,
		recommendations,
		renderer,
		healthConfig,
		httphandler.PlaceLimits{Min: cfg.PlaceMinLength, Max: cfg.PlaceMaxLength},
		logger,
	)
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
		Static:         renderer.Static(),
		Logger:         logger,
	})

	observability.RegisterTrafficGauges(cfg.HealthWindow)
	if len(cfg.TrackedPlaces) > 0 {
		observability.SetTrackedPlaces(cfg.TrackedPlaces)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()
	lifecycle.SetPhase(lifecycle.PhaseReady)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var warmer *cache.CacheWarmer
	if cfg.CacheWarm && kmaClient.Configured() {
		warmer = cache.NewCacheWarmer(weatherService, idle.Default(), cfg.CacheWarmIdleWindow, logger)
		go func() {
			if err := warmer.Start(ctx, cfg.CacheWarmInterval); err != nil {
				logger.Error("cache warming not started", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetPhase(lifecycle.PhaseShuttingDown)
	if warmer != nil {
		warmer.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.InFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

// newCacheBackend selects the feed cache backend. The returned MemcachedCache is
// non-nil only for the memcached backend and must be closed on shutdown.
func newCacheBackend(cfg *config.Config, logger *zap.Logger) (cache.Backend, *cache.MemcachedCache, error) {
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, nil, err
		}
		if err := mc.Ping(); err != nil {
			logger.Warn("memcached not reachable at startup; feeds will miss until it is", zap.Error(err))
		}
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
		return mc, mc, nil
	default:
		logger.Info("cache backend: in_memory")
		return cache.NewInMemoryCache(), nil, nil
	}
}

// newBreaker builds a breaker for upstream whose transitions feed the breaker metrics.
func newBreaker(cfg *config.Config, upstream string) *circuitbreaker.CircuitBreaker {
	observability.CircuitBreakerState.WithLabelValues(upstream).Set(float64(circuitbreaker.StateClosed))
	return circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		Timeout:          cfg.BreakerTimeout,
		OnStateChange: func(from, to circuitbreaker.State) {
			observability.CircuitBreakerTransitionsTotal.WithLabelValues(upstream, from.String(), to.String()).Inc()
			observability.CircuitBreakerState.WithLabelValues(upstream).Set(float64(to))
		},
	})
}
