package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/busan-travel-service/internal/cache"
	"github.com/kjstillabower/busan-travel-service/internal/client"
	"github.com/kjstillabower/busan-travel-service/internal/clock"
	"github.com/kjstillabower/busan-travel-service/internal/kma"
	"github.com/kjstillabower/busan-travel-service/internal/models"
	"github.com/kjstillabower/busan-travel-service/internal/observability"
	"github.com/kjstillabower/busan-travel-service/internal/traffic"
)

// Reasons a weather value is shown as unavailable (metric label).
const (
	reasonUnconfigured = "unconfigured"
	reasonUpstream     = "upstream"
	reasonEmpty        = "empty"
)

// WeatherService serves today's summary and the current temperature with a
// cache-aside read per feed. It never returns an error to page renders: anything
// it cannot obtain is "--", and that outcome is cached for the feed TTL too, so a
// failing upstream is called at most once per TTL.
type WeatherService struct {
	client          client.WeatherClient
	store           *cache.Store
	clock           clock.Clock
	coord           models.GridCoordinate
	logger          *zap.Logger
	stampedeTracker *stampedeTracker
}

// NewWeatherService creates a WeatherService for the grid cell coord.
func NewWeatherService(c client.WeatherClient, store *cache.Store, clk clock.Clock, coord models.GridCoordinate, logger *zap.Logger) *WeatherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeatherService{
		client:          c,
		store:           store,
		clock:           clk,
		coord:           coord,
		logger:          logger,
		stampedeTracker: newStampedeTracker(),
	}
}

func (s *WeatherService) loggerFor(ctx context.Context) *zap.Logger {
	if l := observability.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// Snapshot returns both feeds for the configured grid cell at the clock's now.
// The two feeds are resolved concurrently.
func (s *WeatherService) Snapshot(ctx context.Context) models.WeatherSnapshot {
	now := s.clock.Now()
	var (
		snap models.WeatherSnapshot
		wg   sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		snap.Today = s.DailySummary(ctx, s.coord, now)
	}()
	go func() {
		defer wg.Done()
		snap.Current = s.CurrentTemperature(ctx, s.coord, now)
	}()
	wg.Wait()
	return snap
}

// DailySummary returns today's average, high and low for coord at now. The slot
// and "today" are taken in the clock's zone whatever zone now carries.
func (s *WeatherService) DailySummary(ctx context.Context, coord models.GridCoordinate, now time.Time) models.DailyTemperatures {
	v, _ := s.dailySummary(ctx, coord, s.local(now))
	return v
}

// CurrentTemperature returns the latest observed temperature for coord at now.
func (s *WeatherService) CurrentTemperature(ctx context.Context, coord models.GridCoordinate, now time.Time) string {
	v, _ := s.currentTemperature(ctx, coord, s.local(now))
	return v
}

// local converts now into the clock's zone.
func (s *WeatherService) local(now time.Time) time.Time {
	if loc := s.clock.Location(); loc != nil {
		return now.In(loc)
	}
	return now
}

// RefreshForecast runs the forecast cache-aside path at the clock's now and
// reports the upstream error. Used by the cache warmer.
func (s *WeatherService) RefreshForecast(ctx context.Context) error {
	_, err := s.dailySummary(ctx, s.coord, s.clock.Now())
	return err
}

// RefreshObservation is RefreshForecast for the live observation feed.
func (s *WeatherService) RefreshObservation(ctx context.Context) error {
	_, err := s.currentTemperature(ctx, s.coord, s.clock.Now())
	return err
}

func (s *WeatherService) dailySummary(ctx context.Context, coord models.GridCoordinate, now time.Time) (models.DailyTemperatures, error) {
	logger := s.loggerFor(ctx)
	if !s.client.Configured() {
		observability.WeatherAbsentTotal.WithLabelValues(models.FeedForecast, reasonUnconfigured).Inc()
		return models.AbsentTemperatures(), client.ErrMissingCredential
	}
	if cached, ok := s.store.Forecast.Get(ctx, now); ok {
		logger.Debug("cache hit", zap.String("feed", models.FeedForecast))
		return cached, nil
	}

	defer s.trackMiss(models.FeedForecast)()

	slot := kma.ForecastSlot(now)
	samples, err := s.client.GetForecast(ctx, coord, slot)
	if err != nil {
		s.recordUpstreamFailure(logger, models.FeedForecast, slot, err)
		out := models.AbsentTemperatures()
		if !callerCanceled(ctx, err) {
			s.store.Forecast.Put(ctx, out, now)
		}
		return out, err
	}
	traffic.RecordSuccess()

	out := kma.SummarizeDay(samples, kma.Today(now)).Format()
	if out.Average == models.Absent {
		observability.WeatherAbsentTotal.WithLabelValues(models.FeedForecast, reasonEmpty).Inc()
		logger.Info("forecast has no hourly series for today",
			zap.String("base_date", slot.Date), zap.String("base_time", slot.Time), zap.Int("samples", len(samples)))
	}
	s.store.Forecast.Put(ctx, out, now)
	logger.Debug("forecast refreshed", zap.String("base_date", slot.Date), zap.String("base_time", slot.Time),
		zap.String("avg", out.Average), zap.String("max", out.Max), zap.String("min", out.Min))
	return out, nil
}

func (s *WeatherService) currentTemperature(ctx context.Context, coord models.GridCoordinate, now time.Time) (string, error) {
	logger := s.loggerFor(ctx)
	if !s.client.Configured() {
		observability.WeatherAbsentTotal.WithLabelValues(models.FeedObservation, reasonUnconfigured).Inc()
		return models.Absent, client.ErrMissingCredential
	}
	if cached, ok := s.store.Observation.Get(ctx, now); ok {
		logger.Debug("cache hit", zap.String("feed", models.FeedObservation))
		return cached, nil
	}

	defer s.trackMiss(models.FeedObservation)()

	slot := kma.ObservationSlot(now)
	samples, err := s.client.GetObservation(ctx, coord, slot)
	if err != nil {
		s.recordUpstreamFailure(logger, models.FeedObservation, slot, err)
		if !callerCanceled(ctx, err) {
			s.store.Observation.Put(ctx, models.Absent, now)
		}
		return models.Absent, err
	}
	traffic.RecordSuccess()

	out := models.FormatTemperature(kma.CurrentTemperature(samples))
	if out == models.Absent {
		observability.WeatherAbsentTotal.WithLabelValues(models.FeedObservation, reasonEmpty).Inc()
		logger.Info("observation has no T1H record",
			zap.String("base_date", slot.Date), zap.String("base_time", slot.Time), zap.Int("samples", len(samples)))
	}
	s.store.Observation.Put(ctx, out, now)
	return out, nil
}

// trackMiss records a miss in progress for feed and returns the function that ends it.
func (s *WeatherService) trackMiss(feed string) func() {
	if n := s.stampedeTracker.RecordMiss(feed); n > 1 {
		observability.CacheStampedeDetectedTotal.WithLabelValues(feed).Inc()
		observability.CacheStampedeConcurrency.WithLabelValues(feed).Observe(float64(n))
	}
	return func() { s.stampedeTracker.RecordHit(feed) }
}

func (s *WeatherService) recordUpstreamFailure(logger *zap.Logger, feed string, slot models.Slot, err error) {
	observability.WeatherAbsentTotal.WithLabelValues(feed, reasonUpstream).Inc()
	if !errors.Is(err, context.Canceled) {
		traffic.RecordError()
	}
	logger.Warn("upstream fetch failed, caching unavailable value",
		zap.String("feed", feed),
		zap.String("base_date", slot.Date),
		zap.String("base_time", slot.Time),
		zap.String("category", string(client.CategorizeError(err))),
		zap.Error(err))
}

// callerCanceled is true when the request went away before upstream answered.
// That says nothing about upstream, so the absent value is not cached.
func callerCanceled(ctx context.Context, err error) bool {
	return errors.Is(ctx.Err(), context.Canceled) && errors.Is(err, context.Canceled)
}
