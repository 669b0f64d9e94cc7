package cache

import (
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/busan-travel-service/internal/models"
)

// Default TTLs of the two weather feeds.
const (
	DefaultForecastTTL    = 600 * time.Second
	DefaultObservationTTL = 300 * time.Second
)

// Store holds the two weather feeds: today's summary and the current temperature,
// both in display form.
type Store struct {
	Forecast    *Feed[models.DailyTemperatures]
	Observation *Feed[string]
}

// NewStore builds the two feeds on backend. Non-positive TTLs take the defaults.
func NewStore(backend Backend, forecastTTL, observationTTL time.Duration, logger *zap.Logger) *Store {
	if forecastTTL <= 0 {
		forecastTTL = DefaultForecastTTL
	}
	if observationTTL <= 0 {
		observationTTL = DefaultObservationTTL
	}
	return &Store{
		Forecast:    NewFeed[models.DailyTemperatures](models.FeedForecast, forecastTTL, backend, logger),
		Observation: NewFeed[string](models.FeedObservation, observationTTL, backend, logger),
	}
}

// NewMemoryStore is NewStore over a fresh InMemoryCache.
func NewMemoryStore(forecastTTL, observationTTL time.Duration) *Store {
	return NewStore(NewInMemoryCache(), forecastTTL, observationTTL, nil)
}
