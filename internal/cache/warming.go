package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/busan-travel-service/internal/observability"
)

// FeedRefresher is implemented by the service layer. Each method runs the
// cache-aside path for one feed and reports the upstream error, if any.
// Used by CacheWarmer to avoid a circular dependency on the service package.
type FeedRefresher interface {
	RefreshForecast(ctx context.Context) error
	RefreshObservation(ctx context.Context) error
}

// ActivityChecker reports whether the site has been visited within a window.
type ActivityChecker interface {
	Active(window time.Duration) bool
}

// CacheWarmer keeps both feeds filled so page renders rarely wait on KMA.
type CacheWarmer struct {
	refresher  FeedRefresher
	logger     *zap.Logger
	activity   ActivityChecker
	idleWindow time.Duration
	timeout    time.Duration
	scheduler  *gocron.Scheduler
}

// NewCacheWarmer creates a CacheWarmer. activity may be nil to warm unconditionally.
func NewCacheWarmer(refresher FeedRefresher, activity ActivityChecker, idleWindow time.Duration, logger *zap.Logger) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{
		refresher:  refresher,
		logger:     logger,
		activity:   activity,
		idleWindow: idleWindow,
		timeout:    30 * time.Second,
	}
}

// Warm refreshes both feeds concurrently. Returns the joined upstream errors.
func (w *CacheWarmer) Warm(ctx context.Context) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	w.logger.Info("warming cache")

	jobs := map[string]func(context.Context) error{
		"forecast":    w.refresher.RefreshForecast,
		"observation": w.refresher.RefreshObservation,
	}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for name, fn := range jobs {
		name, fn := name, fn
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("warm %s: %w", name, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	w.logger.Info("cache warming complete", zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return errors.Join(errs...)
	}
	return nil
}

// runScheduled is one periodic tick: skipped while the site is idle.
func (w *CacheWarmer) runScheduled(ctx context.Context) {
	if w.activity != nil && !w.activity.Active(w.idleWindow) {
		observability.CacheWarmingSkippedTotal.Inc()
		w.logger.Debug("cache warming skipped, no recent page views")
		return
	}
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.Warm(runCtx); err != nil {
		w.logger.Warn("periodic cache warm failed", zap.Error(err))
	}
}

// Start warms once, then schedules a warm every interval until ctx is done or Stop
// is called. Runs never overlap.
func (w *CacheWarmer) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("cache warm interval must be positive, got %s", interval)
	}
	if err := w.Warm(ctx); err != nil {
		w.logger.Warn("initial cache warm failed", zap.Error(err))
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	_, err := s.Every(interval).WaitForSchedule().Do(func() { w.runScheduled(ctx) })
	if err != nil {
		return fmt.Errorf("schedule cache warming: %w", err)
	}
	w.scheduler = s
	s.StartAsync()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop stops the periodic schedule. Safe to call when Start was never called.
func (w *CacheWarmer) Stop() {
	if w.scheduler != nil {
		w.scheduler.Stop()
	}
}
