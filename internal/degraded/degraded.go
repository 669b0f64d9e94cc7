// Package degraded decides whether the upstream feeds are failing often enough for
// /health to report the service as degraded. Pages keep rendering "--" either way.
package degraded

import (
	"time"

	"github.com/kjstillabower/busan-travel-service/internal/traffic"
)

// Policy is the degraded threshold over a sliding window of upstream outcomes.
type Policy struct {
	Window time.Duration
	// ErrorRateThreshold is the error ratio (0..1) at or above which the service is degraded.
	ErrorRateThreshold float64
	// MinSamples avoids flapping on one failure after a quiet period.
	MinSamples int
}

// Status is a point-in-time evaluation of Policy.
type Status struct {
	Degraded bool
	Errors   int
	Total    int
	Ratio    float64
}

// Counter is satisfied by *traffic.Tracker.
type Counter interface {
	ErrorRate(window time.Duration) (errors, total int)
}

type defaultCounter struct{}

func (defaultCounter) ErrorRate(window time.Duration) (int, int) { return traffic.ErrorRate(window) }

// Evaluate applies p to the process-wide traffic tracker.
func (p Policy) Evaluate() Status {
	return p.EvaluateWith(defaultCounter{})
}

// EvaluateWith applies p to c.
func (p Policy) EvaluateWith(c Counter) Status {
	if p.Window <= 0 || p.ErrorRateThreshold <= 0 {
		return Status{}
	}
	errs, total := c.ErrorRate(p.Window)
	st := Status{Errors: errs, Total: total}
	if total == 0 {
		return st
	}
	st.Ratio = float64(errs) / float64(total)
	st.Degraded = total >= p.MinSamples && st.Ratio >= p.ErrorRateThreshold
	return st
}
