// Package lifecycle holds the process phase reported by /health.
package lifecycle

import "sync/atomic"

// Phase is the process phase.
type Phase int32

const (
	PhaseStarting Phase = iota
	PhaseReady
	PhaseShuttingDown
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseReady:
		return "ready"
	case PhaseShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

var phase atomic.Int32

// SetPhase sets the current phase. Main moves Starting -> Ready once the listener
// is up and Ready -> ShuttingDown on SIGTERM/SIGINT.
func SetPhase(p Phase) {
	phase.Store(int32(p))
}

// CurrentPhase returns the current phase.
func CurrentPhase() Phase {
	return Phase(phase.Load())
}

// IsShuttingDown reports whether the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return CurrentPhase() == PhaseShuttingDown
}
