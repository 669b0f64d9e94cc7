package lifecycle

import "testing"

func TestPhase_Transitions(t *testing.T) {
	defer SetPhase(PhaseStarting)

	SetPhase(PhaseStarting)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true while starting")
	}
	SetPhase(PhaseReady)
	if got := CurrentPhase(); got != PhaseReady {
		t.Errorf("CurrentPhase() = %v, want ready", got)
	}
	SetPhase(PhaseShuttingDown)
	if !IsShuttingDown() {
		t.Error("IsShuttingDown() = false after SetPhase(PhaseShuttingDown)")
	}
}

func TestPhase_String(t *testing.T) {
	tests := map[Phase]string{
		PhaseStarting:     "starting",
		PhaseReady:        "ready",
		PhaseShuttingDown: "shutting-down",
		Phase(42):         "unknown",
	}
	for p, want := range tests {
		if got := p.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", p, got, want)
		}
	}
}
