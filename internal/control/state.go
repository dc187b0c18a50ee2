package control

import "fmt"

// Phase is the controller's lifecycle position. A run moves strictly
// forward through the table below; there is no restart.
type Phase int

const (
	// PhaseIdle is the initial phase before Run is called.
	PhaseIdle Phase = iota
	// PhaseBuilding covers engine-side graph realization.
	PhaseBuilding
	// PhaseStarting covers the transition to the running state.
	PhaseStarting
	// PhaseRunning is steady-state processing.
	PhaseRunning
	// PhaseDraining is the window after end-of-stream is observed or
	// requested, while in-flight frames flush through the sinks and the
	// pipeline tears down.
	PhaseDraining
	// PhaseStopped is the terminal phase of a clean run.
	PhaseStopped
	// PhaseFailed is the terminal phase after a recorded failure.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBuilding:
		return "building"
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseDraining:
		return "draining"
	case PhaseStopped:
		return "stopped"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether the phase ends the run.
func (p Phase) Terminal() bool { return p == PhaseStopped || p == PhaseFailed }

var transitions = map[Phase][]Phase{
	PhaseIdle:     {PhaseBuilding},
	PhaseBuilding: {PhaseStarting, PhaseFailed},
	PhaseStarting: {PhaseRunning, PhaseDraining, PhaseFailed},
	PhaseRunning:  {PhaseDraining, PhaseStopped, PhaseFailed},
	PhaseDraining: {PhaseStopped, PhaseFailed},
	PhaseStopped:  nil,
	PhaseFailed:   nil,
}

// Allowed reports whether from may transition to to.
func Allowed(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Snapshot is a point-in-time view of a run for logging and monitoring.
type Snapshot struct {
	Phase  Phase
	Frames uint64
	Err    error
}
