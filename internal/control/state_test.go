package control

import "testing"

func TestPhaseTransitionTable(t *testing.T) {
	allowed := []struct{ from, to Phase }{
		{PhaseIdle, PhaseBuilding},
		{PhaseBuilding, PhaseStarting},
		{PhaseBuilding, PhaseFailed},
		{PhaseStarting, PhaseRunning},
		{PhaseStarting, PhaseDraining},
		{PhaseStarting, PhaseFailed},
		{PhaseRunning, PhaseDraining},
		{PhaseRunning, PhaseStopped},
		{PhaseRunning, PhaseFailed},
		{PhaseDraining, PhaseStopped},
		{PhaseDraining, PhaseFailed},
	}
	for _, tr := range allowed {
		if !Allowed(tr.from, tr.to) {
			t.Errorf("%s -> %s should be allowed", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to Phase }{
		{PhaseIdle, PhaseRunning},
		{PhaseIdle, PhaseStopped},
		{PhaseBuilding, PhaseRunning},
		{PhaseStarting, PhaseStopped},
		{PhaseDraining, PhaseRunning},
		{PhaseStopped, PhaseBuilding},
		{PhaseStopped, PhaseFailed},
		{PhaseFailed, PhaseIdle},
		{PhaseFailed, PhaseStopped},
		{PhaseRunning, PhaseIdle},
	}
	for _, tr := range denied {
		if Allowed(tr.from, tr.to) {
			t.Errorf("%s -> %s must not be allowed", tr.from, tr.to)
		}
	}
}

func TestTerminalPhases(t *testing.T) {
	for _, p := range []Phase{PhaseIdle, PhaseBuilding, PhaseStarting, PhaseRunning, PhaseDraining} {
		if p.Terminal() {
			t.Errorf("%s reported terminal", p)
		}
		if len(transitions[p]) == 0 {
			t.Errorf("non-terminal phase %s has no outgoing transitions", p)
		}
	}
	for _, p := range []Phase{PhaseStopped, PhaseFailed} {
		if !p.Terminal() {
			t.Errorf("%s not reported terminal", p)
		}
		if len(transitions[p]) != 0 {
			t.Errorf("terminal phase %s has outgoing transitions", p)
		}
	}
}
