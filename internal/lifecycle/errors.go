package lifecycle

import "fmt"

// Phase names a step of the start or stop sequence. Every fatal error names
// the phase it came from so the operator can tell which step failed.
type Phase string

const (
	PhaseBootstrap Phase = "bootstrap"
	PhaseProvision Phase = "provision"
	PhasePlan      Phase = "plan"
	PhaseStart     Phase = "start"
	PhaseHealth    Phase = "health"
	PhaseReport    Phase = "report"
	PhaseTeardown  Phase = "teardown"
)

// PhaseError wraps a fatal error with the phase that produced it and, where
// one is known, the action that fixes it.
type PhaseError struct {
	Phase  Phase
	Remedy string
	Err    error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
