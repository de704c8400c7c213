package fall

import (
	"errors"
	"time"
)

// Outcome summarises what happened to one processed frame.
type Outcome string

const (
	OutcomeFall         Outcome = "fall"
	OutcomeDegenerate   Outcome = "degenerate"
	OutcomeNoHistory    Outcome = "no_history"
	OutcomeTooSoon      Outcome = "too_soon"
	OutcomeTooOld       Outcome = "too_old"
	OutcomeUncorrelated Outcome = "uncorrelated"
	OutcomeNoFall       Outcome = "no_fall"
)

// OutcomeFor maps a no-verdict reason onto its Outcome. A nil reason means
// a verdict was emitted.
func OutcomeFor(reason error) Outcome {
	switch {
	case reason == nil:
		return OutcomeFall
	case errors.Is(reason, ErrDegenerate):
		return OutcomeDegenerate
	case errors.Is(reason, ErrNoHistory):
		return OutcomeNoHistory
	case errors.Is(reason, ErrTooSoon):
		return OutcomeTooSoon
	case errors.Is(reason, ErrTooOld):
		return OutcomeTooOld
	case errors.Is(reason, ErrUncorrelated):
		return OutcomeUncorrelated
	default:
		return OutcomeNoFall
	}
}

// Observation is reported to an Observer once per processed frame.
type Observation struct {
	CapturedAt time.Time
	PoseScore  float64

	// Angle and SideConfidence are zero when the frame was degenerate.
	Angle          float64
	SideConfidence float64

	Outcome Outcome
	// Reason is the last comparison failure, nil on a fall.
	Reason error
	// Window is the window state after the frame was handled.
	Window WindowState
}

// Observer receives per-frame diagnostics from a Classifier.
type Observer interface {
	Observe(Observation)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Observation)

func (f ObserverFunc) Observe(o Observation) { f(o) }
