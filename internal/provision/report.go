package provision

import (
	"time"

	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/chipset"
)

// Outcome is how a step ended.
type Outcome int

const (
	OutcomeDone Outcome = iota
	OutcomeSkipped
	OutcomeWarned
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeWarned:
		return "warned"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StepResult records one executed step.
type StepResult struct {
	Name     string
	Outcome  Outcome
	Detail   string
	Err      error
	Duration time.Duration
}

// Report is the record of one provisioning attempt.
type Report struct {
	Chip  chipset.Chip
	Steps []StepResult
	Err   error
}

// Step returns the result of the named step, if it ran.
func (r *Report) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Loaded reports whether any firmware image was transferred.
func (r *Report) Loaded() bool {
	for _, s := range r.Steps {
		if s.Outcome == OutcomeDone && isLoadStep(s.Name) {
			return true
		}
	}
	return false
}
