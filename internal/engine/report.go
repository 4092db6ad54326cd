package engine

import (
	"fmt"
	"time"
)

// RunMode selects between previewing a plan and executing it for real.
type RunMode int

const (
	// Simulate runs precondition checks and descriptions only; no forward
	// action executes and the ledger is never touched.
	Simulate RunMode = iota
	// Commit executes forward actions and tracks reversals.
	Commit
)

func (m RunMode) String() string {
	switch m {
	case Simulate:
		return "simulate"
	case Commit:
		return "commit"
	default:
		return fmt.Sprintf("runmode(%d)", int(m))
	}
}

// RunState is the terminal (or in-flight) state of a whole run.
type RunState string

const (
	StatePending               RunState = "pending"
	StateRunning               RunState = "running"
	StateSucceeded             RunState = "succeeded"
	StateFailedRolledBack      RunState = "failed-rolled-back"
	StateInterruptedRolledBack RunState = "interrupted-rolled-back"
)

// StepStatus is the per-step outcome recorded in the report.
type StepStatus string

const (
	StatusSkippedSimulated StepStatus = "skipped-simulated"
	StatusSucceeded        StepStatus = "succeeded"
	StatusFailed           StepStatus = "failed"
	StatusRolledBack       StepStatus = "rolled-back"
	StatusBlocked          StepStatus = "blocked"
	StatusNotRun           StepStatus = "not-run"
)

// StepReport captures the outcome of a single step.
type StepReport struct {
	Name     string
	Status   StepStatus
	Message  string
	Err      error
	Duration time.Duration
}

// Report enumerates per-step outcomes, the terminal run state and, on
// failure, the original error plus the outcome of every reversal attempt.
type Report struct {
	Plan      string
	Mode      RunMode
	State     RunState
	Steps     []StepReport
	Err       error
	Reversals []ReversalOutcome
	Duration  time.Duration
}

// Problems returns every blocking condition detected during the run. In
// simulate mode this is the complete list of issues an operator must
// resolve (or override) before committing.
func (r *Report) Problems() []string {
	var out []string
	for _, s := range r.Steps {
		if s.Status == StatusBlocked {
			out = append(out, fmt.Sprintf("%s: %s", s.Name, s.Message))
		}
	}
	return out
}

// ReversalFailures returns the reversals that could not be replayed.
// Non-empty means host state may be inconsistent and needs an operator.
func (r *Report) ReversalFailures() []ReversalOutcome {
	var out []ReversalOutcome
	for _, o := range r.Reversals {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Event is the progress stream consumed by the TUI and logging surfaces.
type Event any

// StepStarted is emitted before a step's precondition check runs.
type StepStarted struct {
	Name  string
	Index int
	Total int
}

// StepFinished is emitted once a step has a final status for this run.
type StepFinished struct {
	Report StepReport
}

// UnwindStarted is emitted when the executor begins draining the ledger.
type UnwindStarted struct {
	Pending int
}

// UnwindFinished carries the outcome of every attempted reversal.
type UnwindFinished struct {
	Outcomes []ReversalOutcome
}
