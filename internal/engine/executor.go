package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sitewright/sitewright/internal/logger"
	swerrors "github.com/sitewright/sitewright/pkg/errors"
)

// Executor runs a plan in simulate or commit mode on a single control
// thread. The ledger and interrupt flag are owned here; steps only reach
// them through the Txn handed to their forward action.
type Executor struct {
	log       *logger.Logger
	interrupt *InterruptState

	// OnEvent, when set, receives progress events for UI surfaces. Events
	// are emitted from the executor's own goroutine, never concurrently.
	OnEvent func(Event)
}

// New creates an executor with a fresh interrupt state.
func New(log *logger.Logger) *Executor {
	return &Executor{log: log, interrupt: &InterruptState{}}
}

// Interrupt exposes the interrupt flag so a SignalGuard can be armed for
// the duration of a commit run.
func (e *Executor) Interrupt() *InterruptState {
	return e.interrupt
}

func (e *Executor) emit(ev Event) {
	if e.OnEvent != nil {
		e.OnEvent(ev)
	}
}

// Run executes the plan and always returns a report. The error is the
// terminal failure of the run, nil on success and always nil in simulate
// mode: preview problems are enumerated in the report instead of aborting,
// so the operator sees the complete picture before committing.
func (e *Executor) Run(ctx context.Context, plan *Plan, mode RunMode) (*Report, error) {
	if plan == nil {
		return nil, swerrors.NewExecutionError("", fmt.Errorf("plan is nil"))
	}

	report := &Report{Plan: plan.Name, Mode: mode, State: StatePending}
	start := time.Now()
	defer func() {
		report.Duration = time.Since(start)
	}()

	if mode == Simulate {
		e.simulate(ctx, plan, report)
		return report, nil
	}

	return report, e.commit(ctx, plan, report)
}

// simulate runs description and precondition logic only. It performs zero
// forward actions and never touches a ledger.
func (e *Executor) simulate(ctx context.Context, plan *Plan, report *Report) {
	report.State = StateRunning
	total := len(plan.Steps)

	for i := range plan.Steps {
		step := plan.Steps[i]
		e.emit(StepStarted{Name: step.Name, Index: i, Total: total})

		sr := StepReport{Name: step.Name, Status: StatusSkippedSimulated, Message: step.Summary}

		if step.Precondition != nil {
			res, err := step.Precondition(ctx)
			switch {
			case err != nil:
				sr.Status = StatusBlocked
				sr.Message = fmt.Sprintf("precondition check failed: %v", err)
				sr.Err = err
			case !res.OK && res.Supersede == nil:
				sr.Status = StatusBlocked
				sr.Message = res.Reason
			case !res.OK:
				sr.Message = fmt.Sprintf("%s (supersedes existing state: %s)", step.Summary, res.Reason)
			}
		}

		report.Steps = append(report.Steps, sr)
		e.emit(StepFinished{Report: sr})
	}

	report.State = StateSucceeded
}

func (e *Executor) commit(ctx context.Context, plan *Plan, report *Report) error {
	ledger := NewActionLedger(e.log)
	report.State = StateRunning
	total := len(plan.Steps)

	for i := range plan.Steps {
		step := plan.Steps[i]
		e.emit(StepStarted{Name: step.Name, Index: i, Total: total})
		log := e.log.WithStep(step.Name)

		if e.interrupt.Interrupted() {
			err := swerrors.NewInterruptedError(step.Name)
			e.markNotRun(report, plan, i)
			e.unwind(ctx, ledger, report)
			report.State = StateInterruptedRolledBack
			report.Err = err
			return err
		}

		stepStart := time.Now()
		tx := &Txn{step: step.Name, ledger: ledger, interrupt: e.interrupt}

		if step.Precondition != nil {
			res, perr := step.Precondition(ctx)
			if perr != nil {
				err := swerrors.NewPreconditionError(step.Name, "precondition check failed", perr)
				sr := StepReport{Name: step.Name, Status: StatusFailed, Message: err.Error(), Err: err, Duration: time.Since(stepStart)}
				return e.abort(ctx, ledger, report, plan, i, sr, err, false)
			}
			if !res.OK {
				if res.Supersede == nil {
					err := swerrors.NewPreconditionError(step.Name, res.Reason, nil)
					sr := StepReport{Name: step.Name, Status: StatusFailed, Message: res.Reason, Err: err, Duration: time.Since(stepStart)}
					return e.abort(ctx, ledger, report, plan, i, sr, err, false)
				}
				log.Warn("overwrite enabled, superseding existing state: " + res.Reason)
				if serr := res.Supersede(ctx, tx); serr != nil {
					err := swerrors.NewExecutionError(step.Name, fmt.Errorf("supersession failed: %w", serr))
					sr := StepReport{Name: step.Name, Status: StatusFailed, Message: err.Error(), Err: err, Duration: time.Since(stepStart)}
					return e.abort(ctx, ledger, report, plan, i, sr, err, false)
				}
			}
		}

		log.Info("running")
		ferr := step.Forward(ctx, tx)
		duration := time.Since(stepStart)

		if ferr != nil {
			if errors.Is(ferr, ErrInterrupted) {
				err := swerrors.NewInterruptedError(step.Name)
				sr := StepReport{Name: step.Name, Status: StatusFailed, Message: "interrupted", Err: err, Duration: duration}
				return e.abort(ctx, ledger, report, plan, i, sr, err, true)
			}
			err := swerrors.NewExecutionError(step.Name, ferr)
			sr := StepReport{Name: step.Name, Status: StatusFailed, Message: ferr.Error(), Err: err, Duration: duration}
			return e.abort(ctx, ledger, report, plan, i, sr, err, false)
		}

		sr := StepReport{Name: step.Name, Status: StatusSucceeded, Message: step.Summary, Duration: duration}
		report.Steps = append(report.Steps, sr)
		e.emit(StepFinished{Report: sr})
		log.WithFields(map[string]any{"duration": duration.String()}).Info("step complete")
	}

	// Success: pending reversals are discarded, not replayed.
	ledger.Clear()
	report.State = StateSucceeded
	return nil
}

// abort records the failing step, skips the rest of the plan and drains
// the ledger. interrupted selects the terminal state.
func (e *Executor) abort(ctx context.Context, ledger *ActionLedger, report *Report, plan *Plan, failed int, sr StepReport, cause error, interrupted bool) error {
	report.Steps = append(report.Steps, sr)
	e.emit(StepFinished{Report: sr})
	e.markNotRun(report, plan, failed+1)
	e.unwind(ctx, ledger, report)

	if interrupted {
		report.State = StateInterruptedRolledBack
	} else {
		report.State = StateFailedRolledBack
	}
	report.Err = cause
	return cause
}

func (e *Executor) markNotRun(report *Report, plan *Plan, from int) {
	for i := from; i < len(plan.Steps); i++ {
		sr := StepReport{Name: plan.Steps[i].Name, Status: StatusNotRun, Message: "not reached"}
		report.Steps = append(report.Steps, sr)
		e.emit(StepFinished{Report: sr})
	}
}

// unwind drains the ledger and retags previously succeeded steps as
// rolled back. A cancelled context must not stop the rollback, so the
// reversals run under a context detached from cancellation.
func (e *Executor) unwind(ctx context.Context, ledger *ActionLedger, report *Report) {
	e.emit(UnwindStarted{Pending: ledger.Len()})
	outcomes := ledger.Unwind(context.WithoutCancel(ctx))
	report.Reversals = outcomes

	for i := range report.Steps {
		if report.Steps[i].Status == StatusSucceeded {
			report.Steps[i].Status = StatusRolledBack
		}
	}
	e.emit(UnwindFinished{Outcomes: outcomes})
}
