package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInterrupted is returned by interruptible forward actions that exit
// early after observing the interrupt flag. The executor treats it as an
// interruption rather than a step failure.
var ErrInterrupted = errors.New("provisioning interrupted")

// Reversal undoes exactly the effect just produced by a forward action.
// Once pushed onto the ledger it is owned exclusively by the ledger and
// must be safe to invoke even if the effect was already partially undone.
type Reversal struct {
	Name string
	Undo func(ctx context.Context) error
}

// CheckResult is the outcome of a precondition check. Preconditions are
// pure functions of existing system state; they run identically in
// simulate and commit mode and must not mutate anything.
//
// When OK is false and Supersede is non-nil, the overwrite policy permits
// destructive supersession of the conflicting resource: the executor runs
// Supersede before the forward action, and Supersede pushes reversals for
// whatever prior state it can preserve (a backup it took, for example).
type CheckResult struct {
	OK        bool
	Reason    string
	Supersede func(ctx context.Context, tx *Txn) error
}

// Step is one reversible unit of provisioning work.
//
// Forward performs side effects and registers a Reversal through the Txn
// for every effect as soon as it is ledger-consistent, so a mid-step
// failure already has its partial work covered. Interruptible steps poll
// tx.Interrupted() at safe points only and return ErrInterrupted (wrapped
// or bare) to exit early.
type Step struct {
	Name          string
	Summary       string
	Interruptible bool
	Precondition  func(ctx context.Context) (*CheckResult, error)
	Forward       func(ctx context.Context, tx *Txn) error
}

// Plan is an ordered sequence of steps built once before execution.
type Plan struct {
	Name  string
	Steps []Step
}

// NewPlan assembles a plan, rejecting empty or duplicate step names.
func NewPlan(name string, steps ...Step) (*Plan, error) {
	seen := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		if strings.TrimSpace(step.Name) == "" {
			return nil, fmt.Errorf("plan %q contains a step without a name", name)
		}
		if step.Forward == nil {
			return nil, fmt.Errorf("step %q has no forward action", step.Name)
		}
		if _, dup := seen[step.Name]; dup {
			return nil, fmt.Errorf("duplicate step name %q", step.Name)
		}
		seen[step.Name] = struct{}{}
	}
	return &Plan{Name: name, Steps: steps}, nil
}

// Txn is the handle a forward action uses to register reversals and to
// observe interruption requests. It is only valid for the duration of the
// step it was created for.
type Txn struct {
	step      string
	ledger    *ActionLedger
	interrupt *InterruptState
}

// Push records a reversal for an effect the forward action just produced.
func (t *Txn) Push(r Reversal) {
	if r.Name == "" {
		r.Name = t.step
	}
	t.ledger.Push(r)
}

// Interrupted reports whether an interruption has been requested. Safe to
// poll only at points where every effect so far has a reversal pushed.
func (t *Txn) Interrupted() bool {
	return t.interrupt.Interrupted()
}
