package engine

import (
	"context"

	"github.com/sitewright/sitewright/internal/logger"
	swerrors "github.com/sitewright/sitewright/pkg/errors"
)

// ReversalOutcome records a single reversal attempt during unwind.
type ReversalOutcome struct {
	Action string
	Err    error
}

// ActionLedger is the ordered record of pending reversals for the current
// run. It is append-only during forward execution and drained strictly
// last-in-first-out during unwind. The ledger is owned by the executor's
// single control flow; it is not safe for concurrent use and never needs
// to be.
type ActionLedger struct {
	stack []Reversal
	log   *logger.Logger
}

// NewActionLedger creates an empty ledger.
func NewActionLedger(log *logger.Logger) *ActionLedger {
	return &ActionLedger{log: log}
}

// Push appends a reversal. Ledger order matches the true order of side
// effects, which is what makes LIFO replay restore a consistent state.
func (l *ActionLedger) Push(r Reversal) {
	l.stack = append(l.stack, r)
	l.log.WithFields(map[string]any{"reversal": r.Name, "pending": len(l.stack)}).Debug("reversal recorded")
}

// Len returns the number of pending reversals.
func (l *ActionLedger) Len() int {
	return len(l.stack)
}

// Clear discards all pending reversals without invoking them. Called after
// a fully successful run.
func (l *ActionLedger) Clear() {
	l.stack = nil
}

// Unwind drains the ledger, invoking every reversal in reverse order. A
// failing reversal never stops the remaining ones from being attempted;
// each outcome is logged and collected for the final report. Unwinding an
// empty ledger is a no-op returning an empty slice, so double-unwind is
// harmless.
func (l *ActionLedger) Unwind(ctx context.Context) []ReversalOutcome {
	outcomes := make([]ReversalOutcome, 0, len(l.stack))

	for i := len(l.stack) - 1; i >= 0; i-- {
		r := l.stack[i]
		log := l.log.WithFields(map[string]any{"reversal": r.Name})
		log.Info("rolling back")

		var err error
		if r.Undo != nil {
			err = r.Undo(ctx)
		}
		if err != nil {
			err = swerrors.NewReversalError(r.Name, err)
			log.Error(err, "rollback failed; manual intervention may be required")
		} else {
			log.Info("rolled back")
		}
		outcomes = append(outcomes, ReversalOutcome{Action: r.Name, Err: err})
	}

	l.stack = nil
	return outcomes
}
