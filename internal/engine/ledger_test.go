package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	swerrors "github.com/sitewright/sitewright/pkg/errors"
)

func TestLedgerUnwindIsLIFO(t *testing.T) {
	ledger := NewActionLedger(newTestLogger(t))

	var order []string
	for _, name := range []string{"a", "b", "c"} {
		n := name
		ledger.Push(Reversal{Name: n, Undo: func(ctx context.Context) error {
			order = append(order, n)
			return nil
		}})
	}
	require.Equal(t, 3, ledger.Len())

	outcomes := ledger.Unwind(context.Background())
	require.Equal(t, []string{"c", "b", "a"}, order)
	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		require.NoError(t, o.Err)
	}
}

func TestLedgerUnwindCollectsFailuresAndContinues(t *testing.T) {
	ledger := NewActionLedger(newTestLogger(t))

	var order []string
	ledger.Push(Reversal{Name: "first", Undo: func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	}})
	ledger.Push(Reversal{Name: "broken", Undo: func(ctx context.Context) error {
		order = append(order, "broken")
		return fmt.Errorf("device busy")
	}})
	ledger.Push(Reversal{Name: "last", Undo: func(ctx context.Context) error {
		order = append(order, "last")
		return nil
	}})

	outcomes := ledger.Unwind(context.Background())
	require.Equal(t, []string{"last", "broken", "first"}, order)
	require.Len(t, outcomes, 3)

	require.NoError(t, outcomes[0].Err)
	require.Error(t, outcomes[1].Err)
	var revErr *swerrors.ReversalError
	require.ErrorAs(t, outcomes[1].Err, &revErr)
	require.Equal(t, "broken", revErr.Action)
	require.NoError(t, outcomes[2].Err)
}

func TestLedgerDoubleUnwindIsHarmless(t *testing.T) {
	ledger := NewActionLedger(newTestLogger(t))

	calls := 0
	ledger.Push(Reversal{Name: "once", Undo: func(ctx context.Context) error {
		calls++
		return nil
	}})

	first := ledger.Unwind(context.Background())
	second := ledger.Unwind(context.Background())
	require.Len(t, first, 1)
	require.Empty(t, second)
	require.Equal(t, 1, calls)
	require.Equal(t, 0, ledger.Len())
}

func TestLedgerClearDiscardsWithoutInvoking(t *testing.T) {
	ledger := NewActionLedger(newTestLogger(t))

	calls := 0
	ledger.Push(Reversal{Name: "kept-work", Undo: func(ctx context.Context) error {
		calls++
		return nil
	}})

	ledger.Clear()
	require.Equal(t, 0, ledger.Len())
	require.Empty(t, ledger.Unwind(context.Background()))
	require.Equal(t, 0, calls)
}

func TestLedgerNilUndoIsRecordedAsSuccess(t *testing.T) {
	ledger := NewActionLedger(newTestLogger(t))
	ledger.Push(Reversal{Name: "no-op"})

	outcomes := ledger.Unwind(context.Background())
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
}
