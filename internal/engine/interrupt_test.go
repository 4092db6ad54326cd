package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterruptStateFirstSetWins(t *testing.T) {
	var s InterruptState
	require.False(t, s.Interrupted())

	require.True(t, s.Set(), "first signal claims the flag")
	require.False(t, s.Set(), "repeat signals are no-ops")
	require.True(t, s.Interrupted())
}

func TestSignalGuardDisarmStopsGoroutine(t *testing.T) {
	var s InterruptState
	guard := ArmSignalGuard(&s, newTestLogger(t))
	require.NotNil(t, guard)

	guard.Disarm()
	require.False(t, s.Interrupted(), "disarming without a signal leaves the flag clear")
}
