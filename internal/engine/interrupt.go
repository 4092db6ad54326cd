package engine

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/sitewright/sitewright/internal/logger"
)

// InterruptState is the process-wide interruption flag: set exactly once
// by the signal handler, read by the executor at step boundaries and by
// interruptible steps at their safe points. Step logic never sets it.
type InterruptState struct {
	flag atomic.Bool
}

// Set marks the state interrupted. It returns true only for the first
// caller; later signals are observed as a no-op.
func (s *InterruptState) Set() bool {
	return s.flag.CompareAndSwap(false, true)
}

// Interrupted reports whether an interruption has been requested.
func (s *InterruptState) Interrupted() bool {
	return s.flag.Load()
}

// SignalGuard owns the SIGINT/SIGTERM subscription for the lifetime of a
// commit-mode run. The handler only sets the interrupt flag; all cleanup
// happens synchronously inside the executor, which is the single control
// flow that owns the ledger.
type SignalGuard struct {
	ch   chan os.Signal
	done chan struct{}
}

// ArmSignalGuard installs the handler. Callers must Disarm on every exit
// path.
func ArmSignalGuard(state *InterruptState, log *logger.Logger) *SignalGuard {
	g := &SignalGuard{
		ch:   make(chan os.Signal, 2),
		done: make(chan struct{}),
	}
	signal.Notify(g.ch, os.Interrupt, syscall.SIGTERM)

	go func() {
		for {
			select {
			case sig := <-g.ch:
				if state.Set() {
					log.Warn(fmt.Sprintf("received %s, rolling back at the next safe point", sig))
				} else {
					log.Warn("interruption already in progress")
				}
			case <-g.done:
				return
			}
		}
	}()

	return g
}

// Disarm removes the handler and stops the guard goroutine.
func (g *SignalGuard) Disarm() {
	signal.Stop(g.ch)
	close(g.done)
}
