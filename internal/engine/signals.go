package engine

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// watchSignals traps SIGINT and SIGTERM for the run. The watcher goroutine
// flags the stop request and performs the regular Stop outside any signal
// context; the scan loop observes the flag between ticks. Must be called
// with mu held.
func (e *Engine) watchSignals(runID string) {
	ch := make(chan os.Signal, 1)
	quit := make(chan struct{})
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	e.sigCh, e.sigQuit = ch, quit

	go func() {
		select {
		case sig := <-ch:
			e.logger.Info("received signal, stopping engine", "signal", sig, "run_id", runID)
			if err := e.signalStop(context.Background(), runID); err != nil {
				e.logger.Error("stop after signal failed", "run_id", runID, "error", err)
			}
		case <-quit:
		}
	}()
}

// signalStop flags the stop request and stops the run, but only if runID is
// still the current run. A signal delivered after that run was stopped
// programmatically leaves a later run untouched.
func (e *Engine) signalStop(ctx context.Context, runID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running.Load() || runID != e.currentRunID() {
		return nil
	}
	e.stopRequested.Store(true)
	return e.stopLocked(ctx, runID)
}

// stopSignals removes the run's signal handling. Must be called with mu held.
func (e *Engine) stopSignals() {
	if e.sigCh == nil {
		return
	}
	signal.Stop(e.sigCh)
	close(e.sigQuit)
	e.sigCh, e.sigQuit = nil, nil
}

// StopRequested reports whether a termination signal asked the current run
// to stop.
func (e *Engine) StopRequested() bool {
	return e.stopRequested.Load()
}
