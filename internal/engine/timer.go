package engine

import (
	"sync/atomic"
	"time"
)

// tickTimer is the periodic timer feeding the scan loop. On every expiry it
// records the wall-clock time and releases one timer permit; that is all it
// does, mirroring a SIGEV_THREAD notify function.
type tickTimer struct {
	interval  time.Duration
	permit    *permit
	now       *atomic.Int64 // unix nanos of the latest expiry
	onOverrun func()

	ticker *time.Ticker
	quit   chan struct{}
	done   chan struct{}
}

func newTickTimer(interval time.Duration, p *permit, now *atomic.Int64, onOverrun func()) *tickTimer {
	return &tickTimer{
		interval:  interval,
		permit:    p,
		now:       now,
		onOverrun: onOverrun,
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// arm starts the timer. The first expiry fires one interval from now.
func (t *tickTimer) arm() {
	t.ticker = time.NewTicker(t.interval)
	go t.loop()
}

func (t *tickTimer) loop() {
	defer close(t.done)
	for {
		select {
		case <-t.quit:
			return
		case ts := <-t.ticker.C:
			t.now.Store(ts.UnixNano())
			if !t.permit.release() && t.onOverrun != nil {
				t.onOverrun()
			}
		}
	}
}

// disarm stops the timer and returns a channel closed once its goroutine
// has exited. Safe to call on a timer that was never armed.
func (t *tickTimer) disarm() <-chan struct{} {
	if t.ticker == nil {
		close(t.done)
		return t.done
	}
	t.ticker.Stop()
	close(t.quit)
	return t.done
}

// splitInterval splits a nanosecond tick interval into whole seconds and the
// nanosecond remainder, the form an itimerspec takes.
func splitInterval(ns int64) (sec int64, nsec int64) {
	return ns / int64(time.Second), ns % int64(time.Second)
}
