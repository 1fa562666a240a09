package journal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/scanrt/internal/engine"
)

// DefaultBufferSize is the number of changes the recorder queues before it
// starts dropping them.
const DefaultBufferSize = 4096

type eventKind int

const (
	eventBeginRun eventKind = iota + 1
	eventChange
	eventEndRun
	eventFlush
)

type event struct {
	kind    eventKind
	run     engine.RunInfo
	change  engine.Change
	runID   string
	ticks   uint64
	at      time.Time
	flushed chan struct{}
}

// Recorder is the engine.Recorder backed by a Store.
//
// The engine calls it from the scan goroutine, so RecordChange never blocks:
// changes are queued and written by a single writer goroutine, and dropped
// (and counted) if the queue is full. Run boundaries are never dropped.
type Recorder struct {
	store  *Store
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	events  chan event
	done    chan struct{}
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// RecorderOption configures a Recorder.
type RecorderOption func(*recorderConfig)

type recorderConfig struct {
	bufferSize int
	logger     *slog.Logger
}

// WithBufferSize sets the change queue size.
func WithBufferSize(n int) RecorderOption {
	return func(c *recorderConfig) {
		c.bufferSize = n
	}
}

// WithRecorderLogger sets the logger used for write failures.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(c *recorderConfig) {
		c.logger = l
	}
}

// NewRecorder starts a recorder writing to s. Close it to drain the queue.
func NewRecorder(s *Store, opts ...RecorderOption) *Recorder {
	cfg := recorderConfig{bufferSize: DefaultBufferSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.bufferSize <= 0 {
		cfg.bufferSize = DefaultBufferSize
	}

	r := &Recorder{
		store:  s,
		logger: cfg.logger,
		events: make(chan event, cfg.bufferSize),
		done:   make(chan struct{}),
	}
	go r.loop()
	return r
}

// BeginRun implements engine.Recorder.
func (r *Recorder) BeginRun(run engine.RunInfo) {
	r.send(event{kind: eventBeginRun, run: run}, true)
}

// RecordChange implements engine.Recorder.
func (r *Recorder) RecordChange(c engine.Change) {
	r.send(event{kind: eventChange, change: c}, false)
}

// EndRun implements engine.Recorder.
func (r *Recorder) EndRun(runID string, ticks uint64) {
	r.send(event{kind: eventEndRun, runID: runID, ticks: ticks, at: time.Now()}, true)
}

// Flush waits until everything queued before the call has been written.
func (r *Recorder) Flush(ctx context.Context) error {
	ch := make(chan struct{})
	if !r.send(event{kind: eventFlush, flushed: ch}, true) {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns the number of changes dropped because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Failed returns the number of events whose write failed.
func (r *Recorder) Failed() uint64 {
	return r.failed.Load()
}

// Close drains the queue and stops the writer goroutine. It does not close
// the Store.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()

	<-r.done
	return nil
}

// send queues ev. Blocking sends wait for queue space; non-blocking sends
// drop the event when the queue is full. Returns false if the recorder is
// closed or the event was dropped.
func (r *Recorder) send(ev event, block bool) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false
	}
	if block {
		r.events <- ev
		return true
	}
	select {
	case r.events <- ev:
		return true
	default:
		if n := r.dropped.Add(1); n == 1 {
			r.logger.Warn("journal queue full, dropping changes")
		}
		return false
	}
}

func (r *Recorder) loop() {
	defer close(r.done)

	ctx := context.Background()
	for ev := range r.events {
		var err error
		switch ev.kind {
		case eventBeginRun:
			err = r.store.WriteRun(ctx, ev.run)
		case eventChange:
			err = r.store.WriteChange(ctx, ev.change)
		case eventEndRun:
			err = r.store.EndRun(ctx, ev.runID, ev.at.UnixNano(), ev.ticks)
		case eventFlush:
			close(ev.flushed)
		}
		if err != nil {
			r.failed.Add(1)
			r.logger.Error("journal write failed", "error", err)
		}
	}
}
