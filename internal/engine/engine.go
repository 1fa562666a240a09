package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/scanrt/internal/vartable"
)

// DefaultMaxPendingTicks bounds how many timer expiries may queue up while a
// tick overruns its interval. Further expiries are dropped and counted.
const DefaultMaxPendingTicks = 64

// Config holds the engine parameters. It is read once by New.
type Config struct {
	// TickIntervalNS is the scan period in nanoseconds.
	TickIntervalNS int64

	// MaxPendingTicks caps the timer permit. Zero means DefaultMaxPendingTicks.
	MaxPendingTicks int

	// TrapSignals installs SIGINT/SIGTERM handling that stops the engine.
	TrapSignals bool

	// Initial holds values, by variable name, stored during the
	// initialization phase after Program.Init and before the first tick.
	Initial map[string]int32
}

// ScanState is a snapshot of the scheduler state.
type ScanState struct {
	Running     bool
	RunID       string
	Ticks       uint64
	CurrentTime time.Time
}

// Stats holds the engine's fault and throughput counters. Counters persist
// across runs.
type Stats struct {
	Ticks            uint64 `json:"ticks"`
	Overruns         uint64 `json:"overruns"`
	Lagged           uint64 `json:"lagged"`
	Notifications    uint64 `json:"notifications"`
	NoObserver       uint64 `json:"no_observer"`
	UnknownVariables uint64 `json:"unknown_variables"`
	ProgramPanics    uint64 `json:"program_panics"`
	CallbackPanics   uint64 `json:"callback_panics"`
}

type counters struct {
	ticks            atomic.Uint64
	overruns         atomic.Uint64
	lagged           atomic.Uint64
	notifications    atomic.Uint64
	noObserver       atomic.Uint64
	unknownVariables atomic.Uint64
	programPanics    atomic.Uint64
	callbackPanics   atomic.Uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRecorder attaches a change recorder, such as the SQLite journal.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithRunIDGenerator overrides the run ID source. Defaults to UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// Engine is the scan runtime: it owns the variable table, the periodic timer,
// the scan goroutine and the tick counter.
//
// Thread-safety model:
//   - Start/Stop: safe from any goroutine, serialized by mu. Must not be
//     called from the program or from a ChangeFunc, which run on the scan
//     goroutine that Stop waits for.
//   - Access layer (ReadInt, WriteInt, Force, Release): safe from any
//     goroutine; serialized against the tick body by tickMu. A tick that
//     is due takes the lock ahead of access calls still waiting for it.
//   - ReadRef: returns the live value container. Reads through it are not
//     synchronized with the scan goroutine.
//   - RegisterCallback: safe from any goroutine, including a ChangeFunc.
type Engine struct {
	prog     Program
	table    *vartable.Table
	cfg      Config
	logger   *slog.Logger
	recorder Recorder
	runIDs   RunIDGenerator

	// mu serializes Start and Stop.
	mu sync.Mutex

	// tickMu is held for the whole tick body and for every external access.
	// gate gives the tick priority: the scan goroutine write-locks it
	// before tickMu, access calls read-lock it, so a waiting tick blocks
	// new access calls.
	tickMu sync.Mutex
	gate   sync.RWMutex

	running       atomic.Bool
	stopRequested atomic.Bool
	runID         atomic.Pointer[string]
	ticks         TickCounter
	now           atomic.Int64
	writer        *Writer
	callback      atomic.Pointer[NotifyFunc]
	stats         counters

	// Per-run resources, guarded by mu.
	runCancel   context.CancelFunc
	timerPermit *permit
	timer       *tickTimer
	quit        chan struct{}
	scanDone    chan struct{}
	sigCh       chan os.Signal
	sigQuit     chan struct{}

	doneMu sync.Mutex
	done   chan struct{}
}

// New creates an engine for prog. The variable table is built from
// prog.Locate() and fixed for the engine's lifetime.
func New(prog Program, cfg Config, opts ...Option) (*Engine, error) {
	if prog == nil {
		return nil, newInitError("build table", errors.New("nil program"))
	}
	table, err := vartable.New(prog.Locate())
	if err != nil {
		return nil, newInitError("build table", err)
	}

	if cfg.MaxPendingTicks <= 0 {
		cfg.MaxPendingTicks = DefaultMaxPendingTicks
	}

	e := &Engine{
		prog:   prog,
		table:  table,
		cfg:    cfg,
		logger: slog.Default(),
		runIDs: UUIDv7Generator{},
		done:   make(chan struct{}),
	}
	close(e.done)
	e.writer = newWriter(e)

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Start brings the engine from NotRunning to Running: it runs the
// initialization phase, spawns the scan goroutine, arms the periodic timer
// and, if configured, traps termination signals.
//
// Calling Start while running is a no-op and returns nil.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running.Load() {
		e.logger.Debug("start ignored, engine already running", "run_id", e.currentRunID())
		return nil
	}

	ns := e.cfg.TickIntervalNS
	if ns <= 0 {
		return newInitError("compute tick interval", fmt.Errorf("tick interval must be positive, got %dns", ns))
	}
	sec, nsec := splitInterval(ns)

	runID := e.runIDs.Generate()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	e.ticks.Reset()
	e.now.Store(time.Now().UnixNano())
	e.stopRequested.Store(false)
	e.runID.Store(&runID)

	if e.recorder != nil {
		e.recorder.BeginRun(RunInfo{
			ID:             runID,
			StartedAt:      time.Now(),
			TickIntervalNS: ns,
			Variables:      e.table.Len(),
		})
	}

	if err := e.initialize(runCtx, runID); err != nil {
		cancel()
		if e.recorder != nil {
			e.recorder.EndRun(runID, 0)
		}
		e.runID.Store(nil)
		return newInitError("initialize program", err)
	}

	e.runCancel = cancel
	e.timerPermit = newPermit(e.cfg.MaxPendingTicks)
	e.quit = make(chan struct{})
	e.scanDone = make(chan struct{})

	e.doneMu.Lock()
	e.done = make(chan struct{})
	e.doneMu.Unlock()

	e.running.Store(true)
	go e.scanLoop(runCtx, e.quit, e.scanDone, e.timerPermit)

	e.timer = newTickTimer(time.Duration(ns), e.timerPermit, &e.now, e.overrun)
	e.timer.arm()

	if e.cfg.TrapSignals {
		e.watchSignals(runID)
	}

	e.logger.Info("engine started",
		"run_id", runID,
		"tick_interval_ns", ns,
		"tick_sec", sec,
		"tick_nsec", nsec,
		"variables", e.table.Len(),
	)
	return nil
}

// Stop brings the engine from Running to NotRunning. A tick in progress
// always completes first. Stop then waits for the scan goroutine, disarms
// the timer and removes signal handling.
//
// Every teardown step is attempted even if an earlier one fails; the first
// failure is returned as a ShutdownError and later ones are logged. ctx
// bounds how long Stop waits for the scan goroutine and the timer.
//
// Stop on a stopped engine is a no-op. It must not be called from a change
// callback, which runs on the scan goroutine Stop waits for.
func (e *Engine) Stop(ctx context.Context) error {
	return e.stop(ctx, "")
}

// stop stops the run identified by runID, or whatever run is active if
// runID is empty.
func (e *Engine) stop(ctx context.Context, runID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopLocked(ctx, runID)
}

// stopLocked is stop with mu already held.
func (e *Engine) stopLocked(ctx context.Context, runID string) error {
	if !e.running.Load() {
		return nil
	}
	current := e.currentRunID()
	if runID != "" && runID != current {
		return nil
	}

	e.running.Store(false)
	close(e.quit)

	var errs []error
	if err := waitDone(ctx, e.scanDone); err != nil {
		errs = append(errs, newShutdownError("join scan loop", err))
	}
	e.runCancel()

	if err := waitDone(ctx, e.timer.disarm()); err != nil {
		errs = append(errs, newShutdownError("disarm timer", err))
	}

	if e.cfg.TrapSignals {
		e.stopSignals()
	}

	ticks := e.ticks.Current()
	if e.recorder != nil {
		e.recorder.EndRun(current, ticks)
	}

	e.ticks.Reset()
	e.runID.Store(nil)
	e.timerPermit = nil
	e.timer = nil

	e.doneMu.Lock()
	close(e.done)
	e.doneMu.Unlock()

	e.logger.Info("engine stopped", "run_id", current, "ticks", ticks)

	if len(errs) == 0 {
		return nil
	}
	for _, err := range errs[1:] {
		e.logger.Error("teardown step failed", "run_id", current, "error", err)
	}
	return errs[0]
}

// Done returns a channel closed when the current run ends. Before the first
// Start, and after Stop, the returned channel is already closed.
func (e *Engine) Done() <-chan struct{} {
	e.doneMu.Lock()
	defer e.doneMu.Unlock()
	return e.done
}

// Running reports whether the engine is running.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// State returns a snapshot of the scheduler state.
func (e *Engine) State() ScanState {
	return ScanState{
		Running:     e.running.Load(),
		RunID:       e.currentRunID(),
		Ticks:       e.ticks.Current(),
		CurrentTime: time.Unix(0, e.now.Load()),
	}
}

// Stats returns the engine's counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Ticks:            e.stats.ticks.Load(),
		Overruns:         e.stats.overruns.Load(),
		Lagged:           e.stats.lagged.Load(),
		Notifications:    e.stats.notifications.Load(),
		NoObserver:       e.stats.noObserver.Load(),
		UnknownVariables: e.stats.unknownVariables.Load(),
		ProgramPanics:    e.stats.programPanics.Load(),
		CallbackPanics:   e.stats.callbackPanics.Load(),
	}
}

// RegisterCallback sets the observer callback, replacing any previous one.
// Passing nil unregisters. Once RegisterCallback returns, the previous
// callback is not invoked again.
func (e *Engine) RegisterCallback(fn ChangeFunc) {
	if fn == nil {
		e.callback.Store(nil)
		return
	}
	e.RegisterNotifier(func(n Notification) { fn(n.Index) })
}

// RegisterNotifier is RegisterCallback for a NotifyFunc. Both share the one
// observer slot: the last registration of either kind wins.
func (e *Engine) RegisterNotifier(fn NotifyFunc) {
	if fn == nil {
		e.callback.Store(nil)
		return
	}
	e.callback.Store(&fn)
}

func (e *Engine) currentRunID() string {
	if p := e.runID.Load(); p != nil {
		return *p
	}
	return ""
}

// initialize runs Program.Init and applies configured initial values. It runs
// before the scan goroutine exists, under the tick lock.
func (e *Engine) initialize(ctx context.Context, runID string) error {
	e.lockTick()
	e.writer.begin(0)

	err := e.callInit(ctx)
	if err == nil {
		err = e.applyInitial(runID)
	}
	pending := e.writer.pending
	e.unlockTick()

	if err != nil {
		return err
	}
	e.dispatch(runID, 0, pending)
	return nil
}

func (e *Engine) callInit(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("program init panicked: %v", r)
		}
	}()
	return e.prog.Init(ctx, e.writer)
}

func (e *Engine) applyInitial(runID string) error {
	for name, value := range e.cfg.Initial {
		idx, err := e.table.Lookup(name)
		if err != nil {
			return fmt.Errorf("initial value: %w", err)
		}
		v, _ := e.table.Ref(idx)
		v.Value = value
		e.record(runID, 0, idx, v, SourceExternal)
	}
	return nil
}

// scanLoop is the scan goroutine. Each iteration waits for one timer permit
// and runs one tick.
func (e *Engine) scanLoop(ctx context.Context, quit <-chan struct{}, done chan<- struct{}, p *permit) {
	defer close(done)

	runID := e.currentRunID()
	for e.running.Load() && !e.stopRequested.Load() {
		select {
		case <-quit:
			return
		case <-p.acquire():
		}
		if !e.running.Load() {
			return
		}
		if backlog := p.pending(); backlog > 0 {
			e.lag(backlog)
		}
		e.runTick(ctx, runID)
	}
}

// runTick executes one tick: the program body under the tick lock, then
// notification dispatch outside it.
func (e *Engine) runTick(ctx context.Context, runID string) {
	tick := e.ticks.Current()

	e.lockTick()
	e.writer.begin(tick)
	e.callRun(ctx, tick)
	e.ticks.Advance()
	pending := e.writer.pending
	e.unlockTick()

	e.stats.ticks.Add(1)
	e.dispatch(runID, tick, pending)
}

func (e *Engine) callRun(ctx context.Context, tick uint64) {
	defer func() {
		if r := recover(); r != nil {
			e.stats.programPanics.Add(1)
			e.logger.Error("program panicked during tick", "tick", tick, "panic", r)
		}
	}()
	e.prog.Run(ctx, e.writer, tick)
}

// dispatch reports queued program writes to the observer and the recorder.
func (e *Engine) dispatch(runID string, tick uint64, pending []pendingChange) {
	for _, c := range pending {
		e.stats.notifications.Add(1)
		if e.recorder != nil {
			e.recordPending(runID, tick, c)
		}

		fn := e.callback.Load()
		if fn == nil {
			n := e.stats.noObserver.Add(1)
			err := newNoObserverError(c.index)
			if n == 1 {
				e.logger.Warn("variable change not delivered", "tick", tick, "error", err)
			} else {
				e.logger.Debug("variable change not delivered", "tick", tick, "error", err)
			}
			continue
		}
		e.invokeCallback(*fn, Notification{Index: c.index, Value: c.value, Forced: c.forced, Tick: tick})
	}
}

func (e *Engine) invokeCallback(fn NotifyFunc, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			e.stats.callbackPanics.Add(1)
			e.logger.Error("change callback panicked", "tick", n.Tick, "index", n.Index, "panic", r)
		}
	}()
	fn(n)
}

func (e *Engine) unknownVariable(tick uint64) {
	e.stats.unknownVariables.Add(1)
	e.logger.Error("program wrote an unlocated variable", "tick", tick, "error", newUnknownVariableError())
}

// lag counts a tick that starts while further timer expiries are already
// queued, i.e. the scan loop is running behind the timer.
func (e *Engine) lag(backlog int) {
	n := e.stats.lagged.Add(1)
	if n == 1 {
		e.logger.Warn("scan loop behind timer", "backlog", backlog)
	} else {
		e.logger.Debug("scan loop behind timer", "backlog", backlog, "lagged", n)
	}
}

func (e *Engine) lockTick() {
	e.gate.Lock()
	e.tickMu.Lock()
}

func (e *Engine) unlockTick() {
	e.tickMu.Unlock()
	e.gate.Unlock()
}

func (e *Engine) lockAccess() {
	e.gate.RLock()
	e.tickMu.Lock()
}

func (e *Engine) unlockAccess() {
	e.tickMu.Unlock()
	e.gate.RUnlock()
}

func (e *Engine) overrun() {
	n := e.stats.overruns.Add(1)
	e.logger.Warn("tick overrun, timer expiry dropped", "overruns", n)
}

func (e *Engine) recordPending(runID string, tick uint64, c pendingChange) {
	s, _ := e.table.Slot(c.index)
	e.recorder.RecordChange(Change{
		RunID:  runID,
		Tick:   tick,
		Index:  c.index,
		Name:   s.Name,
		Value:  c.value,
		Forced: c.forced,
		Source: SourceProgram,
		At:     time.Now(),
	})
}

// record sends an external change to the recorder. Must be called with the
// tick lock held, since it reads v.
func (e *Engine) record(runID string, tick uint64, index int, v *vartable.Var, src Source) {
	if e.recorder == nil || runID == "" {
		return
	}
	s, _ := e.table.Slot(index)
	e.recorder.RecordChange(Change{
		RunID:  runID,
		Tick:   tick,
		Index:  index,
		Name:   s.Name,
		Value:  v.Value,
		Forced: v.Forced(),
		Source: src,
		At:     time.Now(),
	})
}

func waitDone(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
