// Package engine implements the scan runtime: a soft real-time cyclic
// executor for an IEC 61131-3 style control program.
//
// ARCHITECTURE:
//
// Periodic timer -> timer permit -> scan goroutine:
// A ticker goroutine records the wall-clock time of each expiry and releases
// one timer permit. The scan goroutine takes one permit per iteration and
// runs one tick, so it never runs ahead of the timer. Expiries that arrive
// while MaxPendingTicks permits are already outstanding are dropped and
// counted as overruns.
//
// Tick critical section:
// The program's Run is called with the tick lock held. External writes
// (WriteInt, Force, Release) take the same lock, so an external write lands
// either wholly before or wholly after a tick body, never inside one. A due
// tick goes ahead of access calls that have not yet taken the lock, and a
// tick that starts with more expiries already queued is counted as lagged.
//
// Notification:
// Program writes go through Writer.Set, which honours the force flag and
// queues a notification for every write. The queue is drained by the scan
// goroutine after the tick lock is released; the registered ChangeFunc or NotifyFunc may
// therefore call back into the access layer.
//
// Lifecycle:
// NotRunning -> Running -> NotRunning. Start runs Program.Init and any
// configured initial values before the scan goroutine exists. Stop is
// cooperative: a tick in progress completes, then the scan goroutine exits.
// With Config.TrapSignals, SIGINT/SIGTERM flag a stop request and a watcher
// goroutine performs the Stop.
//
// ERROR HANDLING:
//
// Setup and teardown failures are returned from Start/Stop as RuntimeError.
// Faults inside a tick (no observer registered, write to an unlocated
// variable, program panic) are logged, counted in Stats, and the tick
// continues: liveness wins over failing fast.
package engine
