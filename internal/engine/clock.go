package engine

import "sync/atomic"

// TickCounter is the monotonic count of completed ticks.
//
// The scan goroutine is the only writer; readers on other goroutines see a
// consistent value through the atomic.
type TickCounter struct {
	n atomic.Uint64
}

// Current returns the number of completed ticks. This is also the index
// handed to the program for the tick about to run.
func (c *TickCounter) Current() uint64 {
	return c.n.Load()
}

// Advance records one completed tick and returns the new count.
func (c *TickCounter) Advance() uint64 {
	return c.n.Add(1)
}

// Reset sets the counter back to zero. Called on Stop.
func (c *TickCounter) Reset() {
	c.n.Store(0)
}
