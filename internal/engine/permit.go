package engine

// permit is a counting permit that starts at zero, like a semaphore
// initialised with sem_init(.., 0). Release never blocks: once capacity
// releases are outstanding, further releases are refused and the caller
// counts an overrun.
type permit struct {
	ch chan struct{}
}

func newPermit(capacity int) *permit {
	return &permit{ch: make(chan struct{}, capacity)}
}

// release adds one permit. Returns false if the permit is saturated.
func (p *permit) release() bool {
	select {
	case p.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// acquire returns the channel to receive from to take one permit. Receiving
// inside a select lets the caller also watch a quit channel.
func (p *permit) acquire() <-chan struct{} {
	return p.ch
}

// pending returns the number of outstanding permits.
func (p *permit) pending() int {
	return len(p.ch)
}
