package observer

import (
	"sync"
	"time"
)

// DefaultFeedSize is the number of change entries the feed retains.
const DefaultFeedSize = 1024

// Entry is one program write: the stored value and the tick that made it.
type Entry struct {
	Seq    uint64    `json:"seq"`
	Index  int       `json:"index"`
	Name   string    `json:"name"`
	Value  int32     `json:"value"`
	Forced bool      `json:"forced"`
	Tick   uint64    `json:"tick"`
	At     time.Time `json:"at"`
}

// Feed is a bounded ring of change entries with monotonically increasing
// sequence numbers. Readers poll with the last sequence they saw.
type Feed struct {
	mu   sync.Mutex
	ring []Entry
	next uint64 // seq assigned to the next entry; seqs start at 1
}

// NewFeed creates a feed retaining the last size entries.
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{ring: make([]Entry, 0, size), next: 1}
}

func (f *Feed) append(e Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e.Seq = f.next
	f.next++
	if len(f.ring) < cap(f.ring) {
		f.ring = append(f.ring, e)
		return
	}
	copy(f.ring, f.ring[1:])
	f.ring[len(f.ring)-1] = e
}

// Since returns the retained entries with Seq > seq, oldest first, and the
// highest sequence number handed out so far.
func (f *Feed) Since(seq uint64) ([]Entry, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Entry, 0)
	for _, e := range f.ring {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out, f.next - 1
}
