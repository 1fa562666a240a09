package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTickCounter_StartsAtZero(t *testing.T) {
	var c TickCounter
	assert.Equal(t, uint64(0), c.Current())
}

func TestTickCounter_Advance(t *testing.T) {
	var c TickCounter

	assert.Equal(t, uint64(1), c.Advance())
	assert.Equal(t, uint64(2), c.Advance())
	assert.Equal(t, uint64(2), c.Current())
}

func TestTickCounter_Reset(t *testing.T) {
	var c TickCounter
	c.Advance()
	c.Advance()

	c.Reset()
	assert.Equal(t, uint64(0), c.Current())
}

func TestTickCounter_ConcurrentReaders(t *testing.T) {
	var c TickCounter
	const ticks = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < ticks; i++ {
			c.Advance()
		}
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for j := 0; j < ticks; j++ {
				cur := c.Current()
				assert.GreaterOrEqual(t, cur, last, "counter went backwards")
				last = cur
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, uint64(ticks), c.Current())
}
