package dispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogicalClock(t *testing.T) {
	c := NewLogicalClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestLogicalClockAt(t *testing.T) {
	c := NewLogicalClockAt(41)
	assert.Equal(t, int64(42), c.Next())
}

func TestLogicalClockConcurrent(t *testing.T) {
	c := NewLogicalClock()
	var (
		mu   sync.Mutex
		seen = make(map[int64]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := c.Next()
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 100)
	assert.Equal(t, int64(100), c.Current())
}
