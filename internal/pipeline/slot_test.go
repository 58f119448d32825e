// SPDX-License-Identifier: MIT
package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotEmpty(t *testing.T) {
	var s Slot
	assert.Nil(t, s.Load())
}

func TestSlotPublishCopies(t *testing.T) {
	var s Slot
	bars := []float64{1, 2, 3}
	seq := s.Publish(bars)
	bars[0] = 99

	f := s.Load()
	require.NotNil(t, f)
	assert.Equal(t, uint64(1), seq)
	assert.Equal(t, []float64{1, 2, 3}, f.Bars)
	assert.Same(t, f, s.Load(), "loading does not consume the frame")
}

// TestSlotNoTornReads publishes vectors whose entries all equal the vector's
// length as fast as possible while readers check every snapshot.
func TestSlotNoTornReads(t *testing.T) {
	var s Slot
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]float64, 64)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			n := 1 + i%64
			for j := range n {
				buf[j] = float64(n)
			}
			s.Publish(buf[:n])
		}
	}()

	var torn int
	var mu sync.Mutex
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var lastSeq uint64
			deadline := time.Now().Add(100 * time.Millisecond)
			for time.Now().Before(deadline) {
				f := s.Load()
				if f == nil {
					continue
				}
				bad := f.Seq < lastSeq
				for _, v := range f.Bars {
					if v != float64(len(f.Bars)) {
						bad = true
					}
				}
				if bad {
					mu.Lock()
					torn++
					mu.Unlock()
				}
				lastSeq = f.Seq
			}
		}()
	}

	time.Sleep(120 * time.Millisecond)
	close(stop)
	wg.Wait()

	assert.Zero(t, torn)
	assert.Greater(t, s.Load().Seq, uint64(100))
}
