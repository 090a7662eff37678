package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundsUpToPowerOfTwo(t *testing.T) {
	for n, want := range map[int]int{0: 1, 1: 1, 2: 2, 3: 4, 255: 256, 256: 256} {
		s := New(n)
		assert.Len(t, s.stripes, want, "stripes for n=%d", n)
	}
}

func TestMutualExclusionPerStripe(t *testing.T) {
	s := New(4)
	counters := make([]int, 8)

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				h := uint64(i % len(counters))
				s.Lock(h)
				counters[h]++
				s.Unlock(h)
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, c := range counters {
		total += c
	}
	assert.Equal(t, 16*1000, total)
}
