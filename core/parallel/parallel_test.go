package parallel

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeCoversEveryIndexOnce(t *testing.T) {
	for _, workers := range []int{1, 3, 8, 200} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			hits := make([]int32, 100)
			ParallelizeN(len(hits), workers, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
			})
			for i, h := range hits {
				assert.Equal(t, int32(1), h, "index %d", i)
			}
		})
	}
}

func TestParallelizeZeroItems(t *testing.T) {
	called := false
	Parallelize(0, func(start, end int) { called = true })
	assert.False(t, called)
}

func TestForEachReturnsLowestError(t *testing.T) {
	var ran int32
	err := ForEach(10, 4, func(i int) error {
		atomic.AddInt32(&ran, 1)
		if i == 3 || i == 7 {
			return fmt.Errorf("tree %d failed", i)
		}
		return nil
	})
	assert.EqualError(t, err, "tree 3 failed")
	assert.Equal(t, int32(10), ran)

	assert.NoError(t, ForEach(5, 0, func(int) error { return nil }))
}

func TestParallelizeWithThreshold(t *testing.T) {
	var calls int32
	ParallelizeWithThreshold(5, 10, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, 0, start)
		assert.Equal(t, 5, end)
	})
	assert.Equal(t, int32(1), calls)
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, 4, Workers(4))
	assert.Positive(t, Workers(-1))
}
