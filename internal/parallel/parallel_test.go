package parallel

import (
	"sync/atomic"
	"testing"
)

func TestForCoversRangeOnce(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 16} {
		for _, n := range []int{0, 1, 63, 64, 1000} {
			hits := make([]int32, n)
			For(n, workers, func(lo, hi int) {
				for i := lo; i < hi; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
			})
			for i, h := range hits {
				if h != 1 {
					t.Fatalf("workers=%d n=%d: index %d visited %d times", workers, n, i, h)
				}
			}
		}
	}
}

func TestForRowsCoversRowsOnce(t *testing.T) {
	for _, workers := range []int{1, 2, 8} {
		rows := 37
		hits := make([]int32, rows)
		ForRows(rows, workers, func(j int) {
			atomic.AddInt32(&hits[j], 1)
		})
		for j, h := range hits {
			if h != 1 {
				t.Fatalf("workers=%d: row %d visited %d times", workers, j, h)
			}
		}
	}
}

func TestWorkers(t *testing.T) {
	if Workers(3) != 3 {
		t.Errorf("Workers(3) = %d, want 3", Workers(3))
	}
	if Workers(0) < 1 {
		t.Errorf("Workers(0) = %d, want >= 1", Workers(0))
	}
}
