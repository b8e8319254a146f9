// Package parallel splits index ranges across goroutines. Every worker owns
// a disjoint contiguous range, so callers that write only to their own range
// get results independent of scheduling.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minChunk is the smallest range handed to one goroutine.
const minChunk = 64

// Workers normalizes a requested worker count: 0 or negative selects
// GOMAXPROCS.
func Workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// For calls fn over [0, n) split into contiguous chunks run by at most
// workers goroutines. Small ranges run inline on the caller's goroutine.
func For(n, workers int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	workers = Workers(workers)
	chunks := workers * 4
	if limit := (n + minChunk - 1) / minChunk; chunks > limit {
		chunks = limit
	}
	if workers == 1 || chunks <= 1 {
		fn(0, n)
		return
	}

	var g errgroup.Group
	g.SetLimit(workers)
	size := (n + chunks - 1) / chunks
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}

// ForRows is For with a row granularity of one: each chunk holds whole rows
// and fn is called once per row.
func ForRows(rows, workers int, fn func(row int)) {
	if rows <= 0 {
		return
	}
	workers = Workers(workers)
	if workers == 1 || rows == 1 {
		for j := 0; j < rows; j++ {
			fn(j)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(workers)
	size := (rows + workers*4 - 1) / (workers * 4)
	for lo := 0; lo < rows; lo += size {
		hi := min(lo+size, rows)
		g.Go(func() error {
			for j := lo; j < hi; j++ {
				fn(j)
			}
			return nil
		})
	}
	_ = g.Wait()
}
