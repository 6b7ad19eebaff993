// Package workers provides a fixed-size gang of goroutines for
// parallel page setup and whole-generation scans.
//
// The gang is deliberately minimal: every Run fans the task out to all
// workers and waits for them to finish. There is no task queue and no
// cancellation; the callers (space initialization, block iteration)
// partition their own work by worker index.
package workers

import "sync"

// Gang runs tasks across a fixed number of workers.
type Gang struct {
	n int
}

// NewGang returns a gang with n workers. Values below one are raised
// to one so a zero-configured gang still makes progress.
func NewGang(n int) *Gang {
	if n < 1 {
		n = 1
	}
	return &Gang{n: n}
}

// Workers returns the number of workers in the gang.
func (g *Gang) Workers() int {
	return g.n
}

// Run invokes task once per worker, passing each its index in
// [0, Workers()), and blocks until every invocation returns.
func (g *Gang) Run(task func(worker int)) {
	var wg sync.WaitGroup
	wg.Add(g.n)
	for w := 0; w < g.n; w++ {
		go func(worker int) {
			defer wg.Done()
			task(worker)
		}(w)
	}
	wg.Wait()
}
