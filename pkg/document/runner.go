package document

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Runner executes independent tasks and waits for all of them.
type Runner interface {
	// Workers is the number of tasks the runner executes at once
	Workers() int

	// Run calls task(i) for i in [0, n) and returns when all calls
	// have returned.
	Run(n int, task func(i int))
}

// ParallelRunner runs tasks on a bounded number of goroutines.
type ParallelRunner struct {
	workers int
}

// NewParallelRunner returns a runner with the given number of workers.
// Zero or less means runtime.GOMAXPROCS(0).
func NewParallelRunner(workers int) *ParallelRunner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &ParallelRunner{workers: workers}
}

func (r *ParallelRunner) Workers() int { return r.workers }

func (r *ParallelRunner) Run(n int, task func(i int)) {
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			task(i)
			return nil
		})
	}
	g.Wait()
}

// SerialRunner runs every task on the calling goroutine.
type SerialRunner struct{}

func (SerialRunner) Workers() int { return 1 }

func (SerialRunner) Run(n int, task func(i int)) {
	for i := 0; i < n; i++ {
		task(i)
	}
}
