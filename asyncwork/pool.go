// Package asyncwork implements a small bounded worker pool used anywhere
// the engine needs to fan a batch of independent tasks out across
// goroutines and collect their results or errors, generalized from the
// broker's query fan-out.
package asyncwork

import "sync"

// Task is one unit of work submitted to a Pool.
type Task func() error

// Pool runs submitted tasks across at most Concurrency goroutines at once,
// collecting every error rather than failing fast on the first one — a
// single bad shard or fixture should not hide errors from its siblings.
type Pool struct {
	concurrency int
}

// New constructs a Pool that runs at most concurrency tasks at a time. A
// concurrency of 0 or less means "unbounded".
func New(concurrency int) *Pool {
	return &Pool{concurrency: concurrency}
}

// Run executes every task, blocking until all have completed, and returns
// every non-nil error in submission order.
func (p *Pool) Run(tasks []Task) []error {
	if len(tasks) == 0 {
		return nil
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		errs   = make([]error, len(tasks))
		sem    chan struct{}
	)
	if p.concurrency > 0 {
		sem = make(chan struct{}, p.concurrency)
	}

	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task Task) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			if err := task(); err != nil {
				mu.Lock()
				errs[i] = err
				mu.Unlock()
			}
		}(i, task)
	}

	wg.Wait()

	var out []error
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
