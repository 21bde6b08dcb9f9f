package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// indexed tags a result with the position of the job that produced it
type indexed struct {
	idx    int
	result Result
}

// Pool manages a pool of workers that execute jobs concurrently.
// A pool is single use: Start, Submit jobs, then Wait.
type Pool struct {
	workers    int
	jobQueue   chan indexedJob
	results    chan indexed
	submitted  int
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

type indexedJob struct {
	idx int
	job Job
}

// NewPool creates a new worker pool bound to ctx with the specified number of workers
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan indexedJob, workers*2),
		results:    make(chan indexed, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case ij, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := ij.job.Execute(p.ctx)
			select {
			case p.results <- indexed{idx: ij.idx, result: result}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit submits a job to the pool for execution.
// It returns false if the pool's context is done.
func (p *Pool) Submit(job Job) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- indexedJob{idx: p.submitted, job: job}:
		p.submitted++
		return true
	}
}

// Wait waits for all jobs to complete and returns the results in submission order.
// Jobs that never ran because the context ended leave a nil slot.
func (p *Pool) Wait() []Result {
	close(p.jobQueue)

	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	results := make([]Result, p.submitted)
	for r := range p.results {
		results[r.idx] = r.result
	}

	p.cancelFunc()
	return results
}

// Shutdown shuts down the worker pool immediately
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}

// RunAll executes jobs on a pool of at most workers goroutines and
// returns their results in the order of jobs.
func RunAll(ctx context.Context, workers int, jobs ...Job) []Result {
	if len(jobs) == 0 {
		return nil
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	pool := NewPool(ctx, workers)
	pool.Start()

	// Submit from a separate goroutine so a full queue never blocks result collection
	go func() {
		for _, job := range jobs {
			if !pool.Submit(job) {
				break
			}
		}
	}()

	return pool.waitFor(len(jobs))
}

// waitFor collects exactly n results, or stops early when the context ends.
func (p *Pool) waitFor(n int) []Result {
	results := make([]Result, n)
	for received := 0; received < n; received++ {
		select {
		case r := <-p.results:
			results[r.idx] = r.result
		case <-p.ctx.Done():
			p.Shutdown()
			return results
		}
	}
	p.cancelFunc()
	p.wg.Wait()
	return results
}
