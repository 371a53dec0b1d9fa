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

// indexedJob remembers the submission position of a job
type indexedJob struct {
	seq int
	job Job
}

// indexedResult carries a result back to its submission slot
type indexedResult struct {
	seq    int
	result Result
}

// Pool runs jobs on a fixed number of workers. Results are returned in
// submission order regardless of which worker finishes first.
type Pool struct {
	workers    int
	jobQueue   chan indexedJob
	results    chan indexedResult
	collector  *ResultCollector
	submitted  int
	wg         sync.WaitGroup
	collected  chan struct{}
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// NewPool creates a new worker pool bound to ctx
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan indexedJob, workers*2),
		results:    make(chan indexedResult, workers*2),
		collector:  NewResultCollector(),
		collected:  make(chan struct{}),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the workers and the result collector
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	go func() {
		defer close(p.collected)
		for r := range p.results {
			p.collector.Put(r.seq, r.result)
		}
	}()
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case ij, ok := <-p.jobQueue:
			if !ok || p.ctx.Err() != nil {
				return
			}
			p.results <- indexedResult{seq: ij.seq, result: ij.job.Execute(p.ctx)}
		}
	}
}

// Submit queues a job. Submit must not be called concurrently or after Wait.
// It reports false if the pool was cancelled before the job was queued.
func (p *Pool) Submit(job Job) bool {
	if p.ctx.Err() != nil {
		return false
	}

	seq := p.submitted
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- indexedJob{seq: seq, job: job}:
		p.submitted++
		return true
	}
}

// Wait waits for all queued jobs and returns one slot per submitted job,
// in submission order. Slots of jobs that never ran after a cancellation are nil.
func (p *Pool) Wait() []Result {
	close(p.jobQueue)
	p.wg.Wait()
	p.closeResults()
	<-p.collected
	p.cancelFunc()

	return p.collector.Slots(p.submitted)
}

// Shutdown cancels outstanding work and waits for the workers to exit
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

// ResultCollector stores results by submission position (thread-safe)
type ResultCollector struct {
	results map[int]Result
	mu      sync.Mutex
}

// NewResultCollector creates a new result collector
func NewResultCollector() *ResultCollector {
	return &ResultCollector{
		results: make(map[int]Result),
	}
}

// Put stores the result for position seq
func (c *ResultCollector) Put(seq int, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[seq] = result
}

// Slots returns n results ordered by position; missing positions are nil
func (c *ResultCollector) Slots(n int) []Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	slots := make([]Result, n)
	for seq, r := range c.results {
		if seq >= 0 && seq < n {
			slots[seq] = r
		}
	}
	return slots
}
