package worker

import (
	"context"
	"sync"

	"github.com/avolkov/patclaim/internal/model"
)

// Job is one unit of batch-analysis work. Jobs never fail: a degraded
// analysis still produces an outcome.
type Job interface {
	Execute(ctx context.Context) *model.BatchOutcome
}

// Pool runs batch-analysis jobs on a bounded set of workers. Batches share
// no mutable state, so any interleaving is safe.
type Pool struct {
	workers    int
	jobQueue   chan Job
	results    chan *model.BatchOutcome
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// NewPool creates a pool with the specified number of workers
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2), // Buffered to prevent blocking
		results:    make(chan *model.BatchOutcome, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker goroutines
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
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			outcome := job.Execute(p.ctx)
			select {
			case p.results <- outcome:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job for execution
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
		return
	case p.jobQueue <- job:
	}
}

// Wait blocks until every submitted job has finished and returns all
// outcomes. Order is completion order, not submission order; callers that
// need batch order must sort by BatchID.
func (p *Pool) Wait() []*model.BatchOutcome {
	close(p.jobQueue)

	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	var outcomes []*model.BatchOutcome
	for outcome := range p.results {
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

// Shutdown stops the pool immediately
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
