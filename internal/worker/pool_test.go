package worker

import (
	"context"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/avolkov/patclaim/internal/model"
)

type countingJob struct {
	id      int
	counter *int64
}

func (j *countingJob) Execute(ctx context.Context) *model.BatchOutcome {
	atomic.AddInt64(j.counter, 1)
	return &model.BatchOutcome{BatchID: j.id}
}

func TestPoolRunsAllJobs(t *testing.T) {
	pool := NewPool(3)
	pool.Start()

	var counter int64
	const jobs = 20
	for i := 0; i < jobs; i++ {
		pool.Submit(&countingJob{id: i, counter: &counter})
	}

	outcomes := pool.Wait()
	if len(outcomes) != jobs {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), jobs)
	}
	if atomic.LoadInt64(&counter) != jobs {
		t.Errorf("executed %d jobs, want %d", counter, jobs)
	}

	// Completion order is arbitrary, but every batch ID must be present once.
	ids := make([]int, len(outcomes))
	for i, o := range outcomes {
		ids[i] = o.BatchID
	}
	sort.Ints(ids)
	for i, id := range ids {
		if id != i {
			t.Fatalf("batch IDs after sort = %v", ids)
		}
	}
}

func TestPoolSingleWorkerFallback(t *testing.T) {
	pool := NewPool(0) // Coerced to one worker
	pool.Start()

	var counter int64
	pool.Submit(&countingJob{id: 0, counter: &counter})

	if outcomes := pool.Wait(); len(outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(outcomes))
	}
}

type slowJob struct {
	started chan struct{}
}

func (j *slowJob) Execute(ctx context.Context) *model.BatchOutcome {
	close(j.started)
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
	return &model.BatchOutcome{}
}

func TestPoolShutdownCancelsJobs(t *testing.T) {
	pool := NewPool(1)
	pool.Start()

	job := &slowJob{started: make(chan struct{})}
	pool.Submit(job)

	<-job.started
	done := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not cancel the running job")
	}
}

func TestLimiterAllow(t *testing.T) {
	l := NewLimiter(1, 2)

	if !l.Allow("openai") {
		t.Error("first call within burst should be allowed")
	}
	if !l.Allow("openai") {
		t.Error("second call within burst should be allowed")
	}
	if l.Allow("openai") {
		t.Error("third immediate call should be throttled")
	}

	// A different provider has its own bucket.
	if !l.Allow("anthropic") {
		t.Error("separate provider should not share the bucket")
	}
}

func TestLimiterWaitHonorsContext(t *testing.T) {
	l := NewLimiter(0.001, 1)
	l.Allow("slow") // Drain the single burst token

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, "slow"); err == nil {
		t.Error("Wait should fail once the context expires")
	}
}

func TestLimiterSetProviderRate(t *testing.T) {
	l := NewLimiter(0.001, 1)
	l.SetProviderRate("fast", 1000, 100)

	for i := 0; i < 50; i++ {
		if !l.Allow("fast") {
			t.Fatalf("call %d throttled despite the raised rate", i)
		}
	}
}
