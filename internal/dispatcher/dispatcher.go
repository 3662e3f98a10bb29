package dispatcher

import (
	"container/heap"
	"context"
	"fmt"
	"log"
	"sync"
)

// Priority ranks queued requests; lower numeric value dispatches first.
// Foundation-phase checks (identity, employment, education) get the
// highest priority since every other information type depends on them.
type Priority int

const (
	PriorityFoundation Priority = 0
	PriorityRecords    Priority = 1
	PriorityIntel      Priority = 2
	PriorityNetwork    Priority = 3
	PriorityLow        Priority = 4
)

// Job is a unit of dispatchable work: executing it performs the actual
// outbound provider query. Run must be safe to call from a worker
// goroutine.
type Job struct {
	ID       string
	Priority Priority
	Run      func(ctx context.Context) error
	Result   chan error
	ctx      context.Context
}

type queueItem struct {
	job      *Job
	seq      int
	index    int
}

type priorityQueue []*queueItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].job.Priority != pq[j].job.Priority {
		return pq[i].job.Priority < pq[j].job.Priority
	}
	// FIFO within the same priority band
	return pq[i].seq < pq[j].seq
}
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}
func (pq *priorityQueue) Push(x interface{}) {
	item := x.(*queueItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

// Dispatcher is the PriorityDispatcher: a single global token bucket gates
// how many outbound provider queries run per second across all tenants and
// screenings, while a priority queue ensures foundation-type queries are
// served ahead of lower-priority ones when the bucket is the bottleneck.
type Dispatcher struct {
	bucket *TokenBucket
	burst  chan struct{} // bounds in-flight concurrency regardless of token rate

	mu    sync.Mutex
	cond  *sync.Cond
	queue priorityQueue
	seq   int

	logger *log.Logger
	done   chan struct{}
}

// Config configures the dispatcher's global capacity.
type Config struct {
	GlobalCapacity     int
	GlobalRefillPerSec float64
	BurstSize          int
	QueueDepth         int
}

// New creates a dispatcher and starts its dispatch loop. Callers call
// Submit to enqueue work and Shutdown to stop the loop.
func New(cfg Config) *Dispatcher {
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 10
	}
	d := &Dispatcher{
		bucket: NewTokenBucket(cfg.GlobalCapacity, cfg.GlobalRefillPerSec),
		burst:  make(chan struct{}, cfg.BurstSize),
		logger: log.New(log.Writer(), "[DISPATCHER] ", log.LstdFlags),
		done:   make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

// Submit enqueues a job and blocks until it has been run (or ctx is
// cancelled). It returns the job's execution error.
func (d *Dispatcher) Submit(ctx context.Context, job *Job) error {
	job.Result = make(chan error, 1)
	job.ctx = ctx

	d.mu.Lock()
	d.seq++
	item := &queueItem{job: job, seq: d.seq}
	heap.Push(&d.queue, item)
	d.cond.Signal()
	d.mu.Unlock()

	select {
	case err := <-job.Result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loop pulls the highest-priority job, waits for a token and a burst slot,
// then runs it in its own goroutine so slow providers don't block the
// queue from draining lower-priority work once capacity frees up.
func (d *Dispatcher) loop() {
	for {
		d.mu.Lock()
		for d.queue.Len() == 0 {
			select {
			case <-d.done:
				d.mu.Unlock()
				return
			default:
			}
			d.cond.Wait()
		}
		item := heap.Pop(&d.queue).(*queueItem)
		d.mu.Unlock()

		select {
		case <-d.done:
			item.job.Result <- fmt.Errorf("dispatcher shut down")
			return
		default:
		}

		jobCtx := item.job.ctx
		if jobCtx == nil {
			jobCtx = context.Background()
		}

		if err := d.bucket.Wait(jobCtx, 1); err != nil {
			item.job.Result <- err
			continue
		}

		d.burst <- struct{}{}
		go func(it *queueItem, ctx context.Context) {
			defer func() { <-d.burst }()
			err := it.job.Run(ctx)
			it.job.Result <- err
		}(item, jobCtx)
	}
}

// Shutdown stops accepting new dispatch cycles; in-flight jobs still run.
func (d *Dispatcher) Shutdown() {
	close(d.done)
	d.cond.Broadcast()
}

// QueueDepth reports the number of jobs waiting to be dispatched.
func (d *Dispatcher) QueueDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.Len()
}

// AvailableTokens reports the current bucket level (for metrics).
func (d *Dispatcher) AvailableTokens() float64 {
	return d.bucket.Available()
}
