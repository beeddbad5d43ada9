package queue

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/metrics"
)

const channelBuffer = 256

// ErrPoolStopped is returned by Do once the pool's run context has ended.
var ErrPoolStopped = errors.New("worker pool stopped")

type job struct {
	ctx  context.Context
	fn   func()
	done chan struct{}
}

// Pool runs CPU-bound jobs on a fixed set of workers so request goroutines only
// wait on a channel instead of competing for every core at once.
type Pool struct {
	jobs    chan job
	workers int
	stopped chan struct{}
	once    sync.Once
	log     zerolog.Logger
}

// NewPool creates a Pool with numWorkers workers.
// If numWorkers <= 0, runtime.NumCPU() is used.
func NewPool(numWorkers int, log zerolog.Logger) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &Pool{
		jobs:    make(chan job, channelBuffer),
		workers: numWorkers,
		stopped: make(chan struct{}),
		log:     log,
	}
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		go p.runWorker(ctx, i)
	}
	go func() {
		<-ctx.Done()
		p.once.Do(func() { close(p.stopped) })
	}()
	p.log.Debug().Int("workers", p.workers).Msg("hash pool started")
}

// Do runs fn on a worker and waits for it. It returns ctx.Err() if ctx ends first;
// in that case fn may still run later, so fn must only write to state the caller
// abandons on error.
func (p *Pool) Do(ctx context.Context, fn func()) error {
	j := job{ctx: ctx, fn: fn, done: make(chan struct{})}

	select {
	case p.jobs <- j:
		metrics.HashQueueDepth.Inc()
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopped:
		return ErrPoolStopped
	}

	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopped:
		return ErrPoolStopped
	}
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.jobs:
			metrics.HashQueueDepth.Dec()
			if j.ctx.Err() != nil {
				p.log.Debug().Int("worker_id", id).Msg("skipping job for cancelled request")
				continue
			}
			j.fn()
			close(j.done)
		}
	}
}
