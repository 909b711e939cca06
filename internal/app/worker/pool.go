// Package worker runs blocking work (persistence, relay fan-out) off the
// transport's I/O goroutines on a bounded set of workers.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

var (
	ErrBackpressure = errors.New("worker: queue full")
	ErrStopped      = errors.New("worker: pool stopped")
)

type Task func(ctx context.Context)

// Submitter is what components depend on; tests may run tasks inline.
type Submitter interface {
	Submit(Task) error
}

type Pool struct {
	size  int
	tasks chan Task

	mu      sync.RWMutex
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup
}

func NewPool(size, queue int) *Pool {
	if size <= 0 {
		size = 1
	}
	if queue <= 0 {
		queue = size * 64
	}
	return &Pool{size: size, tasks: make(chan Task, queue)}
}

// Start launches the workers. Tasks observe ctx; cancelling it does not
// stop the pool, Stop does.
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.size; i++ {
		p.wg.Go(p.loop)
	}
	log.Info().Str("module", "worker").Int("workers", p.size).Int("queue", cap(p.tasks)).Msg("pool started")
}

// Submit never blocks: a full queue is reported as ErrBackpressure.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrBackpressure
	}
}

// Stop drains the queued tasks and waits for the workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	if p.cancel != nil {
		p.cancel()
	}
	log.Info().Str("module", "worker").Msg("pool stopped")
}

func (p *Pool) loop() {
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	runTask(p.ctx, task)
}

// runTask keeps a panicking task from taking its worker down with it.
func runTask(ctx context.Context, task Task) {
	var pc panics.Catcher
	pc.Try(func() { task(ctx) })
	if r := pc.Recovered(); r != nil {
		log.Error().Str("module", "worker").Err(r.AsError()).Str("stack", string(r.Stack)).Msg("task panicked")
	}
}

// Pending reports the number of queued tasks.
func (p *Pool) Pending() int { return len(p.tasks) }
