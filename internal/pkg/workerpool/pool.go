package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"inventory-assistant-be/internal/pkg/logger"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Pool runs jobs on a fixed number of workers. Jobs sharing a key run one at a
// time in submission order; jobs with different keys run concurrently.
type Pool struct {
	tasks   chan func()
	mu      sync.Mutex
	queues  map[string][]func()
	closed  bool
	workers sync.WaitGroup
	pending sync.WaitGroup
	logger  logger.ILogger
}

func New(size, queueSize int, log logger.ILogger) *Pool {
	if size < 1 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{
		tasks:  make(chan func(), queueSize),
		queues: make(map[string][]func()),
		logger: log,
	}
	for i := 0; i < size; i++ {
		p.workers.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.workers.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit queues job behind any unfinished job with the same key.
// It blocks when every worker is busy and the task buffer is full.
func (p *Pool) Submit(key string, job func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.pending.Add(1)
	if queue, running := p.queues[key]; running {
		p.queues[key] = append(queue, job)
		p.mu.Unlock()
		return nil
	}
	p.queues[key] = nil
	p.mu.Unlock()

	p.tasks <- p.drain(key, job)
	return nil
}

// drain runs the first job then keeps pulling the key's queue on the same worker.
func (p *Pool) drain(key string, first func()) func() {
	return func() {
		job := first
		for job != nil {
			p.run(key, job)

			p.mu.Lock()
			queue := p.queues[key]
			if len(queue) == 0 {
				delete(p.queues, key)
				job = nil
			} else {
				job = queue[0]
				p.queues[key] = queue[1:]
			}
			p.mu.Unlock()
		}
	}
}

func (p *Pool) run(key string, job func()) {
	defer p.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("WorkerPool", "Job panicked", map[string]interface{}{
				"key":   key,
				"panic": fmt.Sprint(r),
			})
		}
	}()
	job()
}

// Shutdown stops accepting jobs and waits for queued ones until ctx expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(p.tasks)
		p.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}
