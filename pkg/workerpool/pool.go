// Package workerpool provides a bounded goroutine pool with backpressure.
//
// Submit never blocks and returns ErrPoolFull when every worker is busy and
// the buffer is full. SubmitWait blocks until a slot frees up, the context
// ends or the pool shuts down.
//
//	pool := workerpool.New("reconcile", 4)
//	defer pool.Shutdown()
//	err := pool.SubmitWait(ctx, func() { confirm(order) })
package workerpool

import (
	"context"
	"errors"
	"sync"

	"github.com/shashiranjanraj/storefront/pkg/logger"
)

var ErrPoolFull = errors.New("workerpool: pool is full")

var ErrPoolClosed = errors.New("workerpool: pool is closed")

type Pool struct {
	name  string
	tasks chan func()
	wg    sync.WaitGroup
	once  sync.Once

	// closeCh releases blocked submitters; stop tells workers to drain and
	// exit once no submitter can still be sending.
	closeCh chan struct{}
	stop    chan struct{}
	mu      sync.RWMutex
	closed  bool
}

// New starts size workers. name labels panic logs.
func New(name string, size int) *Pool {
	if size <= 0 {
		size = 1
	}

	p := &Pool{
		name:    name,
		tasks:   make(chan func(), size*2),
		closeCh: make(chan struct{}),
		stop:    make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

func (p *Pool) SubmitWait(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case <-p.closeCh:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	case p.tasks <- task:
		return nil
	}
}

// Shutdown stops accepting tasks, runs what is already buffered and waits
// for the workers to exit. Safe to call more than once.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		close(p.closeCh)
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.stop)
		p.wg.Wait()
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.tasks:
			p.run(task)
		case <-p.stop:
			for {
				select {
				case task := <-p.tasks:
					p.run(task)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("workerpool: task panicked", "pool", p.name, "panic", r)
		}
	}()
	task()
}
