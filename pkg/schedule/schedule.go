// Package schedule runs recurring in-process tasks.
//
//	s := schedule.New()
//	s.Every(5 * time.Minute).Name("reconcile").WithoutOverlapping().Run(sweep)
//	go s.Start(ctx)
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/logger"
)

type Task func(ctx context.Context)

type entry struct {
	id        string
	interval  time.Duration
	task      Task
	noOverlap bool

	mu      sync.Mutex
	lastRun time.Time
	running bool
}

// Scheduler holds entries and dispatches the due ones on every tick.
type Scheduler struct {
	tick time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries []*entry
	wg      sync.WaitGroup
}

type Option func(*Scheduler)

// WithTick sets how often due entries are checked. Defaults to one second.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) { s.tick = d }
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{tick: time.Second, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Builder configures one entry before Run registers it.
type Builder struct {
	s *Scheduler
	e *entry
}

func (s *Scheduler) Every(d time.Duration) *Builder {
	return &Builder{s: s, e: &entry{interval: d}}
}

func (b *Builder) Name(id string) *Builder {
	b.e.id = id
	return b
}

// WithoutOverlapping skips a run while the previous one is still executing.
func (b *Builder) WithoutOverlapping() *Builder {
	b.e.noOverlap = true
	return b
}

func (b *Builder) Run(task Task) {
	b.e.task = task
	b.s.mu.Lock()
	if b.e.id == "" {
		b.e.id = fmt.Sprintf("task-%d", len(b.s.entries)+1)
	}
	b.s.entries = append(b.s.entries, b.e)
	b.s.mu.Unlock()
}

// Start dispatches due entries until ctx ends, then waits for running tasks.
// Every entry first runs one full interval after Start.
func (s *Scheduler) Start(ctx context.Context) {
	started := s.now()
	s.mu.Lock()
	for _, e := range s.entries {
		e.lastRun = started
	}
	s.mu.Unlock()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	logger.Info("schedule: started", "entries", len(s.List()))

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			logger.Info("schedule: stopped")
			return
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			current := append([]*entry(nil), s.entries...)
			s.mu.Unlock()
			for _, e := range current {
				s.dispatch(ctx, e, now)
			}
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, e *entry, now time.Time) {
	e.mu.Lock()
	if now.Sub(e.lastRun) < e.interval {
		e.mu.Unlock()
		return
	}
	if e.noOverlap && e.running {
		e.mu.Unlock()
		logger.Warn("schedule: skipping overlapping run", "id", e.id)
		return
	}
	e.running = true
	e.lastRun = now
	e.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
			if r := recover(); r != nil {
				logger.Error("schedule: task panicked", "id", e.id, "panic", r)
			}
		}()

		logger.Debug("schedule: running task", "id", e.id)
		e.task(ctx)
	}()
}

// List describes every entry as "id [interval]".
func (s *Scheduler) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, fmt.Sprintf("%s  [%s]", e.id, e.interval))
	}
	return out
}
