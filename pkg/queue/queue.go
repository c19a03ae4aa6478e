// Package queue runs background jobs on a pluggable driver.
//
// A job is any JSON-serialisable value with a stable Name and a Handle
// method. Workers decode it through the factory registered under that name:
//
//	m := queue.New(queue.NewMemoryDriver(100))
//	m.Register("mail.reset_code", func() queue.Job { return &SendResetCodeJob{} })
//	_ = m.Dispatch(ctx, &SendResetCodeJob{Email: "a@b.c"})
//	go m.Work(ctx, 2)
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
)

var ErrUnknownJob = errors.New("queue: unknown job")

// Job is a unit of background work.
type Job interface {
	Name() string
	Handle(ctx context.Context) error
}

// Driver moves encoded envelopes between dispatchers and workers. Pop blocks
// until a payload is available or ctx ends; it may return (nil, nil) when it
// gave up waiting.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	Pop(ctx context.Context) ([]byte, error)
}

type envelope struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Payload      json.RawMessage `json:"payload"`
	DispatchedAt time.Time       `json:"dispatched_at"`
}

// Manager dispatches jobs and runs workers.
type Manager struct {
	driver   Driver
	failed   FailedStore
	maxTries int
	backoff  func(attempt int) time.Duration

	mu       sync.RWMutex
	registry map[string]func() Job
}

type Option func(*Manager)

// WithMaxTries sets how many times a job runs before it is recorded as
// failed. Values below 1 are treated as 1.
func WithMaxTries(n int) Option {
	return func(m *Manager) {
		if n < 1 {
			n = 1
		}
		m.maxTries = n
	}
}

// WithBackoff sets the pause before retry number attempt (1-based).
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(m *Manager) { m.backoff = fn }
}

// WithFailedStore records exhausted jobs somewhere durable.
func WithFailedStore(s FailedStore) Option {
	return func(m *Manager) { m.failed = s }
}

func New(driver Driver, opts ...Option) *Manager {
	m := &Manager{
		driver:   driver,
		failed:   &MemoryFailedStore{},
		maxTries: 3,
		backoff:  func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
		registry: map[string]func() Job{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register makes name decodable by workers.
func (m *Manager) Register(name string, factory func() Job) {
	m.mu.Lock()
	m.registry[name] = factory
	m.mu.Unlock()
}

// Dispatch encodes job and pushes it onto the driver.
func (m *Manager) Dispatch(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal %s: %w", job.Name(), err)
	}
	raw, err := json.Marshal(envelope{
		ID:           uuid.NewString(),
		Name:         job.Name(),
		Payload:      payload,
		DispatchedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("queue: marshal envelope: %w", err)
	}
	if err := m.driver.Push(ctx, raw); err != nil {
		return fmt.Errorf("queue: push %s: %w", job.Name(), err)
	}
	return nil
}

// Work runs n workers until ctx is cancelled and returns once they exit.
func (m *Manager) Work(ctx context.Context, n int) {
	if n < 1 {
		n = 1
	}
	logger.Info("queue: workers started", "count", n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.work(ctx)
		}()
	}
	wg.Wait()
	logger.Info("queue: workers stopped")
}

func (m *Manager) work(ctx context.Context) {
	for ctx.Err() == nil {
		raw, err := m.driver.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue: pop failed", "error", err)
			sleep(ctx, 500*time.Millisecond)
			continue
		}
		if raw == nil {
			continue
		}
		m.process(ctx, raw)
	}
}

func (m *Manager) process(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Error("queue: bad envelope", "error", err)
		return
	}

	job, err := m.decode(env)
	if err != nil {
		logger.Error("queue: cannot decode job", "job", env.Name, "id", env.ID, "error", err)
		m.recordFailure(ctx, env, err, 0)
		return
	}

	log := logger.L.With("job", env.Name, "id", env.ID)
	var lastErr error
	for attempt := 1; attempt <= m.maxTries; attempt++ {
		start := time.Now()
		lastErr = safeHandle(ctx, job)
		metrics.RecordQueueJob(env.Name, lastErr, start)
		if lastErr == nil {
			log.Debug("queue: job processed", "attempt", attempt)
			return
		}
		if ctx.Err() != nil {
			break
		}
		log.Warn("queue: job failed", "attempt", attempt, "error", lastErr)
		if attempt < m.maxTries {
			sleep(ctx, m.backoff(attempt))
		}
	}

	log.Error("queue: job exhausted retries", "error", lastErr)
	m.recordFailure(ctx, env, lastErr, m.maxTries)
}

func (m *Manager) decode(env envelope) (Job, error) {
	m.mu.RLock()
	factory, ok := m.registry[env.Name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJob, env.Name)
	}
	job := factory()
	if err := json.Unmarshal(env.Payload, job); err != nil {
		return nil, fmt.Errorf("queue: unmarshal %s: %w", env.Name, err)
	}
	return job, nil
}

func (m *Manager) recordFailure(ctx context.Context, env envelope, cause error, attempts int) {
	f := FailedJob{
		JobID:    env.ID,
		Name:     env.Name,
		Payload:  string(env.Payload),
		Error:    cause.Error(),
		Attempts: attempts,
		FailedAt: time.Now().UTC(),
	}
	if err := m.failed.Record(context.WithoutCancel(ctx), f); err != nil {
		logger.Error("queue: record failed job", "job", env.Name, "id", env.ID, "error", err)
	}
}

// FailedJobs lists what the failed store holds, newest first.
func (m *Manager) FailedJobs(ctx context.Context) ([]FailedJob, error) {
	return m.failed.List(ctx)
}

func safeHandle(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: job panicked: %v", r)
		}
	}()
	return job.Handle(ctx)
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
