package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/internal/testkit"
	"github.com/shashiranjanraj/storefront/pkg/queue"
)

type echoJob struct {
	Val string `json:"val"`

	seen chan string
}

func (j *echoJob) Name() string { return "test.echo" }

func (j *echoJob) Handle(context.Context) error {
	j.seen <- j.Val
	return nil
}

type failJob struct {
	Val string `json:"val"`

	calls *atomic.Int32
}

func (j *failJob) Name() string { return "test.fail" }

func (j *failJob) Handle(context.Context) error {
	j.calls.Add(1)
	return errors.New("always fails")
}

type panicJob struct{}

func (panicJob) Name() string                 { return "test.panic" }
func (panicJob) Handle(context.Context) error { panic("boom") }

func noBackoff(int) time.Duration { return 0 }

func startWorkers(t *testing.T, m *queue.Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Work(ctx, 2)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestDispatchAndProcess(t *testing.T) {
	seen := make(chan string, 1)
	m := queue.New(queue.NewMemoryDriver(10))
	m.Register("test.echo", func() queue.Job { return &echoJob{seen: seen} })
	startWorkers(t, m)

	require.NoError(t, m.Dispatch(context.Background(), &echoJob{Val: "hello"}))

	select {
	case v := <-seen:
		assert.Equal(t, "hello", v)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}
}

func TestExhaustedJobIsRecorded(t *testing.T) {
	var calls atomic.Int32
	store := &queue.MemoryFailedStore{}
	m := queue.New(queue.NewMemoryDriver(10),
		queue.WithMaxTries(3),
		queue.WithBackoff(noBackoff),
		queue.WithFailedStore(store),
	)
	m.Register("test.fail", func() queue.Job { return &failJob{calls: &calls} })
	startWorkers(t, m)

	require.NoError(t, m.Dispatch(context.Background(), &failJob{Val: "x"}))

	require.Eventually(t, func() bool {
		jobs, _ := m.FailedJobs(context.Background())
		return len(jobs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	jobs, err := m.FailedJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test.fail", jobs[0].Name)
	assert.Equal(t, 3, jobs[0].Attempts)
	assert.JSONEq(t, `{"val":"x"}`, jobs[0].Payload)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPanickingJobIsContained(t *testing.T) {
	m := queue.New(queue.NewMemoryDriver(10), queue.WithMaxTries(1))
	m.Register("test.panic", func() queue.Job { return &panicJob{} })
	startWorkers(t, m)

	require.NoError(t, m.Dispatch(context.Background(), panicJob{}))

	require.Eventually(t, func() bool {
		jobs, _ := m.FailedJobs(context.Background())
		return len(jobs) == 1 && jobs[0].Error == "queue: job panicked: boom"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUnknownJobIsRecorded(t *testing.T) {
	m := queue.New(queue.NewMemoryDriver(10))
	startWorkers(t, m)

	require.NoError(t, m.Dispatch(context.Background(), &echoJob{Val: "orphan"}))

	require.Eventually(t, func() bool {
		jobs, _ := m.FailedJobs(context.Background())
		return len(jobs) == 1 && jobs[0].Attempts == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDBFailedStore(t *testing.T) {
	ctx := context.Background()
	store := queue.NewDBFailedStore(testkit.DB(t))

	require.NoError(t, store.Record(ctx, queue.FailedJob{JobID: "a", Name: "n", Payload: "{}", Error: "e1", Attempts: 3, FailedAt: time.Now()}))
	require.NoError(t, store.Record(ctx, queue.FailedJob{JobID: "b", Name: "n", Payload: "{}", Error: "e2", Attempts: 3, FailedAt: time.Now()}))

	jobs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "b", jobs[0].JobID)
}

func TestMemoryDriverPushHonoursContext(t *testing.T) {
	d := queue.NewMemoryDriver(1)
	require.NoError(t, d.Push(context.Background(), []byte("1")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Push(ctx, []byte("2")), context.Canceled)
	assert.Equal(t, 1, d.Len())
}
