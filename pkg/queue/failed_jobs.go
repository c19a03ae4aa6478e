package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
)

// FailedJob is a job that exhausted its attempts or could not be decoded.
type FailedJob struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	JobID    string    `gorm:"size:36;not null;index" json:"job_id"`
	Name     string    `gorm:"size:255;not null;index" json:"name"`
	Payload  string    `gorm:"type:text;not null" json:"payload"`
	Error    string    `gorm:"type:text" json:"error"`
	Attempts int       `gorm:"not null;default:0" json:"attempts"`
	FailedAt time.Time `gorm:"not null" json:"failed_at"`
}

func (FailedJob) TableName() string { return "failed_jobs" }

type FailedStore interface {
	Record(ctx context.Context, f FailedJob) error
	List(ctx context.Context) ([]FailedJob, error)
}

// MemoryFailedStore keeps failures for the life of the process.
type MemoryFailedStore struct {
	mu   sync.Mutex
	jobs []FailedJob
}

func (s *MemoryFailedStore) Record(_ context.Context, f FailedJob) error {
	s.mu.Lock()
	f.ID = uint(len(s.jobs) + 1)
	s.jobs = append(s.jobs, f)
	s.mu.Unlock()
	return nil
}

func (s *MemoryFailedStore) List(context.Context) ([]FailedJob, error) {
	s.mu.Lock()
	out := make([]FailedJob, len(s.jobs))
	copy(out, s.jobs)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// DBFailedStore writes failures to the failed_jobs table, which the schema
// migrations create.
type DBFailedStore struct {
	db *gorm.DB
}

func NewDBFailedStore(db *gorm.DB) *DBFailedStore {
	return &DBFailedStore{db: db}
}

func (s *DBFailedStore) Record(ctx context.Context, f FailedJob) error {
	f.ID = 0
	if err := s.db.WithContext(ctx).Create(&f).Error; err != nil {
		return fmt.Errorf("queue: persist failed job: %w", err)
	}
	return nil
}

func (s *DBFailedStore) List(ctx context.Context) ([]FailedJob, error) {
	var out []FailedJob
	if err := s.db.WithContext(ctx).Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("queue: list failed jobs: %w", err)
	}
	return out, nil
}
