// Package migration runs versioned schema changes and records them in the
// schema_migrations table.
//
//	func init() {
//	    migration.Register("20260101000000_create_users_table", &CreateUsersTable{})
//	}
//
// Names are timestamp-prefixed so lexical order is chronological.
package migration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// Migration is implemented by every schema change.
type Migration interface {
	Up(tx *gorm.DB) error
	Down(tx *gorm.DB) error
}

type record struct {
	ID    uint      `gorm:"primaryKey;autoIncrement"`
	Name  string    `gorm:"uniqueIndex;size:255;not null"`
	Batch int       `gorm:"not null"`
	RunAt time.Time `gorm:"autoCreateTime"`
}

func (record) TableName() string { return "schema_migrations" }

// Entry pairs a migration with its name.
type Entry struct {
	Name      string
	Migration Migration
}

var (
	registryMu sync.Mutex
	registry   []Entry
)

// Register adds m to the process-wide set used by New.
func Register(name string, m Migration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, Entry{Name: name, Migration: m})
}

// Registered returns the registered migrations sorted by name.
func Registered() []Entry {
	registryMu.Lock()
	defer registryMu.Unlock()
	return sorted(registry)
}

func sorted(entries []Entry) []Entry {
	out := append([]Entry(nil), entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Runner applies and reverts a fixed set of migrations.
type Runner struct {
	db      *gorm.DB
	entries []Entry
}

// New builds a Runner over every registered migration.
func New(db *gorm.DB) *Runner {
	return &Runner{db: db, entries: Registered()}
}

// NewWith builds a Runner over an explicit set.
func NewWith(db *gorm.DB, entries ...Entry) *Runner {
	return &Runner{db: db, entries: sorted(entries)}
}

// State is one row of Status output.
type State struct {
	Name  string
	Ran   bool
	Batch int
}

func (r *Runner) ensureTable(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&record{}); err != nil {
		return fmt.Errorf("migration: ensure table: %w", err)
	}
	return nil
}

func (r *Runner) applied(ctx context.Context) (map[string]record, error) {
	var rows []record
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("migration: read history: %w", err)
	}
	out := make(map[string]record, len(rows))
	for _, row := range rows {
		out[row.Name] = row
	}
	return out, nil
}

// Run applies every pending migration as one batch and returns their names.
// Each migration and its history row commit together.
func (r *Runner) Run(ctx context.Context) ([]string, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}
	done, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	batch := 1
	for _, rec := range done {
		if rec.Batch >= batch {
			batch = rec.Batch + 1
		}
	}

	var ran []string
	for _, e := range r.entries {
		if _, ok := done[e.Name]; ok {
			continue
		}
		logger.Info("migration: applying", "name", e.Name, "batch", batch)

		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := e.Migration.Up(tx); err != nil {
				return err
			}
			return tx.Create(&record{Name: e.Name, Batch: batch}).Error
		})
		if err != nil {
			return ran, fmt.Errorf("migration: %s up: %w", e.Name, err)
		}
		ran = append(ran, e.Name)
	}
	return ran, nil
}

// Rollback reverts the most recent batch in reverse order.
func (r *Runner) Rollback(ctx context.Context) ([]string, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}

	var last []record
	sub := r.db.Model(&record{}).Select("MAX(batch)")
	if err := r.db.WithContext(ctx).Where("batch = (?)", sub).Order("name desc").Find(&last).Error; err != nil {
		return nil, fmt.Errorf("migration: read last batch: %w", err)
	}

	known := make(map[string]Migration, len(r.entries))
	for _, e := range r.entries {
		known[e.Name] = e.Migration
	}

	var reverted []string
	for _, rec := range last {
		m, ok := known[rec.Name]
		if !ok {
			return reverted, fmt.Errorf("migration: cannot roll back %s: not registered", rec.Name)
		}
		logger.Info("migration: rolling back", "name", rec.Name)

		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := m.Down(tx); err != nil {
				return err
			}
			return tx.Delete(&record{}, rec.ID).Error
		})
		if err != nil {
			return reverted, fmt.Errorf("migration: %s down: %w", rec.Name, err)
		}
		reverted = append(reverted, rec.Name)
	}
	return reverted, nil
}

// Status lists every known migration with its batch, if applied.
func (r *Runner) Status(ctx context.Context) ([]State, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}
	done, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]State, 0, len(r.entries))
	for _, e := range r.entries {
		rec, ok := done[e.Name]
		out = append(out, State{Name: e.Name, Ran: ok, Batch: rec.Batch})
	}
	return out, nil
}
