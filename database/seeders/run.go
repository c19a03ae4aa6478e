// Package seeders fills a fresh database with demo data.
//
// Seeders register themselves from init():
//
//	func init() {
//	    seeders.Register("demo_user", seedDemoUser)
//	}
//
// and run with `storefront seed`.
package seeders

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// SeederFunc is the signature for a seed function. It must be idempotent.
type SeederFunc func(ctx context.Context, db *gorm.DB) error

type seederEntry struct {
	name string
	fn   SeederFunc
}

var (
	mu      sync.Mutex
	entries []seederEntry
)

// Register adds a seeder to the global registry.
func Register(name string, fn SeederFunc) {
	mu.Lock()
	defer mu.Unlock()
	entries = append(entries, seederEntry{name: name, fn: fn})
}

// RunAll executes every registered seeder in registration order and returns
// the names that ran. It stops on the first error.
func RunAll(ctx context.Context, db *gorm.DB) ([]string, error) {
	mu.Lock()
	current := append([]seederEntry(nil), entries...)
	mu.Unlock()

	ran := make([]string, 0, len(current))
	for _, e := range current {
		if err := e.fn(ctx, db); err != nil {
			return ran, fmt.Errorf("seeder %q: %w", e.name, err)
		}
		ran = append(ran, e.name)
	}
	return ran, nil
}
