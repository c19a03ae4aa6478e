// Package event is an in-process, synchronous event bus. Listeners run on
// the firing goroutine, in registration order; a panicking listener is
// logged and does not stop the others.
package event

import (
	"context"
	"sync"

	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// Handler receives an event payload.
type Handler func(ctx context.Context, payload interface{})

type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func New() *Bus {
	return &Bus{handlers: map[string][]Handler{}}
}

// Listen registers h for the named event.
func (b *Bus) Listen(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Fire calls every listener for name. A nil Bus fires nothing.
func (b *Bus) Fire(ctx context.Context, name string, payload interface{}) {
	if b == nil {
		return
	}
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[name]...)
	b.mu.RUnlock()

	for _, h := range hs {
		call(ctx, name, h, payload)
	}
}

func call(ctx context.Context, name string, h Handler, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithCtx(ctx).Error("event listener panicked", "event", name, "panic", r)
		}
	}()
	h(ctx, payload)
}
