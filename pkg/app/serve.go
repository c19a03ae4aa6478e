package app

import (
	"context"
	"net"
	"sync"

	"github.com/shashiranjanraj/storefront/internal/server"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/schedule"
)

// Scheduler returns the recurring tasks the server runs in-process.
func (a *App) Scheduler() *schedule.Scheduler {
	s := schedule.New()
	if a.Config.Reconcile.Interval > 0 {
		s.Every(a.Config.Reconcile.Interval).
			Name("payments.reconcile").
			WithoutOverlapping().
			Run(func(ctx context.Context) {
				if _, err := a.Reconcile.Sweep(ctx); err != nil {
					logger.WithCtx(ctx).Error("scheduled reconcile aborted", "error", err)
				}
			})
	}
	return s
}

// Serve runs the HTTP server, queue workers and scheduler until ctx ends.
// Workers and scheduled tasks are stopped after the listener has drained.
func (a *App) Serve(ctx context.Context) error {
	bg, stop := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		a.Queue.Work(bg, a.Config.Queue.Workers)
	}()
	go func() {
		defer wg.Done()
		a.Scheduler().Start(bg)
	}()

	addr := net.JoinHostPort("", a.Config.App.Port)
	err := server.Start(ctx, addr, a.Kernel.Handler(), a.Config.App.ShutdownTimeout)

	stop()
	wg.Wait()
	return err
}
