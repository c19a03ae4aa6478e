// Package app is the composition root. Boot turns a Config into running
// components; commands in cmd/storefront only ever talk to an *App.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/app/controllers"
	"github.com/shashiranjanraj/storefront/app/jobs"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/app/routes"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/internal/kernel"
	"github.com/shashiranjanraj/storefront/pkg/auth"
	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/database"
	"github.com/shashiranjanraj/storefront/pkg/event"
	"github.com/shashiranjanraj/storefront/pkg/gateway"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/mail"
	"github.com/shashiranjanraj/storefront/pkg/queue"
	"github.com/shashiranjanraj/storefront/pkg/workerpool"
)

const (
	queueName       = "storefront.jobs"
	memoryQueueSize = 256

	backgroundWorkers = 4
)

type App struct {
	Config config.Config
	DB     *gorm.DB
	Cache  cache.Store
	Queue  *queue.Manager
	Tokens *auth.TokenService

	Accounts  *services.AccountService
	Checkout  *services.CheckoutService
	Reconcile *services.ReconcileService

	Kernel *kernel.HTTPKernel

	pool       *workerpool.Pool
	background *workerpool.Pool
	closers    []func() error
}

// SetupLogger installs the process logger, adding the MongoDB sink when
// LOG_MONGO_URI is set. The returned func flushes the sink.
func SetupLogger(ctx context.Context, cfg config.Config) (func(), error) {
	if cfg.Log.MongoURI == "" {
		logger.Setup(cfg.App.IsProduction(), os.Stdout)
		return func() {}, nil
	}

	sink, err := logger.NewMongoHandler(ctx, cfg.Log.MongoURI, cfg.Log.MongoDB, cfg.Log.MongoCollection)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	logger.Setup(cfg.App.IsProduction(), os.Stdout, sink)
	return sink.Close, nil
}

// Boot connects every backing service and builds the object graph. On error
// everything opened so far is closed again.
func Boot(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}
	if err := a.boot(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) boot(ctx context.Context) error {
	cfg := a.Config

	var err error
	if a.DB, err = database.Connect(cfg.Database); err != nil {
		return err
	}
	a.onClose(func() error { return database.Close(a.DB) })

	if a.Cache, err = cache.Connect(ctx, cfg.Redis); err != nil {
		return err
	}
	a.onClose(func() error { return cache.Close(a.Cache) })

	if a.Queue, err = a.openQueue(); err != nil {
		return err
	}
	jobs.Register(a.Queue, mail.New(cfg.Mail))

	a.Tokens, err = auth.NewTokenService(auth.TokenConfig{
		Secret:   cfg.Auth.JWTSecret,
		Lifetime: cfg.Auth.TokenLifetime,
	})
	if err != nil {
		return err
	}

	rate, err := cfg.Gateway.RateDecimal()
	if err != nil {
		return err
	}
	pay, err := gateway.NewAdapter(
		gateway.NewStripeClient(cfg.Gateway.BaseURL, cfg.Gateway.SecretKey, cfg.Gateway.Timeout),
		gateway.Config{
			Currency:   cfg.Gateway.Currency,
			Rate:       rate,
			MinorUnits: cfg.Gateway.MinorUnits,
			Timeout:    cfg.Gateway.Timeout,
		},
	)
	if err != nil {
		return err
	}
	if cfg.Gateway.SecretKey == "" {
		logger.Warn("gateway: GATEWAY_SECRET_KEY not set, card payments will fail")
	}

	users := repositories.NewUserRepository(a.DB)
	orders := repositories.NewOrderRepository(a.DB)

	bus := event.New()
	jobs.ListenOrderConfirmed(bus, a.Queue, users)

	a.Accounts, err = services.NewAccountService(services.AccountDeps{
		Users:    users,
		Hasher:   auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		Notifier: jobs.NewResetCodeNotifier(a.Queue),
		ResetTTL: cfg.Auth.ResetCodeTTL,
	})
	if err != nil {
		return err
	}

	a.Checkout = services.NewCheckoutService(services.CheckoutDeps{
		Users:          users,
		Orders:         orders,
		Gateway:        pay,
		RecordCurrency: cfg.Gateway.RecordCurrency,
	})

	a.pool = workerpool.New("reconcile", cfg.Reconcile.Workers)
	a.onClose(func() error { a.pool.Shutdown(); return nil })

	a.Reconcile = services.NewReconcileService(services.ReconcileDeps{
		Users:     users,
		Orders:    orders,
		Gateway:   pay,
		Dedupe:    a.Cache,
		DedupeTTL: cfg.Reconcile.DedupeTTL,
		Pool:      a.pool,
		Batch:     cfg.Reconcile.Batch,
		Events:    bus,
	})

	a.background = workerpool.New("accounts", backgroundWorkers)
	a.onClose(func() error { a.background.Shutdown(); return nil })

	a.Kernel = kernel.NewHTTPKernel(cfg.App, routes.API{
		Auth:          controllers.NewAuthController(a.Accounts, a.Tokens, a.background),
		Profile:       controllers.NewProfileController(a.Accounts, a.Tokens),
		Orders:        controllers.NewOrderController(a.Checkout),
		Payments:      controllers.NewPaymentController(a.Reconcile, cfg.Gateway.PublishableKey),
		Tokens:        a.Tokens,
		WebhookHeader: cfg.Gateway.WebhookHeader,
		WebhookSecret: cfg.Gateway.WebhookSecret,
	})
	a.onClose(func() error { a.Kernel.Close(); return nil })

	return nil
}

func (a *App) openQueue() (*queue.Manager, error) {
	failed := queue.WithFailedStore(queue.NewDBFailedStore(a.DB))

	switch a.Config.Queue.Driver {
	case "redis":
		rc, ok := a.Cache.(*cache.Redis)
		if !ok {
			return nil, errors.New("queue: QUEUE_DRIVER=redis requires REDIS_ADDR")
		}
		return queue.New(queue.NewRedisDriver(rc.Client(), queueName), failed), nil
	case "amqp":
		d, err := queue.DialAMQP(a.Config.Queue.AMQPURL, queueName)
		if err != nil {
			return nil, err
		}
		a.onClose(d.Close)
		return queue.New(d, failed), nil
	default:
		return queue.New(queue.NewMemoryDriver(memoryQueueSize), failed), nil
	}
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
