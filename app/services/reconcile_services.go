package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/event"
	"github.com/shashiranjanraj/storefront/pkg/gateway"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/workerpool"
)

// Outcome is what a confirmation attempt did.
type Outcome string

const (
	OutcomeConfirmed        Outcome = "confirmed"
	OutcomePending          Outcome = "pending"
	OutcomeUnknownIntent    Outcome = "unknown_intent"
	OutcomeAlreadyConfirmed Outcome = "already_confirmed"
	OutcomeNotPayable       Outcome = "not_payable"
	OutcomeDuplicateEvent   Outcome = "duplicate_event"
	OutcomeIgnoredEvent     Outcome = "ignored_event"
)

// Event is a gateway webhook notification. Only its intent id is trusted;
// the status is always re-read from the gateway.
type Event struct {
	ID       string
	Type     string
	IntentID string
}

type ReconcileDeps struct {
	Users     *repositories.UserRepository
	Orders    *repositories.OrderRepository
	Gateway   PaymentGateway
	Dedupe    cache.Store
	DedupeTTL time.Duration
	Pool      *workerpool.Pool
	Batch     int
	Now       func() time.Time

	// Events receives EventOrderConfirmed. Optional.
	Events *event.Bus
}

// EventOrderConfirmed fires once per order, after the PENDING → CONFIRMED
// transition is committed.
const EventOrderConfirmed = "order.confirmed"

type OrderConfirmed struct {
	OrderID   uint
	UserID    uint
	Reference string
	Total     decimal.Decimal
	PaidAt    time.Time
}

// ReconcileService brings local order status in line with the gateway.
type ReconcileService struct {
	users     *repositories.UserRepository
	orders    *repositories.OrderRepository
	gateway   PaymentGateway
	dedupe    cache.Store
	dedupeTTL time.Duration
	pool      *workerpool.Pool
	batch     int
	now       func() time.Time
	events    *event.Bus
}

func NewReconcileService(d ReconcileDeps) *ReconcileService {
	s := &ReconcileService{
		users:     d.Users,
		orders:    d.Orders,
		gateway:   d.Gateway,
		dedupe:    d.Dedupe,
		dedupeTTL: d.DedupeTTL,
		pool:      d.Pool,
		batch:     d.Batch,
		now:       d.Now,
		events:    d.Events,
	}
	if s.dedupe == nil {
		s.dedupe = cache.NewMemory()
	}
	if s.dedupeTTL <= 0 {
		s.dedupeTTL = 72 * time.Hour
	}
	if s.batch <= 0 {
		s.batch = 100
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Confirm re-reads intentID from the gateway and marks its order CONFIRMED
// when the payment succeeded. Calling it again is harmless.
func (s *ReconcileService) Confirm(ctx context.Context, intentID string) (Outcome, error) {
	outcome, err := s.confirm(ctx, intentID)
	if err != nil {
		metrics.ReconcileTotal.WithLabelValues("error").Inc()
	} else {
		metrics.ReconcileTotal.WithLabelValues(string(outcome)).Inc()
	}
	return outcome, err
}

func (s *ReconcileService) confirm(ctx context.Context, intentID string) (Outcome, error) {
	log := logger.WithCtx(ctx).With("intent_id", intentID)

	order, err := s.orders.FindByPaymentIntent(ctx, intentID)
	if errors.Is(err, repositories.ErrNotFound) {
		log.Info("no order for payment intent")
		return OutcomeUnknownIntent, nil
	}
	if err != nil {
		return "", internal(err)
	}
	return s.confirmOrder(ctx, order, intentID)
}

func (s *ReconcileService) confirmOrder(ctx context.Context, order *models.Order, intentID string) (Outcome, error) {
	log := logger.WithCtx(ctx).With("intent_id", intentID, "order_id", order.ID)

	if order.Status.ReachedOrPassed(models.StatusConfirmed) {
		return OutcomeAlreadyConfirmed, nil
	}
	if order.Status != models.StatusPending {
		log.Warn("payment for an order that can no longer be paid", "status", order.Status)
		return OutcomeNotPayable, nil
	}

	status, err := s.gateway.QueryStatus(ctx, intentID)
	if err != nil {
		log.Warn("gateway status query failed", "error", err)
		return "", gatewayError(err)
	}
	if status != gateway.StatusSucceeded {
		log.Debug("intent not settled", "gateway_status", status)
		return OutcomePending, nil
	}

	paidAt := s.now().UTC()
	err = s.orders.TransitionStatus(ctx, order.ID, models.StatusConfirmed, paidAt)
	switch {
	case err == nil:
		log.Info("order confirmed")
		s.events.Fire(ctx, EventOrderConfirmed, OrderConfirmed{
			OrderID:   order.ID,
			UserID:    order.UserID,
			Reference: order.Reference,
			Total:     order.Total,
			PaidAt:    paidAt,
		})
		return OutcomeConfirmed, nil
	case errors.Is(err, repositories.ErrAlreadyInStatus):
		return OutcomeAlreadyConfirmed, nil
	case errors.Is(err, repositories.ErrIllegalTransition):
		log.Warn("order moved before confirmation", "error", err)
		return OutcomeNotPayable, nil
	default:
		return "", internal(err)
	}
}

// ConfirmForUser is Confirm restricted to intents of subject's own orders.
func (s *ReconcileService) ConfirmForUser(ctx context.Context, subject, intentID string) (Outcome, *models.Order, error) {
	user, err := s.users.FindByEmail(ctx, subject)
	if errors.Is(err, repositories.ErrNotFound) {
		logger.WithCtx(ctx).Error("authenticated subject without an account", "subject", subject)
		return "", nil, wrap(ErrInvariant, err)
	}
	if err != nil {
		return "", nil, internal(err)
	}

	order, err := s.orders.FindByPaymentIntent(ctx, intentID)
	if errors.Is(err, repositories.ErrNotFound) || (err == nil && order.UserID != user.ID) {
		return "", nil, ErrOrderNotFound
	}
	if err != nil {
		return "", nil, internal(err)
	}

	outcome, err := s.confirmOrder(ctx, order, intentID)
	if err != nil {
		metrics.ReconcileTotal.WithLabelValues("error").Inc()
		return "", nil, err
	}
	metrics.ReconcileTotal.WithLabelValues(string(outcome)).Inc()

	fresh, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return "", nil, internal(err)
	}
	return outcome, fresh, nil
}

// HandleEvent processes a webhook once per event id. A delivery that fails
// releases its claim so the gateway's retry is processed.
func (s *ReconcileService) HandleEvent(ctx context.Context, ev Event) (Outcome, error) {
	if ev.IntentID == "" || !strings.HasPrefix(ev.Type, "payment_intent.") {
		metrics.ReconcileTotal.WithLabelValues(string(OutcomeIgnoredEvent)).Inc()
		return OutcomeIgnoredEvent, nil
	}

	key := ""
	if ev.ID != "" {
		key = "webhook:event:" + ev.ID
		fresh, err := s.dedupe.SetNX(ctx, key, s.now().UTC(), s.dedupeTTL)
		if err != nil {
			// without the dedupe store confirmation is still idempotent
			logger.WithCtx(ctx).Warn("webhook dedupe unavailable", "event_id", ev.ID, "error", err)
			key = ""
		} else if !fresh {
			metrics.ReconcileTotal.WithLabelValues(string(OutcomeDuplicateEvent)).Inc()
			return OutcomeDuplicateEvent, nil
		}
	}

	outcome, err := s.Confirm(ctx, ev.IntentID)
	if err != nil && key != "" {
		if derr := s.dedupe.Del(context.WithoutCancel(ctx), key); derr != nil {
			logger.WithCtx(ctx).Warn("could not release webhook claim", "event_id", ev.ID, "error", derr)
		}
	}
	return outcome, err
}

// SweepReport counts outcomes of one sweep.
type SweepReport struct {
	Checked  int
	Outcomes map[Outcome]int
	Failed   int
}

// Sweep polls the gateway for every PENDING card order with an intent,
// in batches, and confirms the settled ones. Orders are checked
// concurrently on the pool when one is configured.
func (s *ReconcileService) Sweep(ctx context.Context) (SweepReport, error) {
	report := SweepReport{Outcomes: map[Outcome]int{}}
	var mu sync.Mutex
	record := func(o Outcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		report.Checked++
		if err != nil {
			report.Failed++
			return
		}
		report.Outcomes[o]++
	}

	var afterID uint
	for {
		orders, err := s.orders.ListPendingCardOrders(ctx, afterID, s.batch)
		if err != nil {
			return report, internal(err)
		}
		if len(orders) == 0 {
			break
		}

		var wg sync.WaitGroup
		for i := range orders {
			order := orders[i]
			afterID = order.ID
			run := func() {
				defer wg.Done()
				o, err := s.Confirm(ctx, *order.PaymentIntentID)
				if err != nil {
					logger.WithCtx(ctx).Warn("sweep: confirm failed", "order_id", order.ID, "error", err)
				}
				record(o, err)
			}

			wg.Add(1)
			if s.pool == nil {
				run()
				continue
			}
			if err := s.pool.SubmitWait(ctx, run); err != nil {
				wg.Done()
				wg.Wait()
				return report, wrap(ErrInternal, fmt.Errorf("sweep: %w", err))
			}
		}
		wg.Wait()

		if len(orders) < s.batch {
			break
		}
	}

	logger.WithCtx(ctx).Info("sweep finished", "checked", report.Checked, "failed", report.Failed, "confirmed", report.Outcomes[OutcomeConfirmed])
	return report, nil
}
