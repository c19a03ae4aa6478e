package services

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/pkg/gateway"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
)

// PaymentGateway is what the workflows need from gateway.Adapter.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, req gateway.IntentRequest) (gateway.Intent, error)
	QueryStatus(ctx context.Context, id string) (gateway.Status, error)
	Cancel(ctx context.Context, id string) error
}

type CheckoutDeps struct {
	Users          *repositories.UserRepository
	Orders         *repositories.OrderRepository
	Gateway        PaymentGateway
	RecordCurrency string

	Now    func() time.Time
	Random io.Reader
}

// CheckoutService turns a cart into an order and, for card payments, a
// gateway intent the client can complete.
type CheckoutService struct {
	users          *repositories.UserRepository
	orders         *repositories.OrderRepository
	gateway        PaymentGateway
	recordCurrency string
	now            func() time.Time
	random         io.Reader
}

func NewCheckoutService(d CheckoutDeps) *CheckoutService {
	s := &CheckoutService{
		users:          d.Users,
		orders:         d.Orders,
		gateway:        d.Gateway,
		recordCurrency: d.RecordCurrency,
		now:            d.Now,
		random:         d.Random,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.random == nil {
		s.random = rand.Reader
	}
	return s
}

type CartItem struct {
	ProductID string
	Title     string
	UnitPrice decimal.Decimal
	Quantity  int
	Size      string
	ImageURL  string
}

type CheckoutInput struct {
	Items           []CartItem
	Total           decimal.Decimal
	PaymentMethod   string
	ShippingAddress string
	Phone           string
	Notes           string
}

// CheckoutResult carries the placed order. ClientSecret is set for card
// payments only.
type CheckoutResult struct {
	Order        *models.Order
	ClientSecret string
}

// Checkout places an order for subject. Card orders are persisted before
// the gateway is called; if the gateway fails the order stays PENDING
// without an intent and the gateway error is returned.
func (s *CheckoutService) Checkout(ctx context.Context, subject string, in CheckoutInput) (*CheckoutResult, error) {
	log := logger.WithCtx(ctx)

	method, err := models.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		metrics.CheckoutTotal.WithLabelValues("unknown", "rejected").Inc()
		return nil, wrap(ErrUnknownPaymentMethod, err)
	}
	label := string(method)

	if fields := validateCart(in); len(fields) > 0 {
		metrics.CheckoutTotal.WithLabelValues(label, "rejected").Inc()
		return nil, Invalid(fields)
	}

	user, err := s.users.FindByEmail(ctx, subject)
	if errors.Is(err, repositories.ErrNotFound) {
		// the token was valid, so the account must exist
		log.Error("checkout for authenticated subject without an account", "subject", subject)
		metrics.CheckoutTotal.WithLabelValues(label, "error").Inc()
		return nil, wrap(ErrInvariant, err)
	}
	if err != nil {
		metrics.CheckoutTotal.WithLabelValues(label, "error").Inc()
		return nil, internal(err)
	}

	order := &models.Order{
		UserID:          user.ID,
		Status:          models.StatusPending,
		PaymentMethod:   method,
		ShippingAddress: strings.TrimSpace(in.ShippingAddress),
		Phone:           strings.TrimSpace(in.Phone),
		Notes:           strings.TrimSpace(in.Notes),
	}
	for _, it := range in.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID:    it.ProductID,
			ProductTitle: it.Title,
			UnitPrice:    it.UnitPrice,
			Quantity:     it.Quantity,
			Size:         it.Size,
			ImageURL:     it.ImageURL,
		})
	}

	computed := order.ItemsTotal()
	if !computed.Equal(in.Total) {
		metrics.CheckoutTotal.WithLabelValues(label, "rejected").Inc()
		e := wrap(ErrAmountMismatch, fmt.Errorf("declared %s, items sum to %s", in.Total, computed))
		e.Details = map[string]string{"total": "must equal " + computed.String()}
		return nil, e
	}
	order.Total = computed

	if order.Reference, err = s.newReference(); err != nil {
		metrics.CheckoutTotal.WithLabelValues(label, "error").Inc()
		return nil, wrap(ErrInternal, fmt.Errorf("generate order reference: %w", err))
	}

	if err := s.orders.Create(ctx, order); err != nil {
		metrics.CheckoutTotal.WithLabelValues(label, "error").Inc()
		return nil, internal(err)
	}
	log.Info("order placed", "order_id", order.ID, "reference", order.Reference, "method", method, "total", order.Total.String())

	result := &CheckoutResult{Order: order}
	if !method.RequiresGateway() {
		metrics.CheckoutTotal.WithLabelValues(label, "placed").Inc()
		return result, nil
	}

	// the intent link must be written even if the client goes away
	gctx := context.WithoutCancel(ctx)
	intent, err := s.gateway.CreateIntent(gctx, gateway.IntentRequest{
		Amount:         order.Total,
		RecordCurrency: s.recordCurrency,
		CustomerRef:    user.Email,
		Description:    describe(order),
		Reference:      order.Reference,
	})
	if err != nil {
		log.Warn("payment intent creation failed", "order_id", order.ID, "error", err)
		metrics.CheckoutTotal.WithLabelValues(label, "gateway_error").Inc()
		return nil, gatewayError(err)
	}

	if err := s.orders.SetPaymentIntent(gctx, order.ID, intent.ID); err != nil {
		log.Error("could not link payment intent", "order_id", order.ID, "intent_id", intent.ID, "error", err)
		if cerr := s.gateway.Cancel(gctx, intent.ID); cerr != nil {
			log.Error("could not cancel unlinked intent", "intent_id", intent.ID, "error", cerr)
		}
		metrics.CheckoutTotal.WithLabelValues(label, "error").Inc()
		return nil, internal(err)
	}
	order.PaymentIntentID = &intent.ID

	metrics.CheckoutTotal.WithLabelValues(label, "placed").Inc()
	result.ClientSecret = intent.ClientSecret
	return result, nil
}

// Orders lists subject's orders, newest first.
func (s *CheckoutService) Orders(ctx context.Context, subject string) ([]models.Order, error) {
	user, err := s.owner(ctx, subject)
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.FindByUser(ctx, user.ID)
	if err != nil {
		return nil, internal(err)
	}
	return orders, nil
}

// Order returns one of subject's orders. Orders owned by someone else are
// reported as not found.
func (s *CheckoutService) Order(ctx context.Context, subject string, id uint) (*models.Order, error) {
	user, err := s.owner(ctx, subject)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.FindByIDForUser(ctx, id, user.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, wrap(ErrOrderNotFound, err)
	}
	if err != nil {
		return nil, internal(err)
	}
	return order, nil
}

// CancelOrder cancels one of subject's PENDING orders. A linked intent is
// cancelled at the gateway first; if that fails nothing changes locally.
func (s *CheckoutService) CancelOrder(ctx context.Context, subject string, id uint) (*models.Order, error) {
	order, err := s.Order(ctx, subject, id)
	if err != nil {
		return nil, err
	}
	if order.Status == models.StatusCancelled {
		return order, nil
	}
	if !order.Status.CanTransitionTo(models.StatusCancelled) {
		return nil, wrap(ErrIllegalTransition, fmt.Errorf("order %d is %s", order.ID, order.Status))
	}

	gctx := context.WithoutCancel(ctx)
	if order.PaymentIntentID != nil {
		if err := s.gateway.Cancel(gctx, *order.PaymentIntentID); err != nil {
			logger.WithCtx(ctx).Warn("gateway cancel failed", "order_id", order.ID, "error", err)
			return nil, gatewayError(err)
		}
	}

	err = s.orders.TransitionStatus(gctx, order.ID, models.StatusCancelled, s.now().UTC())
	switch {
	case err == nil, errors.Is(err, repositories.ErrAlreadyInStatus):
	case errors.Is(err, repositories.ErrIllegalTransition):
		// confirmed by a webhook in the meantime
		return nil, wrap(ErrIllegalTransition, err)
	default:
		return nil, internal(err)
	}

	logger.WithCtx(ctx).Info("order cancelled", "order_id", order.ID)
	order.Status = models.StatusCancelled
	return order, nil
}

func (s *CheckoutService) owner(ctx context.Context, subject string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, subject)
	if errors.Is(err, repositories.ErrNotFound) {
		logger.WithCtx(ctx).Error("authenticated subject without an account", "subject", subject)
		return nil, wrap(ErrInvariant, err)
	}
	if err != nil {
		return nil, internal(err)
	}
	return user, nil
}

var referenceEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// newReference returns "ORD-" followed by 12 base32 characters (60 random
// bits).
func (s *CheckoutService) newReference() (string, error) {
	var b [8]byte
	if _, err := io.ReadFull(s.random, b[:]); err != nil {
		return "", err
	}
	return "ORD-" + referenceEncoding.EncodeToString(b[:])[:12], nil
}

func describe(o *models.Order) string {
	return fmt.Sprintf("Order %s - %d item(s)", o.Reference, len(o.Items))
}

func validateCart(in CheckoutInput) map[string]string {
	fields := map[string]string{}
	if len(in.Items) == 0 {
		fields["items"] = "must contain at least one item"
	}
	for i, it := range in.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		if strings.TrimSpace(it.ProductID) == "" {
			fields[prefix+"product_id"] = "is required"
		}
		if it.Quantity < 1 {
			fields[prefix+"quantity"] = "must be at least 1"
		}
		if msg := amountProblem(it.UnitPrice); msg != "" {
			fields[prefix+"unit_price"] = msg
		}
	}
	if msg := amountProblem(in.Total); msg != "" {
		fields["total"] = msg
	}
	if strings.TrimSpace(in.ShippingAddress) == "" {
		fields["shipping_address"] = "is required"
	}
	if strings.TrimSpace(in.Phone) == "" {
		fields["phone"] = "is required"
	}
	return fields
}

func amountProblem(d decimal.Decimal) string {
	switch {
	case !d.IsPositive():
		return "must be greater than 0"
	case !d.Equal(d.Round(models.MoneyScale)):
		return fmt.Sprintf("must have at most %d decimal places", models.MoneyScale)
	case !models.StorableAmount(d):
		return "must not exceed " + models.MaxAmount.String()
	}
	return ""
}

// gatewayError exposes the provider's message to the client.
func gatewayError(err error) *Error {
	e := wrap(ErrGateway, err)
	var gerr *gateway.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Timeout:
			e.Message = "payment provider timed out"
		case gerr.Message != "":
			e.Message = "payment provider error: " + gerr.Message
		}
	}
	return e
}
