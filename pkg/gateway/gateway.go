// Package gateway translates between orders and an external card payment
// provider. Adapter owns currency conversion, timeouts and error shaping;
// a Capability speaks the provider's wire protocol.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/storefront/pkg/metrics"
)

// Status is the provider-neutral state of an intent.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Intent is a provider-side authorization attempt.
type Intent struct {
	ID           string
	ClientSecret string
	Status       Status
}

// CreateParams is what a Capability needs to open an intent.
type CreateParams struct {
	AmountMinor    int64
	Currency       string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

// Capability is the provider's create/retrieve/cancel surface.
type Capability interface {
	Create(ctx context.Context, p CreateParams) (Intent, error)
	Retrieve(ctx context.Context, id string) (Intent, error)
	Cancel(ctx context.Context, id string) error
}

// Error is the only error type Adapter returns.
type Error struct {
	Op      string
	Message string
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	if e.Timeout {
		return fmt.Sprintf("gateway %s: timed out", e.Op)
	}
	return fmt.Sprintf("gateway %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ProviderError is returned by a Capability when the provider answered with
// an error body; Message is the provider's own text.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider status %d: %s", e.StatusCode, e.Message)
}

// Config is fixed for the process lifetime. Rate converts the order's
// recorded amount into Currency; it is configuration, not a live quote.
type Config struct {
	Currency   string
	Rate       decimal.Decimal
	MinorUnits int32
	Timeout    time.Duration
}

type Adapter struct {
	cap Capability
	cfg Config
}

func NewAdapter(c Capability, cfg Config) (*Adapter, error) {
	if c == nil {
		return nil, errors.New("gateway: nil capability")
	}
	if !cfg.Rate.IsPositive() {
		return nil, fmt.Errorf("gateway: rate must be positive, got %s", cfg.Rate)
	}
	if cfg.MinorUnits < 0 {
		return nil, fmt.Errorf("gateway: minor units must not be negative, got %d", cfg.MinorUnits)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Adapter{cap: c, cfg: cfg}, nil
}

// ToMinorUnits converts amount × rate into integer minor units of the
// settlement currency, truncating toward zero.
func (a *Adapter) ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(a.cfg.Rate).Shift(a.cfg.MinorUnits).Truncate(0).IntPart()
}

// IntentRequest describes the order being paid for.
type IntentRequest struct {
	Amount         decimal.Decimal // in the order's currency of record
	RecordCurrency string
	CustomerRef    string
	Description    string
	Reference      string
}

// CreateIntent converts req.Amount and opens an intent. The order reference
// doubles as the idempotency key so a retried checkout cannot open two
// intents for one order.
func (a *Adapter) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	const op = "create"

	minor := a.ToMinorUnits(req.Amount)
	if minor <= 0 {
		return Intent{}, &Error{Op: op, Message: fmt.Sprintf("amount %s converts to %d minor units", req.Amount, minor)}
	}

	meta := map[string]string{
		"customer_email":  req.CustomerRef,
		"order_reference": req.Reference,
		"original_amount": req.Amount.String(),
	}
	if req.RecordCurrency != "" {
		meta["original_currency"] = req.RecordCurrency
	}

	var intent Intent
	err := a.call(ctx, op, func(ctx context.Context) error {
		var err error
		intent, err = a.cap.Create(ctx, CreateParams{
			AmountMinor:    minor,
			Currency:       a.cfg.Currency,
			Description:    req.Description,
			Metadata:       meta,
			IdempotencyKey: req.Reference,
		})
		return err
	})
	if err != nil {
		return Intent{}, err
	}
	if intent.ID == "" {
		return Intent{}, &Error{Op: op, Message: "provider returned an intent without id"}
	}
	return intent, nil
}

// QueryStatus asks the provider for the authoritative status of id.
func (a *Adapter) QueryStatus(ctx context.Context, id string) (Status, error) {
	var intent Intent
	err := a.call(ctx, "retrieve", func(ctx context.Context) error {
		var err error
		intent, err = a.cap.Retrieve(ctx, id)
		return err
	})
	if err != nil {
		return "", err
	}
	return intent.Status, nil
}

func (a *Adapter) Cancel(ctx context.Context, id string) error {
	return a.call(ctx, "cancel", func(ctx context.Context) error {
		return a.cap.Cancel(ctx, id)
	})
}

// call bounds fn by the configured timeout and shapes any failure as *Error.
func (a *Adapter) call(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	metrics.ObserveGateway(op, err, start)
	if err == nil {
		return nil
	}

	gerr := &Error{Op: op, Message: err.Error(), Err: err}
	var perr *ProviderError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		gerr.Timeout = true
	case errors.As(err, &perr):
		gerr.Message = perr.Message
	}
	return gerr
}
