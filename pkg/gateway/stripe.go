package gateway

import (
	"context"
	"net/url"
	"strconv"
	"time"

	storehttp "github.com/shashiranjanraj/storefront/pkg/http"
)

// StripeClient is a Capability over Stripe's PaymentIntents REST API.
type StripeClient struct {
	http      *storehttp.Client
	secretKey string
}

// NewStripeClient talks to baseURL (https://api.stripe.com in production).
func NewStripeClient(baseURL, secretKey string, timeout time.Duration) *StripeClient {
	return &StripeClient{
		http:      storehttp.NewClient(baseURL, timeout),
		secretKey: secretKey,
	}
}

type stripeIntent struct {
	ID               string `json:"id"`
	ClientSecret     string `json:"client_secret"`
	Status           string `json:"status"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *StripeClient) Create(ctx context.Context, p CreateParams) (Intent, error) {
	form := url.Values{
		"amount":                             {strconv.FormatInt(p.AmountMinor, 10)},
		"currency":                           {p.Currency},
		"automatic_payment_methods[enabled]": {"true"},
	}
	if p.Description != "" {
		form.Set("description", p.Description)
	}
	for k, v := range p.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	req := s.http.Post("/v1/payment_intents").Bearer(s.secretKey).Form(form)
	if p.IdempotencyKey != "" {
		req = req.Header("Idempotency-Key", p.IdempotencyKey).Retry(3, 200*time.Millisecond)
	}
	return s.intent(ctx, req)
}

func (s *StripeClient) Retrieve(ctx context.Context, id string) (Intent, error) {
	req := s.http.Get("/v1/payment_intents/" + url.PathEscape(id)).
		Bearer(s.secretKey).
		Retry(3, 200*time.Millisecond)
	return s.intent(ctx, req)
}

func (s *StripeClient) Cancel(ctx context.Context, id string) error {
	req := s.http.Post("/v1/payment_intents/" + url.PathEscape(id) + "/cancel").Bearer(s.secretKey)
	_, err := s.intent(ctx, req)
	return err
}

func (s *StripeClient) intent(ctx context.Context, req *storehttp.Request) (Intent, error) {
	resp, err := req.Send(ctx)
	if err != nil {
		return Intent{}, err
	}
	if !resp.OK() {
		var body stripeError
		if resp.Decode(&body) != nil || body.Error.Message == "" {
			return Intent{}, &ProviderError{StatusCode: resp.StatusCode, Message: "unexpected response"}
		}
		return Intent{}, &ProviderError{StatusCode: resp.StatusCode, Code: body.Error.Code, Message: body.Error.Message}
	}

	var pi stripeIntent
	if err := resp.Decode(&pi); err != nil {
		return Intent{}, err
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: normalise(pi)}, nil
}

// normalise folds Stripe's intent lifecycle into four states. Stripe has no
// terminal failure status: a declined attempt returns the intent to
// requires_payment_method with last_payment_error set.
func normalise(pi stripeIntent) Status {
	switch pi.Status {
	case "succeeded":
		return StatusSucceeded
	case "canceled":
		return StatusCancelled
	case "requires_payment_method":
		if pi.LastPaymentError != nil {
			return StatusFailed
		}
		return StatusPending
	default:
		return StatusPending
	}
}
