package jobs

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/event"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/mail"
)

const SendOrderConfirmedName = "mail.order_confirmed"

var orderConfirmedTemplate = template.Must(template.New("order_confirmed").Parse(`<p>Hello {{.Name}},</p>
<p>We received your payment for order <strong>{{.Reference}}</strong> ({{.Total}}).</p>
<p>We will let you know when it ships.</p>`))

// SendOrderConfirmedJob emails a payment receipt.
type SendOrderConfirmedJob struct {
	Email     string    `json:"email"`
	Recipient string    `json:"name"`
	Reference string    `json:"reference"`
	Total     string    `json:"total"`
	PaidAt    time.Time `json:"paid_at"`

	mailer mail.Sender
}

func (j *SendOrderConfirmedJob) Name() string { return SendOrderConfirmedName }

func (j *SendOrderConfirmedJob) Handle(ctx context.Context) error {
	var body bytes.Buffer
	err := orderConfirmedTemplate.Execute(&body, map[string]string{
		"Name":      j.Recipient,
		"Reference": j.Reference,
		"Total":     j.Total,
	})
	if err != nil {
		return fmt.Errorf("render order confirmed mail: %w", err)
	}
	return j.mailer.Send(ctx, mail.Message{
		To:      []string{j.Email},
		Subject: fmt.Sprintf("Payment received for %s", j.Reference),
		Text:    fmt.Sprintf("We received your payment for order %s (%s).", j.Reference, j.Total),
		HTML:    body.String(),
	})
}

// ListenOrderConfirmed queues a receipt mail whenever an order is confirmed.
// Failing to queue is logged; the confirmation itself stands.
func ListenOrderConfirmed(bus *event.Bus, q Dispatcher, users *repositories.UserRepository) {
	bus.Listen(services.EventOrderConfirmed, func(ctx context.Context, payload interface{}) {
		ev, ok := payload.(services.OrderConfirmed)
		if !ok {
			return
		}
		log := logger.WithCtx(ctx).With("order_id", ev.OrderID)

		user, err := users.FindByID(ctx, ev.UserID)
		if err != nil {
			log.Error("receipt: load customer", "error", err)
			return
		}
		err = q.Dispatch(ctx, &SendOrderConfirmedJob{
			Email:     user.Email,
			Recipient: user.Name,
			Reference: ev.Reference,
			Total:     ev.Total.String(),
			PaidAt:    ev.PaidAt,
		})
		if err != nil {
			log.Error("receipt: dispatch", "error", err)
		}
	})
}
