// Package jobs holds the background jobs the storefront dispatches.
package jobs

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/pkg/mail"
	"github.com/shashiranjanraj/storefront/pkg/queue"
)

const SendResetCodeName = "mail.reset_code"

var resetCodeTemplate = template.Must(template.New("reset_code").Parse(`<p>Hello {{.Name}},</p>
<p>Your password reset code is <strong>{{.Code}}</strong>.</p>
<p>It expires at {{.ExpiresAt}}. If you did not ask for it, ignore this email.</p>`))

// SendResetCodeJob emails a password-reset code.
type SendResetCodeJob struct {
	Email     string    `json:"email"`
	Recipient string    `json:"name"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`

	mailer mail.Sender
}

func (j *SendResetCodeJob) Name() string { return SendResetCodeName }

func (j *SendResetCodeJob) Handle(ctx context.Context) error {
	var body bytes.Buffer
	err := resetCodeTemplate.Execute(&body, map[string]string{
		"Name":      j.Recipient,
		"Code":      j.Code,
		"ExpiresAt": j.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"),
	})
	if err != nil {
		return fmt.Errorf("render reset code mail: %w", err)
	}
	return j.mailer.Send(ctx, mail.Message{
		To:      []string{j.Email},
		Subject: "Your password reset code",
		Text:    fmt.Sprintf("Your password reset code is %s.", j.Code),
		HTML:    body.String(),
	})
}

// Register makes the storefront's jobs decodable by m's workers.
func Register(m *queue.Manager, mailer mail.Sender) {
	m.Register(SendResetCodeName, func() queue.Job { return &SendResetCodeJob{mailer: mailer} })
	m.Register(SendOrderConfirmedName, func() queue.Job { return &SendOrderConfirmedJob{mailer: mailer} })
}

// Dispatcher is the part of queue.Manager a notifier needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, job queue.Job) error
}

// ResetCodeNotifier delivers reset codes through the queue.
type ResetCodeNotifier struct {
	queue Dispatcher
}

func NewResetCodeNotifier(q Dispatcher) *ResetCodeNotifier {
	return &ResetCodeNotifier{queue: q}
}

func (n *ResetCodeNotifier) NotifyResetCode(ctx context.Context, user *models.User, code string, expiresAt time.Time) error {
	return n.queue.Dispatch(ctx, &SendResetCodeJob{
		Email:     user.Email,
		Recipient: user.Name,
		Code:      code,
		ExpiresAt: expiresAt,
	})
}
