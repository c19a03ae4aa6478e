package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/internal/testkit"
	"github.com/shashiranjanraj/storefront/pkg/event"
	"github.com/shashiranjanraj/storefront/pkg/queue"
)

func TestOrderConfirmedSendsReceipt(t *testing.T) {
	ctx := context.Background()
	users := repositories.NewUserRepository(testkit.DB(t))
	user := &models.User{Name: "Ada", Email: "ada@example.com", PasswordHash: "x", Gender: models.GenderFemale}
	require.NoError(t, users.Create(ctx, user))

	sender := &captureSender{}
	driver := queue.NewMemoryDriver(10)
	m := queue.New(driver)
	Register(m, sender)

	bus := event.New()
	ListenOrderConfirmed(bus, m, users)

	bus.Fire(ctx, services.EventOrderConfirmed, services.OrderConfirmed{
		OrderID:   7,
		UserID:    user.ID,
		Reference: "ORD-ABCDEFGHJKLM",
		Total:     decimal.RequireFromString("25.5"),
		PaidAt:    time.Now(),
	})
	bus.Fire(ctx, services.EventOrderConfirmed, services.OrderConfirmed{UserID: user.ID + 100})
	assert.Equal(t, 1, driver.Len(), "unknown customers are skipped")

	wctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		m.Work(wctx, 1)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool { return sender.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	msg := sender.sent[0]
	assert.Equal(t, []string{"ada@example.com"}, msg.To)
	assert.Contains(t, msg.Subject, "ORD-ABCDEFGHJKLM")
	assert.Contains(t, msg.HTML, "25.5")
}
