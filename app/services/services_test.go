package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/internal/testkit"
	"github.com/shashiranjanraj/storefront/pkg/auth"
	"github.com/shashiranjanraj/storefront/pkg/gateway"
)

var ctx = context.Background()

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateIntent(ctx context.Context, req gateway.IntentRequest) (gateway.Intent, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(gateway.Intent), args.Error(1)
}

func (m *mockGateway) QueryStatus(ctx context.Context, id string) (gateway.Status, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(gateway.Status), args.Error(1)
}

func (m *mockGateway) Cancel(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type sentCode struct {
	UserID    uint
	Code      string
	ExpiresAt time.Time
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentCode
}

func (n *recordingNotifier) NotifyResetCode(_ context.Context, u *models.User, code string, exp time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentCode{UserID: u.ID, Code: code, ExpiresAt: exp})
	return nil
}

func (n *recordingNotifier) last() sentCode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	db       *gorm.DB
	users    *repositories.UserRepository
	orders   *repositories.OrderRepository
	gw       *mockGateway
	clock    *clock
	notifier *recordingNotifier
	accounts *AccountService
	checkout *CheckoutService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testkit.DB(t)
	f := &fixture{
		db:       db,
		users:    repositories.NewUserRepository(db),
		orders:   repositories.NewOrderRepository(db),
		gw:       &mockGateway{},
		clock:    newClock(),
		notifier: &recordingNotifier{},
	}

	var err error
	f.accounts, err = NewAccountService(AccountDeps{
		Users:    f.users,
		Hasher:   auth.NewPasswordHasher(4),
		Notifier: f.notifier,
		ResetTTL: time.Hour,
		Now:      f.clock.Now,
	})
	require.NoError(t, err)

	f.checkout = NewCheckoutService(CheckoutDeps{
		Users:          f.users,
		Orders:         f.orders,
		Gateway:        f.gw,
		RecordCurrency: "tnd",
		Now:            f.clock.Now,
	})
	return f
}

func (f *fixture) register(t *testing.T, email string) *models.User {
	t.Helper()
	u, err := f.accounts.Register(ctx, RegisterInput{Name: "Ada", Email: email, Password: "s3cret-pass", Gender: "FEMALE"})
	require.NoError(t, err)
	return u
}

func cart(method string) CheckoutInput {
	return CheckoutInput{
		Items: []CartItem{
			{ProductID: "p1", Title: "Shirt", UnitPrice: decimal.RequireFromString("10.000"), Quantity: 2, Size: "M"},
			{ProductID: "p2", Title: "Cap", UnitPrice: decimal.RequireFromString("5.5"), Quantity: 1},
		},
		Total:           decimal.RequireFromString("25.5"),
		PaymentMethod:   method,
		ShippingAddress: "1 Main St, Tunis",
		Phone:           "+21600000000",
	}
}

// placeCardOrder persists a PENDING card order linked to intentID without
// going through the gateway.
func (f *fixture) placeCardOrder(t *testing.T, userID uint, ref, intentID string) *models.Order {
	t.Helper()
	o := &models.Order{
		UserID:          userID,
		Status:          models.StatusPending,
		PaymentMethod:   models.PaymentCard,
		Reference:       ref,
		ShippingAddress: "1 Main St",
		Phone:           "+21600000000",
		Total:           decimal.RequireFromString("10"),
		Items: []models.OrderItem{
			{ProductID: "p1", ProductTitle: "Shirt", UnitPrice: decimal.RequireFromString("10"), Quantity: 1},
		},
	}
	require.NoError(t, f.orders.Create(ctx, o))
	if intentID != "" {
		require.NoError(t, f.orders.SetPaymentIntent(ctx, o.ID, intentID))
		o.PaymentIntentID = &intentID
	}
	return o
}
