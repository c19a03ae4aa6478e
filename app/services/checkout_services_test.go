package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/pkg/gateway"
)

func TestCheckoutCashOnDelivery(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "ada@example.com")

	res, err := f.checkout.Checkout(ctx, "ada@example.com", cart("CASH_ON_DELIVERY"))
	require.NoError(t, err)
	assert.Empty(t, res.ClientSecret)

	o := res.Order
	assert.NotZero(t, o.ID)
	assert.Equal(t, u.ID, o.UserID)
	assert.Equal(t, models.StatusPending, o.Status)
	assert.Equal(t, models.PaymentCashOnDelivery, o.PaymentMethod)
	assert.Regexp(t, `^ORD-[A-Z2-7]{12}$`, o.Reference)
	assert.True(t, decimal.RequireFromString("25.5").Equal(o.Total))
	assert.Nil(t, o.PaymentIntentID)

	stored, err := f.orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "p1", stored.Items[0].ProductID)
	assert.Equal(t, "M", stored.Items[0].Size)
	f.gw.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything)
}

func TestCheckoutCard(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com")

	f.gw.On("CreateIntent", mock.Anything, mock.MatchedBy(func(req gateway.IntentRequest) bool {
		return req.Amount.Equal(decimal.RequireFromString("25.5")) &&
			req.CustomerRef == "ada@example.com" &&
			req.RecordCurrency == "tnd" &&
			req.Description == "Order "+req.Reference+" - 2 item(s)"
	})).Return(gateway.Intent{ID: "pi_123", ClientSecret: "pi_123_secret", Status: gateway.StatusPending}, nil).Once()

	res, err := f.checkout.Checkout(ctx, "ada@example.com", cart("STRIPE_CARD"))
	require.NoError(t, err)
	assert.Equal(t, "pi_123_secret", res.ClientSecret)
	assert.Equal(t, models.PaymentCard, res.Order.PaymentMethod)

	stored, err := f.orders.FindByPaymentIntent(ctx, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, res.Order.ID, stored.ID)
	assert.Equal(t, models.StatusPending, stored.Status)
	f.gw.AssertExpectations(t)
}

func TestCheckoutCardGatewayFailureKeepsPendingOrder(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "ada@example.com")

	f.gw.On("CreateIntent", mock.Anything, mock.Anything).
		Return(gateway.Intent{}, &gateway.Error{Op: "create", Message: "Your card was declined."}).Once()

	_, err := f.checkout.Checkout(ctx, "ada@example.com", cart("CARD"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateway)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, 502, e.HTTPStatus())
	assert.Contains(t, e.PublicMessage(), "Your card was declined.")

	orders, err := f.orders.FindByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.StatusPending, orders[0].Status)
	assert.Nil(t, orders[0].PaymentIntentID)
}

func TestCheckoutLinksIntentAfterClientDisconnect(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com")

	reqCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.gw.On("CreateIntent", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(gateway.Intent{ID: "pi_gone", ClientSecret: "s"}, nil).Once()

	_, err := f.checkout.Checkout(reqCtx, "ada@example.com", cart("CARD"))
	require.NoError(t, err)

	stored, err := f.orders.FindByPaymentIntent(ctx, "pi_gone")
	require.NoError(t, err)
	assert.Equal(t, "pi_gone", *stored.PaymentIntentID)
}

func TestCheckoutRejectsUnknownMethodFirst(t *testing.T) {
	f := newFixture(t)

	in := cart("BITCOIN")
	in.Total = decimal.RequireFromString("1")
	_, err := f.checkout.Checkout(ctx, "nobody@example.com", in)
	assert.ErrorIs(t, err, ErrUnknownPaymentMethod)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestCheckoutAmountMismatch(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "ada@example.com")

	in := cart("CARD")
	in.Total = decimal.RequireFromString("25.49")
	_, err := f.checkout.Checkout(ctx, "ada@example.com", in)
	assert.ErrorIs(t, err, ErrAmountMismatch)

	orders, err := f.orders.FindByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
	f.gw.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything)
}

func TestCheckoutAcceptsEqualTotalsWithDifferentScale(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com")

	in := cart("BANK_TRANSFER")
	in.Total = decimal.RequireFromString("25.500")
	_, err := f.checkout.Checkout(ctx, "ada@example.com", in)
	assert.NoError(t, err)
}

func TestCheckoutValidatesCart(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com")

	in := cart("CARD")
	in.Items[0].Quantity = 0
	in.Phone = ""
	_, err := f.checkout.Checkout(ctx, "ada@example.com", in)
	require.Error(t, err)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, KindValidation, e.Kind)
	assert.Contains(t, e.Fields(), "items[0].quantity")
	assert.Contains(t, e.Fields(), "phone")
}

func TestCheckoutRejectsAmountsOutsideMoneyColumns(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "ada@example.com")

	in := cart("CASH_ON_DELIVERY")
	in.Items = []CartItem{{ProductID: "p1", Title: "Pin", UnitPrice: decimal.RequireFromString("1.0005"), Quantity: 2}}
	in.Total = decimal.RequireFromString("2.001")
	_, err := f.checkout.Checkout(ctx, "ada@example.com", in)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, KindValidation, e.Kind)
	assert.Equal(t, "must have at most 3 decimal places", e.Fields()["items[0].unit_price"])

	in = cart("CASH_ON_DELIVERY")
	in.Items = []CartItem{{ProductID: "p1", Title: "Yacht", UnitPrice: decimal.RequireFromString("10000000"), Quantity: 1}}
	in.Total = decimal.RequireFromString("10000000")
	_, err = f.checkout.Checkout(ctx, "ada@example.com", in)
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "must not exceed 9999999.999", e.Fields()["items[0].unit_price"])
	assert.Equal(t, "must not exceed 9999999.999", e.Fields()["total"])

	orders, err := f.orders.FindByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCheckoutUnknownSubjectIsInvariant(t *testing.T) {
	f := newFixture(t)

	_, err := f.checkout.Checkout(ctx, "ghost@example.com", cart("CARD"))
	assert.ErrorIs(t, err, ErrInvariant)
	assert.Equal(t, 500, ErrInvariant.HTTPStatus())
}

func TestOrdersAreScopedToOwner(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com")
	f.register(t, "bob@example.com")

	res, err := f.checkout.Checkout(ctx, "ada@example.com", cart("CASH_ON_DELIVERY"))
	require.NoError(t, err)

	mine, err := f.checkout.Orders(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	theirs, err := f.checkout.Orders(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Empty(t, theirs)

	_, err = f.checkout.Order(ctx, "bob@example.com", res.Order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	_, err = f.checkout.Order(ctx, "ada@example.com", res.Order.ID+100)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	got, err := f.checkout.Order(ctx, "ada@example.com", res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Order.Reference, got.Reference)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "ada@example.com")

	cod, err := f.checkout.Checkout(ctx, "ada@example.com", cart("CASH_ON_DELIVERY"))
	require.NoError(t, err)
	got, err := f.checkout.CancelOrder(ctx, "ada@example.com", cod.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)

	_, err = f.checkout.CancelOrder(ctx, "ada@example.com", cod.Order.ID)
	assert.NoError(t, err, "cancelling twice is a no-op")

	card := f.placeCardOrder(t, u.ID, "ORD-CARDCARDCARD", "pi_cancel")
	f.gw.On("Cancel", mock.Anything, "pi_cancel").Return(nil).Once()
	got, err = f.checkout.CancelOrder(ctx, "ada@example.com", card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	f.gw.AssertExpectations(t)
}

func TestCancelOrderGatewayFailureLeavesStatus(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "ada@example.com")

	card := f.placeCardOrder(t, u.ID, "ORD-CARDCARDCARD", "pi_stuck")
	f.gw.On("Cancel", mock.Anything, "pi_stuck").Return(&gateway.Error{Op: "cancel", Timeout: true}).Once()

	_, err := f.checkout.CancelOrder(ctx, "ada@example.com", card.ID)
	assert.ErrorIs(t, err, ErrGateway)

	stored, err := f.orders.FindByID(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestCancelConfirmedOrderIsIllegal(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "ada@example.com")

	card := f.placeCardOrder(t, u.ID, "ORD-CARDCARDCARD", "pi_paid")
	require.NoError(t, f.orders.TransitionStatus(ctx, card.ID, models.StatusConfirmed, f.clock.Now()))

	_, err := f.checkout.CancelOrder(ctx, "ada@example.com", card.ID)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = f.checkout.CancelOrder(ctx, "bob@example.com", card.ID)
	assert.ErrorIs(t, err, ErrInvariant, "unknown subject")
}
