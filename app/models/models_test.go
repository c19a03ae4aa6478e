package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	allowed := [][2]Status{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusCancelled},
		{StatusConfirmed, StatusPrepared},
		{StatusConfirmed, StatusRefunded},
		{StatusPrepared, StatusShipped},
		{StatusShipped, StatusDelivered},
	}
	all := []Status{StatusPending, StatusConfirmed, StatusPrepared, StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded}

	isAllowed := func(from, to Status) bool {
		for _, p := range allowed {
			if p[0] == from && p[1] == to {
				return true
			}
		}
		return false
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, isAllowed(from, to), from.CanTransitionTo(to), "%s → %s", from, to)
		}
	}

	assert.ElementsMatch(t, []Status{StatusPending}, Predecessors(StatusConfirmed))
	assert.Empty(t, Predecessors(StatusPending))
}

func TestReachedOrPassed(t *testing.T) {
	assert.True(t, StatusConfirmed.ReachedOrPassed(StatusConfirmed))
	assert.True(t, StatusDelivered.ReachedOrPassed(StatusConfirmed))
	assert.True(t, StatusRefunded.ReachedOrPassed(StatusConfirmed))
	assert.False(t, StatusPending.ReachedOrPassed(StatusConfirmed))
	assert.False(t, StatusCancelled.ReachedOrPassed(StatusConfirmed))
}

func TestParseEnums(t *testing.T) {
	m, err := ParsePaymentMethod(" stripe_card ")
	require.NoError(t, err)
	assert.Equal(t, PaymentCard, m)
	assert.True(t, m.RequiresGateway())

	m, err = ParsePaymentMethod("BANK_TRANSFER")
	require.NoError(t, err)
	assert.False(t, m.RequiresGateway())

	_, err = ParsePaymentMethod("BITCOIN")
	assert.ErrorIs(t, err, ErrUnknownPaymentMethod)

	g, err := ParseGender("Femme")
	require.NoError(t, err)
	assert.Equal(t, GenderFemale, g)

	_, err = ParseGender("")
	assert.ErrorIs(t, err, ErrUnknownGender)
}

func TestItemsTotal(t *testing.T) {
	o := Order{Items: []OrderItem{
		{UnitPrice: decimal.RequireFromString("10.000"), Quantity: 2},
		{UnitPrice: decimal.RequireFromString("5.500"), Quantity: 1},
	}}
	assert.True(t, o.ItemsTotal().Equal(decimal.RequireFromString("25.5")))
}

func TestStorableAmount(t *testing.T) {
	for s, want := range map[string]bool{
		"0.001":        true,
		"25.5000":      true,
		"9999999.999":  true,
		"1.0005":       false,
		"10000000":     false,
		"-9999999.999": true,
	} {
		assert.Equal(t, want, StorableAmount(decimal.RequireFromString(s)), s)
	}
}
