package repositories

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	// ErrEmailTaken is returned when the users.email unique index rejects a
	// write, whatever the pre-check said.
	ErrEmailTaken = errors.New("email already registered")
	// ErrAlreadyInStatus means the order is already at the target status.
	// Callers treat it as a successful no-op.
	ErrAlreadyInStatus   = errors.New("order already in target status")
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrIntentAlreadySet guards the single write of payment_intent_id.
	ErrIntentAlreadySet = errors.New("order already linked to a payment intent")
)
