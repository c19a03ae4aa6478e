package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies every failure a workflow can return.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuth
	KindNotFound
	KindConflict
	KindGateway
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindGateway:
		return "gateway"
	case KindInvariant:
		return "invariant"
	}
	return "unknown"
}

// Error is the typed failure returned by services. Code is stable and
// machine-readable; Message is safe to show to clients; Err carries the
// underlying cause for logs.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by Kind and Code so callers can write
// errors.Is(err, services.ErrEmailTaken).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Code == e.Code
}

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (e *Error) PublicMessage() string      { return e.Message }
func (e *Error) Fields() map[string]string { return e.Details }

// wrap returns a copy of sentinel carrying cause.
func wrap(sentinel *Error, cause error) *Error {
	out := *sentinel
	out.Err = cause
	return &out
}

// internal classifies a storage or runtime failure as ErrInternal. Errors
// that already carry a Kind pass through unchanged.
func internal(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return wrap(ErrInternal, err)
}

// Invalid builds a validation error with per-field detail.
func Invalid(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Code: "invalid_input", Message: "Validation failed", Details: fields}
}

var (
	ErrInvalidInput         = &Error{Kind: KindValidation, Code: "invalid_input", Message: "Validation failed"}
	ErrAmountMismatch       = &Error{Kind: KindValidation, Code: "amount_mismatch", Message: "declared total does not match the items"}
	ErrUnknownPaymentMethod = &Error{Kind: KindValidation, Code: "unknown_payment_method", Message: "unknown payment method"}
	ErrUnknownGender        = &Error{Kind: KindValidation, Code: "unknown_gender", Message: "unknown gender"}

	ErrInvalidCredentials = &Error{Kind: KindAuth, Code: "invalid_credentials", Message: "invalid email or password"}
	ErrWrongOldSecret     = &Error{Kind: KindAuth, Code: "wrong_old_password", Message: "current password is incorrect"}
	ErrInvalidCode        = &Error{Kind: KindAuth, Code: "invalid_code", Message: "invalid reset code"}
	ErrCodeExpired        = &Error{Kind: KindAuth, Code: "code_expired", Message: "reset code expired"}

	ErrNotFound      = &Error{Kind: KindNotFound, Code: "not_found", Message: "Not found"}
	ErrUserNotFound  = &Error{Kind: KindNotFound, Code: "user_not_found", Message: "user not found"}
	ErrOrderNotFound = &Error{Kind: KindNotFound, Code: "order_not_found", Message: "order not found"}

	ErrEmailTaken        = &Error{Kind: KindConflict, Code: "email_taken", Message: "email already registered"}
	ErrIllegalTransition = &Error{Kind: KindConflict, Code: "illegal_transition", Message: "order cannot move to the requested status"}

	ErrGateway = &Error{Kind: KindGateway, Code: "gateway_error", Message: "payment provider error"}

	ErrInvariant = &Error{Kind: KindInvariant, Code: "invariant_violation", Message: "Internal Server Error"}
	ErrInternal  = &Error{Kind: KindInvariant, Code: "internal_error", Message: "Internal Server Error"}
)

// KindOf returns the Kind of err, or 0 for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
