package cart

import "errors"

// Validation sentinels. Every rejection wraps one of these in a
// RejectionError carrying the user-displayable message.
var (
	ErrProductUnavailable = errors.New("product unavailable")
	ErrOutOfStock         = errors.New("product out of stock")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrVariantRequired    = errors.New("variant selection required")
)

// RejectionError is returned when the validation policy refuses a
// quantity increase. Message is safe to display to the shopper.
type RejectionError struct {
	Reason  error
	Message string
}

func (e *RejectionError) Error() string { return e.Message }

func (e *RejectionError) Unwrap() error { return e.Reason }

func reject(reason error, message string) *RejectionError {
	return &RejectionError{Reason: reason, Message: message}
}
