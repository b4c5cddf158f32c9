package errors

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrAlreadyExists    = errors.New("already exists")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrPaymentSettled   = errors.New("payment already settled")
	ErrOrderNumberTaken = errors.New("order number already taken")

	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrGatewayUnreachable = errors.New("payment gateway unreachable")
	ErrGatewayTimeout     = errors.New("payment gateway timed out")
	ErrGatewayTransport   = errors.New("payment gateway connection failed")
	ErrGatewayRejected    = errors.New("payment gateway rejected request")
	ErrMalformedResponse  = errors.New("malformed payment gateway response")
)

// ValidationError describes a user-correctable problem with one input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// GatewayError carries the gateway-provided detail of a rejected call.
type GatewayError struct {
	Stage      string
	StatusCode int
	Code       string
	Detail     string
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s rejected (status %d, code %s): %s", e.Stage, e.StatusCode, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s rejected (status %d): %s", e.Stage, e.StatusCode, e.Detail)
}

func (e *GatewayError) Unwrap() error { return ErrGatewayRejected }

// Kind classifies err into a stable identifier exposed to clients.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrOrderNumberTaken):
		return "conflict"
	case errors.Is(err, ErrPaymentSettled):
		return "payment_settled"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNetworkUnavailable):
		return "network_unavailable"
	case errors.Is(err, ErrGatewayUnreachable):
		return "gateway_unreachable"
	case errors.Is(err, ErrGatewayTimeout), errors.Is(err, context.DeadlineExceeded):
		return "gateway_timeout"
	case errors.Is(err, ErrGatewayTransport):
		return "gateway_transport"
	case errors.Is(err, ErrGatewayRejected):
		return "gateway_rejected"
	case errors.Is(err, ErrMalformedResponse):
		return "gateway_malformed"
	default:
		return "internal"
	}
}
