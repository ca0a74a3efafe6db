package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrCheckoutValidation = errors.New("checkout validation failed")
	ErrLeaseNotAcquired   = errors.New("payment is locked by another request")
)

// ErrorKind tags a PaymentError so callers can branch without string matching.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindInvalidRequest
	KindTransportFailure
	KindValidationFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidRequest:
		return "invalid_request"
	case KindTransportFailure:
		return "transport_failure"
	case KindValidationFailure:
		return "validation_failure"
	default:
		return "unknown"
	}
}

// MsgTransportFailure is the only text a vendor transport problem surfaces with.
const MsgTransportFailure = "Unable to process the payment request."

// PaymentError is the single failure type of the gateway plugin.
// Msg is safe to show to the platform; vendor detail stays in Err and in logs.
type PaymentError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *PaymentError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.String()
}

func (e *PaymentError) Unwrap() error { return e.Err }

func NewNotFound(msg string) *PaymentError {
	return &PaymentError{Kind: KindNotFound, Msg: msg, Err: ErrNotFound}
}

func NewInvalidRequest(msg string) *PaymentError {
	return &PaymentError{Kind: KindInvalidRequest, Msg: msg, Err: ErrInvalidArgument}
}

func NewValidationFailure(msg string) *PaymentError {
	return &PaymentError{Kind: KindValidationFailure, Msg: msg}
}

func NewTransportFailure(cause error) *PaymentError {
	return &PaymentError{Kind: KindTransportFailure, Msg: MsgTransportFailure, Err: cause}
}

// AsPaymentError reports whether err carries a PaymentError.
func AsPaymentError(err error) (*PaymentError, bool) {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ErrorKindOf returns the tag of err, or 0 when err is not a PaymentError.
func ErrorKindOf(err error) ErrorKind {
	if pe, ok := AsPaymentError(err); ok {
		return pe.Kind
	}
	return 0
}
