package repository

import "context"

// PaymentLocker grants an exclusive lease on a payment for the duration of a
// request. release must be called exactly once.
type PaymentLocker interface {
	Acquire(ctx context.Context, paymentID int64) (release func(), err error)
}
