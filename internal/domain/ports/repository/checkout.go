package repository

import (
	"context"
	"time"

	"tappay-gateway/internal/domain/model"
)

type CheckoutRepository interface {
	FindByToken(ctx context.Context, qx Tx, token string) (*model.Checkout, error)
	MarkCompleted(ctx context.Context, qx Tx, token string, at time.Time) error
}

type OrderRepository interface {
	Create(ctx context.Context, qx Tx, o *model.Order) error
	FindByCheckout(ctx context.Context, qx Tx, checkoutToken string) (*model.Order, error)
}
