package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tappay-gateway/internal/domain"
	"tappay-gateway/internal/domain/model"
	"tappay-gateway/internal/domain/ports/repository"
	"tappay-gateway/internal/infra/logging"
)

// CheckoutCompleter turns a paid checkout into an order. Failures that leave
// the checkout unpayable wrap domain.ErrCheckoutValidation.
type CheckoutCompleter interface {
	Complete(ctx context.Context, qx repository.Tx, checkout *model.Checkout, payment *model.Payment) (*model.Order, error)
}

var _ CheckoutCompleter = (*checkoutUC)(nil)

type checkoutUC struct {
	checkouts repository.CheckoutRepository
	orders    repository.OrderRepository
	payments  repository.PaymentRepository
	logger    *zerolog.Logger
}

func NewCheckoutUseCase(checkouts repository.CheckoutRepository, orders repository.OrderRepository, payments repository.PaymentRepository, logger *zerolog.Logger) *checkoutUC {
	return &checkoutUC{checkouts: checkouts, orders: orders, payments: payments, logger: logger}
}

func (u *checkoutUC) Complete(ctx context.Context, qx repository.Tx, checkout *model.Checkout, payment *model.Payment) (*model.Order, error) {
	if err := validateCheckout(checkout, payment); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &model.Order{
		ID:            uuid.NewString(),
		CheckoutToken: checkout.Token,
		PaymentID:     payment.ID,
		Total:         checkout.Total,
		Currency:      checkout.Currency,
		Email:         checkout.Email,
		Status:        model.OrderStatusUnfulfilled,
		CreatedAt:     now,
	}
	if err := u.orders.Create(ctx, qx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if err := u.payments.AttachOrder(ctx, qx, payment.ID, order.ID); err != nil {
		return nil, fmt.Errorf("attach order: %w", err)
	}
	if err := u.checkouts.MarkCompleted(ctx, qx, checkout.Token, now); err != nil {
		return nil, fmt.Errorf("complete checkout: %w", err)
	}

	l := logging.With(ctx, u.logger)
	l.Info().Str("order_id", order.ID).Msg("checkout completed")
	return order, nil
}

func validateCheckout(checkout *model.Checkout, payment *model.Payment) error {
	switch {
	case checkout.Completed():
		return fmt.Errorf("%w: checkout %s already completed", domain.ErrCheckoutValidation, checkout.Token)
	case checkout.Email == "":
		return fmt.Errorf("%w: checkout %s has no email", domain.ErrCheckoutValidation, checkout.Token)
	case checkout.Currency != payment.Currency:
		return fmt.Errorf("%w: payment currency %s does not match checkout currency %s", domain.ErrCheckoutValidation, payment.Currency, checkout.Currency)
	case !checkout.Total.Equal(payment.Total):
		return fmt.Errorf("%w: payment total %s does not cover checkout total %s", domain.ErrCheckoutValidation, payment.Total, checkout.Total)
	}
	return nil
}
