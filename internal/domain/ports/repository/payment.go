package repository

import (
	"context"

	"tappay-gateway/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

// PaymentRepository reads platform payments. Implementations lock the row
// (SELECT ... FOR UPDATE) when qx is a transaction handle.
type PaymentRepository interface {
	FindByID(ctx context.Context, qx Tx, id int64) (*model.Payment, error)
	// FindActiveForGateway returns the active payment with the given id that
	// belongs to gateway, or domain.ErrNotFound.
	FindActiveForGateway(ctx context.Context, qx Tx, id int64, gateway string) (*model.Payment, error)
	AttachOrder(ctx context.Context, qx Tx, paymentID int64, orderID string) error
}

// -----------------------------
// Transactions
// -----------------------------

type TransactionRepository interface {
	Create(ctx context.Context, qx Tx, t *model.Transaction) error
	// Find returns the first (or, with f.Newest, the latest) transaction
	// matching f, or domain.ErrNotFound.
	Find(ctx context.Context, qx Tx, f model.TransactionFilter) (*model.Transaction, error)
	ListByPayment(ctx context.Context, qx Tx, paymentID int64) ([]*model.Transaction, error)
}
