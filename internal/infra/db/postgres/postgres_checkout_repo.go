package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"tappay-gateway/internal/domain"
	"tappay-gateway/internal/domain/model"
	"tappay-gateway/internal/domain/ports/repository"
)

var (
	_ repository.CheckoutRepository = (*checkoutRepo)(nil)
	_ repository.OrderRepository    = (*orderRepo)(nil)
)

type checkoutRepo struct{ pool *pgxpool.Pool }

func NewCheckoutRepo(pool *pgxpool.Pool) *checkoutRepo {
	return &checkoutRepo{pool: pool}
}

func (r *checkoutRepo) FindByToken(ctx context.Context, tx repository.Tx, token string) (*model.Checkout, error) {
	q := forUpdate(`SELECT token::text, email, total::text, currency, user_id, completed_at, created_at FROM checkouts WHERE token::text=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, token)
	if err != nil {
		return nil, err
	}
	var (
		c     model.Checkout
		total string
	)
	if err := row.Scan(&c.Token, &c.Email, &total, &c.Currency, &c.UserID, &c.CompletedAt, &c.CreatedAt); err != nil {
		return nil, mapRowErr(err)
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	c.Total = d
	return &c, nil
}

func (r *checkoutRepo) MarkCompleted(ctx context.Context, tx repository.Tx, token string, at time.Time) error {
	const q = `UPDATE checkouts SET completed_at=$2 WHERE token::text=$1 AND completed_at IS NULL;`
	cmd, err := execSQL(ctx, r.pool, tx, q, token, at)
	if err != nil {
		return mapExecErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

func (r *orderRepo) Create(ctx context.Context, tx repository.Tx, o *model.Order) error {
	o.CreatedAt = timeOrNow(o.CreatedAt)
	const q = `
INSERT INTO orders (id, checkout_token, payment_id, total, currency, email, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	_, err := execSQL(ctx, r.pool, tx, q, o.ID, o.CheckoutToken, o.PaymentID, o.Total.String(), o.Currency, o.Email, string(o.Status), o.CreatedAt)
	return mapExecErr(err)
}

func (r *orderRepo) FindByCheckout(ctx context.Context, tx repository.Tx, checkoutToken string) (*model.Order, error) {
	const q = `SELECT id::text, checkout_token::text, payment_id, total::text, currency, email, status, created_at FROM orders WHERE checkout_token::text=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, checkoutToken)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o      model.Order
		total  string
		status string
	)
	if err := row.Scan(&o.ID, &o.CheckoutToken, &o.PaymentID, &total, &o.Currency, &o.Email, &status, &o.CreatedAt); err != nil {
		return nil, mapRowErr(err)
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	o.Total = d
	o.Status = model.OrderStatus(status)
	return &o, nil
}
