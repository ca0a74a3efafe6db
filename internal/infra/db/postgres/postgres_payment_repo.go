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

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, token, gateway, is_active, return_url, checkout_token::text, order_id::text, total::text, currency, customer_email, created_at, updated_at`

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Payment, error) {
	q := forUpdate(`SELECT `+paymentColumns+` FROM payments WHERE id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindActiveForGateway(ctx context.Context, tx repository.Tx, id int64, gateway string) (*model.Payment, error) {
	q := forUpdate(`SELECT `+paymentColumns+` FROM payments WHERE id=$1 AND is_active AND gateway=$2`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, id, gateway)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) AttachOrder(ctx context.Context, tx repository.Tx, paymentID int64, orderID string) error {
	const q = `UPDATE payments SET order_id=$2, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, paymentID, orderID)
	if err != nil {
		return mapExecErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var (
		p     model.Payment
		total string
	)
	if err := row.Scan(&p.ID, &p.Token, &p.Gateway, &p.IsActive, &p.ReturnURL, &p.CheckoutToken, &p.OrderID, &total, &p.Currency, &p.CustomerEmail, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapRowErr(err)
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	p.Total = d
	return &p, nil
}

// timeOrNow is shared by inserts that let the caller pin created_at in tests.
func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
