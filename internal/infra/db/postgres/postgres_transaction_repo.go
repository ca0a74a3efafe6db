package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"tappay-gateway/internal/domain"
	"tappay-gateway/internal/domain/model"
	"tappay-gateway/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const transactionColumns = `id, payment_id, kind, is_success, action_required, token, amount::text, currency, error, gateway_response, created_at`

// Create appends t to the log. A missing ID is filled with a ULID.
func (r *transactionRepo) Create(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	if t.PaymentID == 0 || t.Kind == "" {
		return domain.ErrInvalidArgument
	}
	t.CreatedAt = timeOrNow(t.CreatedAt)
	if t.ID == "" {
		t.ID = ulid.MustNew(ulid.Timestamp(t.CreatedAt), ulid.DefaultEntropy()).String()
	}
	if t.GatewayResponse == nil {
		t.GatewayResponse = map[string]any{}
	}
	const q = `
INSERT INTO payment_transactions (
  id, payment_id, kind, is_success, action_required, token, amount, currency, error, gateway_response, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);`

	_, err := execSQL(ctx, r.pool, tx, q,
		t.ID, t.PaymentID, string(t.Kind), t.IsSuccess, t.ActionRequired, t.Token,
		t.Amount.String(), t.Currency, t.Error, t.GatewayResponse, t.CreatedAt)
	return mapExecErr(err)
}

func (r *transactionRepo) Find(ctx context.Context, tx repository.Tx, f model.TransactionFilter) (*model.Transaction, error) {
	where, args := transactionWhere(f)
	order := "ASC"
	if f.Newest {
		order = "DESC"
	}
	q := fmt.Sprintf(`SELECT %s FROM payment_transactions WHERE %s ORDER BY created_at %s, id %s LIMIT 1`, transactionColumns, where, order, order)
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanTransaction(row)
}

func (r *transactionRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID int64) ([]*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE payment_id=$1 ORDER BY created_at ASC, id ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapRowErr(err)
	}
	return out, nil
}

func transactionWhere(f model.TransactionFilter) (string, []any) {
	conds := []string{"payment_id=$1"}
	args := []any{f.PaymentID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		add("kind = ANY($%d)", kinds)
	}
	if f.IsSuccess != nil {
		add("is_success=$%d", *f.IsSuccess)
	}
	if f.ActionRequired != nil {
		add("action_required=$%d", *f.ActionRequired)
	}
	if f.NonEmptyToken {
		conds = append(conds, "token <> ''")
	}
	if f.Amount != nil {
		add("amount=$%d", f.Amount.String())
	}
	if f.Currency != "" {
		add("currency=$%d", f.Currency)
	}
	return strings.Join(conds, " AND "), args
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var (
		t         model.Transaction
		kind      string
		amount    string
		createdAt time.Time
	)
	if err := row.Scan(&t.ID, &t.PaymentID, &kind, &t.IsSuccess, &t.ActionRequired, &t.Token, &amount, &t.Currency, &t.Error, &t.GatewayResponse, &createdAt); err != nil {
		return nil, mapRowErr(err)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	t.Kind = model.TransactionKind(kind)
	t.Amount = d
	t.CreatedAt = createdAt
	return &t, nil
}
