package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes fn inside a database transaction and passes the
// underlying handle through tx. Repositories detect a tx handle and lock rows
// (SELECT ... FOR UPDATE); they must accept a nil tx as the non-transactional path.
//
// fn returning an error rolls the transaction back; otherwise it is committed.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
