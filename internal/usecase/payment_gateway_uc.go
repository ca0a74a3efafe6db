package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"tappay-gateway/internal/domain"
	"tappay-gateway/internal/domain/model"
	"tappay-gateway/internal/domain/ports/repository"
	"tappay-gateway/internal/infra/logging"
)

var _ PaymentGatewayUseCase = (*paymentGatewayUC)(nil)

// ErrPluginInactive is returned when the chain yields no response because the
// gateway is switched off.
var ErrPluginInactive = errors.New("payment gateway is not active")

// PaymentGatewayUseCase is the platform side of the plugin chain: it invokes
// the gateway and keeps the payment's transaction log.
type PaymentGatewayUseCase interface {
	Process(ctx context.Context, data model.PaymentData) (*model.GatewayResponse, error)
	Confirm(ctx context.Context, data model.PaymentData) (*model.GatewayResponse, error)
	Capture(ctx context.Context, data model.PaymentData) (*model.GatewayResponse, error)
	Refund(ctx context.Context, data model.PaymentData) (*model.GatewayResponse, error)
	Void(ctx context.Context, data model.PaymentData) (*model.GatewayResponse, error)
	Gateway(checkoutToken string) (*model.PaymentGateway, error)
	Currencies() []string
}

type paymentGatewayUC struct {
	plugin       *GatewayPlugin
	payments     repository.PaymentRepository
	transactions repository.TransactionRepository
	tm           repository.TransactionManager
	locker       repository.PaymentLocker
	logger       *zerolog.Logger
}

func NewPaymentGatewayUseCase(
	plugin *GatewayPlugin,
	payments repository.PaymentRepository,
	transactions repository.TransactionRepository,
	tm repository.TransactionManager,
	locker repository.PaymentLocker,
	logger *zerolog.Logger,
) *paymentGatewayUC {
	return &paymentGatewayUC{
		plugin:       plugin,
		payments:     payments,
		transactions: transactions,
		tm:           tm,
		locker:       locker,
		logger:       logger,
	}
}

type gatewayOp func(ctx context.Context, qx repository.Tx, data *model.PaymentData) (*model.GatewayResponse, error)

// run invokes op and appends its response to the payment's log, both on qx.
func (u *paymentGatewayUC) run(ctx context.Context, qx repository.Tx, name string, data model.PaymentData, op gatewayOp) (*model.GatewayResponse, error) {
	ctx = logging.WithPaymentID(ctx, data.PaymentID)
	l := logging.With(ctx, u.logger)
	defer logging.TraceDuration(l, "PaymentGatewayUC."+name)()

	if err := u.hydrate(ctx, qx, &data); err != nil {
		return nil, err
	}
	resp, err := op(ctx, qx, &data)
	if err != nil {
		l.Warn().Err(err).Str("op", name).Msg("gateway operation failed")
		return nil, err
	}
	if resp == nil {
		return nil, ErrPluginInactive
	}
	if resp.TransactionAlreadyProcessed {
		return resp, nil
	}
	if err := recordTransaction(ctx, u.transactions, qx, data.PaymentID, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// runExclusive is run under the payment's lease and inside one database
// transaction, the same guard the vendor redirect takes. Two confirmations of
// one payment, or a confirmation racing the redirect, see each other's log.
func (u *paymentGatewayUC) runExclusive(ctx context.Context, name string, data model.PaymentData, op gatewayOp) (*model.GatewayResponse, error) {
	release, err := u.locker.Acquire(ctx, data.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("payment lease: %w", err)
	}
	defer release()

	var resp *model.GatewayResponse
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		r, err := u.run(ctx, tx, name, data, op)
		resp = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (u *paymentGatewayUC) Process(ctx context.Context, data model.PaymentData) (*model.GatewayResponse, error) {
	return u.run(ctx, nil, "Process", data, func(ctx context.Context, _ repository.Tx, data *model.PaymentData) (*model.GatewayResponse, error) {
		return u.plugin.ProcessPayment(ctx, *data, nil)
	})
}

func (u *paymentGatewayUC) Confirm(ctx context.Context, data model.PaymentData) (*model.GatewayResponse, error) {
	return u.runExclusive(ctx, "Confirm", data, func(ctx context.Context, qx repository.Tx, data *model.PaymentData) (*model.GatewayResponse, error) {
		return u.plugin.confirm(ctx, qx, *data, nil)
	})
}

func (u *paymentGatewayUC) Refund(ctx context.Context, data model.PaymentData) (*model.GatewayResponse, error) {
	return u.run(ctx, nil, "Refund", data, func(ctx context.Context, _ repository.Tx, data *model.PaymentData) (*model.GatewayResponse, error) {
		return u.plugin.RefundPayment(ctx, *data, nil)
	})
}

func (u *paymentGatewayUC) Capture(ctx context.Context, data model.PaymentData) (*model.GatewayResponse, error) {
	return u.runExclusive(ctx, "Capture", data, func(ctx context.Context, qx repository.Tx, data *model.PaymentData) (*model.GatewayResponse, error) {
		if err := u.fillAuthToken(ctx, qx, data); err != nil {
			return nil, err
		}
		return u.plugin.CapturePayment(ctx, *data, nil)
	})
}

func (u *paymentGatewayUC) Void(ctx context.Context, data model.PaymentData) (*model.GatewayResponse, error) {
	return u.run(ctx, nil, "Void", data, func(ctx context.Context, qx repository.Tx, data *model.PaymentData) (*model.GatewayResponse, error) {
		if err := u.fillAuthToken(ctx, qx, data); err != nil {
			return nil, err
		}
		return u.plugin.VoidPayment(ctx, *data, nil)
	})
}

// hydrate fills the fields a caller may omit from the stored payment.
func (u *paymentGatewayUC) hydrate(ctx context.Context, qx repository.Tx, data *model.PaymentData) error {
	payment, err := u.payments.FindByID(ctx, qx, data.PaymentID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewNotFound("Payment does not exist.")
	}
	if err != nil {
		return err
	}
	def := paymentDataFor(payment)
	if data.Amount.IsZero() {
		data.Amount = def.Amount
	}
	if data.Currency == "" {
		data.Currency = def.Currency
	}
	if data.CustomerEmail == "" {
		data.CustomerEmail = def.CustomerEmail
	}
	if data.GraphQLPaymentID == "" {
		data.GraphQLPaymentID = def.GraphQLPaymentID
	}
	if data.CheckoutToken == "" {
		data.CheckoutToken = def.CheckoutToken
	}
	return nil
}

// fillAuthToken defaults data.Token to the latest successful authorization.
func (u *paymentGatewayUC) fillAuthToken(ctx context.Context, qx repository.Tx, data *model.PaymentData) error {
	if data.Token != "" {
		return nil
	}
	t, err := u.transactions.Find(ctx, qx, model.TransactionFilter{
		PaymentID:      data.PaymentID,
		Kinds:          []model.TransactionKind{model.TransactionKindAuth, model.TransactionKindActionToConfirm},
		IsSuccess:      model.Bool(true),
		ActionRequired: model.Bool(false),
		NonEmptyToken:  true,
		Newest:         true,
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	data.Token = t.Token
	return nil
}

func (u *paymentGatewayUC) Gateway(checkoutToken string) (*model.PaymentGateway, error) {
	g := u.plugin.GetPaymentGatewayForCheckout(checkoutToken, nil)
	if g == nil {
		return nil, ErrPluginInactive
	}
	return g, nil
}

func (u *paymentGatewayUC) Currencies() []string {
	return u.plugin.GetSupportedCurrencies([]string{})
}
