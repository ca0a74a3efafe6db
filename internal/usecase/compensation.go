package usecase

import (
	"context"
	"errors"

	"tappay-gateway/internal/domain"
	"tappay-gateway/internal/domain/model"
	"tappay-gateway/internal/domain/ports/repository"
	"tappay-gateway/internal/infra/logging"
	"tappay-gateway/internal/infra/metrics"
)

// RefundOrVoid gives the money of payment back: a captured payment is
// refunded, an authorized one is voided. The outcome is appended to the
// payment's log on qx. A payment with neither is left alone.
func (p *GatewayPlugin) RefundOrVoid(ctx context.Context, qx repository.Tx, payment *model.Payment) (*model.GatewayResponse, error) {
	ctx = logging.WithPaymentID(ctx, payment.ID)
	l := logging.With(ctx, p.logger)
	data := paymentDataFor(payment)

	_, err := p.transactions.Find(ctx, qx, model.TransactionFilter{
		PaymentID:     payment.ID,
		Kinds:         []model.TransactionKind{model.TransactionKindCapture},
		IsSuccess:     model.Bool(true),
		NonEmptyToken: true,
		Newest:        true,
	})
	switch {
	case err == nil:
		resp, err := p.refund(ctx, qx, data)
		if err != nil {
			return nil, err
		}
		metrics.IncCompensation("refund")
		l.Info().Str("transaction_id", resp.TransactionID).Msg("payment refunded after failed checkout")
		return resp, recordTransaction(ctx, p.transactions, qx, payment.ID, resp)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	auth, err := p.transactions.Find(ctx, qx, model.TransactionFilter{
		PaymentID:     payment.ID,
		Kinds:         []model.TransactionKind{model.TransactionKindAuth, model.TransactionKindActionToConfirm},
		IsSuccess:     model.Bool(true),
		NonEmptyToken: true,
		Newest:        true,
	})
	if errors.Is(err, domain.ErrNotFound) {
		metrics.IncCompensation("none")
		l.Warn().Msg("nothing to refund or void")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	data.Token = auth.Token
	resp, err := p.void(ctx, data)
	if err != nil {
		return nil, err
	}
	metrics.IncCompensation("void")
	l.Info().Str("authorize_id", auth.Token).Msg("authorization voided after failed checkout")
	return resp, recordTransaction(ctx, p.transactions, qx, payment.ID, resp)
}

// paymentDataFor builds the operation input the platform would send for payment.
func paymentDataFor(payment *model.Payment) model.PaymentData {
	data := model.PaymentData{
		Amount:           payment.Total,
		Currency:         payment.Currency,
		CustomerEmail:    payment.CustomerEmail,
		PaymentID:        payment.ID,
		GraphQLPaymentID: model.ToGlobalID(model.GlobalTypePayment, payment.ID),
		Token:            payment.Token,
	}
	if payment.CheckoutToken != nil {
		data.CheckoutToken = *payment.CheckoutToken
	}
	return data
}

// recordTransaction appends resp to the payment's log.
func recordTransaction(ctx context.Context, repo repository.TransactionRepository, qx repository.Tx, paymentID int64, resp *model.GatewayResponse) error {
	t := &model.Transaction{
		PaymentID:       paymentID,
		Kind:            resp.Kind,
		IsSuccess:       resp.IsSuccess,
		ActionRequired:  resp.ActionRequired,
		Token:           resp.TransactionID,
		Amount:          resp.Amount,
		Currency:        resp.Currency,
		Error:           resp.Error,
		GatewayResponse: resp.RawResponse,
	}
	if err := repo.Create(ctx, qx, t); err != nil {
		return err
	}
	metrics.IncTransaction(string(t.Kind), t.IsSuccess)
	return nil
}
