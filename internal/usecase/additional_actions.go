package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"tappay-gateway/internal/domain"
	"tappay-gateway/internal/domain/model"
	"tappay-gateway/internal/domain/ports/repository"
	"tappay-gateway/internal/infra/logging"
	"tappay-gateway/internal/infra/metrics"
	"tappay-gateway/internal/tappay"
)

type WebhookStatus int

const (
	WebhookRedirect WebhookStatus = iota + 1
	WebhookNotFound
	WebhookBadRequest
)

func (s WebhookStatus) String() string {
	switch s {
	case WebhookRedirect:
		return "redirect"
	case WebhookNotFound:
		return "not_found"
	case WebhookBadRequest:
		return "bad_request"
	default:
		return "unknown"
	}
}

// WebhookResult tells the HTTP layer how to answer the shopper's browser.
type WebhookResult struct {
	Status   WebhookStatus
	Location string
	Message  string
}

func notFound(msg string) WebhookResult { return WebhookResult{Status: WebhookNotFound, Message: msg} }

func badRequest(msg string) WebhookResult { return WebhookResult{Status: WebhookBadRequest, Message: msg} }

// PaymentCompensator releases the funds of a payment whose checkout failed.
type PaymentCompensator interface {
	RefundOrVoid(ctx context.Context, qx repository.Tx, payment *model.Payment) (*model.GatewayResponse, error)
}

// AdditionalActionsHandler finishes a payment when the vendor redirects the
// shopper back from authorization.
type AdditionalActionsHandler struct {
	tm           repository.TransactionManager
	locker       repository.PaymentLocker
	payments     repository.PaymentRepository
	checkouts    repository.CheckoutRepository
	transactions repository.TransactionRepository
	completer    CheckoutCompleter
	compensator  PaymentCompensator
	logger       *zerolog.Logger
}

func NewAdditionalActionsHandler(
	tm repository.TransactionManager,
	locker repository.PaymentLocker,
	payments repository.PaymentRepository,
	checkouts repository.CheckoutRepository,
	transactions repository.TransactionRepository,
	completer CheckoutCompleter,
	compensator PaymentCompensator,
	logger *zerolog.Logger,
) *AdditionalActionsHandler {
	return &AdditionalActionsHandler{
		tm:           tm,
		locker:       locker,
		payments:     payments,
		checkouts:    checkouts,
		transactions: transactions,
		completer:    completer,
		compensator:  compensator,
		logger:       logger,
	}
}

// Handle serves GET .../additional-actions?payment=&checkout=&tap_id=.
// The whole exchange runs in one database transaction under the payment's
// lease; a returned error rolls it back.
func (h *AdditionalActionsHandler) Handle(ctx context.Context, query url.Values, lookup tappay.Method) (res WebhookResult, err error) {
	defer func() {
		outcome := res.Status.String()
		if err != nil {
			outcome = "error"
		}
		metrics.IncWebhook(outcome)
	}()

	paymentGID := query.Get("payment")
	checkoutToken := query.Get("checkout")
	tapID := query.Get("tap_id")
	if paymentGID == "" || checkoutToken == "" {
		return notFound(""), nil
	}
	ctx = logging.WithTapID(logging.WithCheckout(ctx, checkoutToken), tapID)
	l := logging.With(ctx, h.logger)

	paymentID, err := model.PaymentPKFromGlobalID(paymentGID)
	if err != nil {
		l.Warn().Err(err).Str("payment", paymentGID).Msg("unable to decode the payment id")
		return notFound("Cannot perform payment.There is no active tappay payment."), nil
	}
	ctx = logging.WithPaymentID(ctx, paymentID)

	release, err := h.locker.Acquire(ctx, paymentID)
	if err != nil {
		return WebhookResult{}, fmt.Errorf("payment lease: %w", err)
	}
	defer release()

	err = h.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		r, err := h.handle(ctx, tx, paymentID, paymentGID, checkoutToken, tapID, lookup)
		res = r
		return err
	})
	if err != nil {
		return WebhookResult{}, err
	}
	return res, nil
}

func (h *AdditionalActionsHandler) handle(ctx context.Context, tx repository.Tx, paymentID int64, paymentGID, checkoutToken, tapID string, lookup tappay.Method) (WebhookResult, error) {
	l := logging.With(ctx, h.logger)

	payment, err := h.payments.FindActiveForGateway(ctx, tx, paymentID, PluginID)
	if errors.Is(err, domain.ErrNotFound) {
		l.Warn().Msg("payment was not found")
		return notFound("Cannot perform payment.There is no active tappay payment."), nil
	}
	if err != nil {
		return WebhookResult{}, err
	}

	if !payment.HasCheckout() || *payment.CheckoutToken != checkoutToken {
		return notFound("Cannot perform payment.There is no checkout with this payment."), nil
	}
	checkout, err := h.checkouts.FindByToken(ctx, tx, checkoutToken)
	if errors.Is(err, domain.ErrNotFound) {
		return notFound("Cannot perform payment.There is no checkout with this payment."), nil
	}
	if err != nil {
		return WebhookResult{}, err
	}
	// A repeated redirect finds the order of the first one; the payment no
	// longer has a checkout to complete.
	if payment.OrderID != nil || checkout.Completed() {
		l.Info().Msg("checkout already completed for this payment")
		return notFound("Cannot perform payment.There is no checkout with this payment."), nil
	}

	if payment.ReturnURL == "" {
		return notFound("Cannot perform payment. Lack of data about returnUrl."), nil
	}

	req, err := tappay.BuildStatusRequest(tapID)
	if pe, ok := domain.AsPaymentError(err); ok {
		return badRequest(pe.Msg), nil
	}
	result, err := tappay.Call(ctx, h.logger, "get_authorize_status", req, lookup)
	if pe, ok := domain.AsPaymentError(err); ok {
		return badRequest(pe.Msg), nil
	}
	if err != nil {
		return WebhookResult{}, err
	}

	if err := h.handleAPIResponse(ctx, tx, payment, checkout, result); err != nil {
		return WebhookResult{}, err
	}

	return WebhookResult{
		Status:   WebhookRedirect,
		Location: redirectURL(paymentGID, checkoutToken, result, payment.ReturnURL),
	}, nil
}

// handleAPIResponse records the redirect outcome and, when the payment needs
// nothing else from the shopper, completes the checkout.
func (h *AdditionalActionsHandler) handleAPIResponse(ctx context.Context, tx repository.Tx, payment *model.Payment, checkout *model.Checkout, result tappay.Response) error {
	l := logging.With(ctx, h.logger)

	isSuccess := tappay.IsSuccess(result.Status())
	_, actionRequired := result.TransactionURL()
	resp := &model.GatewayResponse{
		IsSuccess:          isSuccess,
		ActionRequired:     actionRequired,
		Kind:               model.TransactionKindActionToConfirm,
		Amount:             payment.Total,
		Currency:           payment.Currency,
		TransactionID:      result.ID(),
		Error:              result.Error(),
		RawResponse:        result.Raw(),
		ActionRequiredData: result.Transaction(),
		SearchableKey:      result.ID(),
	}
	if err := recordTransaction(ctx, h.transactions, tx, payment.ID, resp); err != nil {
		return fmt.Errorf("record action to confirm: %w", err)
	}
	if !isSuccess || actionRequired {
		l.Info().Str("status", string(result.Status())).Bool("action_required", actionRequired).Msg("payment not completed on redirect")
		return nil
	}

	order, err := h.completer.Complete(ctx, tx, checkout, payment)
	if errors.Is(err, domain.ErrCheckoutValidation) {
		l.Warn().Err(err).Msg("checkout could not be completed; releasing funds")
		if _, cerr := h.compensator.RefundOrVoid(ctx, tx, payment); cerr != nil {
			metrics.IncCompensation("error")
			l.Error().Err(cerr).Msg("refund or void failed")
		}
		return nil
	}
	if err != nil {
		return err
	}

	// Refresh the payment to pick up the order it was attached to.
	if refreshed, err := h.payments.FindByID(ctx, tx, payment.ID); err == nil {
		*payment = *refreshed
	}
	l.Info().Str("order_id", order.ID).Msg("order created from redirect")
	return nil
}

func redirectURL(paymentGID, checkoutToken string, result tappay.Response, returnURL string) string {
	params := url.Values{}
	params.Set("checkout", model.ToGlobalID(model.GlobalTypeCheckout, checkoutToken))
	params.Set("payment", paymentGID)
	params.Set("status", string(result.Status()))
	for k, v := range result.Action() {
		params.Set(k, fmt.Sprint(v))
	}
	return prepareURL(params, returnURL)
}
