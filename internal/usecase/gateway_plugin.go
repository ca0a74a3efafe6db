package usecase

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"tappay-gateway/internal/domain"
	"tappay-gateway/internal/domain/model"
	"tappay-gateway/internal/domain/ports/adapter"
	"tappay-gateway/internal/domain/ports/repository"
	"tappay-gateway/internal/infra/logging"
	"tappay-gateway/internal/tappay"
)

const (
	PluginID             = "tappayment.gosell"
	PluginName           = "Tappay"
	AdditionalActionPath = "/additional-actions"
)

// Configuration keys stored by the platform for this plugin.
const (
	ConfigAPIKey              = "api-key"
	ConfigSupportedCurrencies = "supported-currencies"
	ConfigSourceID            = "source-id"
	ConfigAutoCapture         = "auto-capture"
)

// GatewayPluginDeps groups the collaborators of NewGatewayPlugin.
type GatewayPluginDeps struct {
	Active       bool
	Config       model.GatewayConfig
	PublicURL    string
	Client       adapter.TapClient
	Payments     repository.PaymentRepository
	Transactions repository.TransactionRepository
	Checkouts    repository.CheckoutRepository
	TxManager    repository.TransactionManager
	Locker       repository.PaymentLocker
	Completer    CheckoutCompleter
	Logger       *zerolog.Logger
}

// GatewayPlugin exposes the TapPay gateway to the platform's plugin chain.
// Every operation receives the previous value of the chain and returns it
// untouched while the plugin is inactive.
type GatewayPlugin struct {
	active       bool
	cfg          model.GatewayConfig
	publicURL    string
	client       adapter.TapClient
	payments     repository.PaymentRepository
	transactions repository.TransactionRepository
	actions      *AdditionalActionsHandler
	logger       *zerolog.Logger
}

func NewGatewayPlugin(d GatewayPluginDeps) *GatewayPlugin {
	p := &GatewayPlugin{
		active:       d.Active,
		cfg:          d.Config,
		publicURL:    strings.TrimRight(d.PublicURL, "/"),
		client:       d.Client,
		payments:     d.Payments,
		transactions: d.Transactions,
		logger:       d.Logger,
	}
	p.actions = NewAdditionalActionsHandler(d.TxManager, d.Locker, d.Payments, d.Checkouts, d.Transactions, d.Completer, p, d.Logger)
	return p
}

func (p *GatewayPlugin) Active() bool { return p.active }

func (p *GatewayPlugin) Config() model.GatewayConfig { return p.cfg }

// additionalActionsURL is where the vendor sends the shopper back after authorization.
func (p *GatewayPlugin) additionalActionsURL(paymentGID, checkoutToken string) string {
	params := url.Values{}
	params.Set("payment", paymentGID)
	params.Set("checkout", checkoutToken)
	return prepareURL(params, p.publicURL+"/plugins/"+PluginID+AdditionalActionPath)
}

func (p *GatewayPlugin) ProcessPayment(ctx context.Context, data model.PaymentData, previous *model.GatewayResponse) (*model.GatewayResponse, error) {
	if !p.active {
		return previous, nil
	}
	ctx = logging.WithPaymentID(ctx, data.PaymentID)

	payment, err := p.payments.FindByID(ctx, nil, data.PaymentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewNotFound("Payment cannot be performed. Payment does not exists.")
	}
	if err != nil {
		return nil, err
	}
	if !payment.HasCheckout() {
		return nil, domain.NewNotFound("Payment cannot be performed. Checkout for this payment does not exist.")
	}

	returnURL := p.additionalActionsURL(data.GraphQLPaymentID, *payment.CheckoutToken)
	req, err := tappay.BuildAuthorizeRequest(data, returnURL, p.cfg.ConnectionParams.SourceID)
	if err != nil {
		return nil, err
	}
	result, err := tappay.Call(ctx, p.logger, "authorize", req, p.client.Authorize)
	if err != nil {
		return nil, err
	}

	status := result.Status()
	authError := result.Error()
	kind := model.TransactionKindAuth
	switch {
	case tappay.IsPending(status):
		kind = model.TransactionKindPending
	case p.cfg.AutoCapture && tappay.IsAuthorized(status):
		captured, err := p.capture(ctx, data, result.ID())
		if err != nil {
			return nil, err
		}
		result = captured
		kind = model.TransactionKindCapture
	}

	return &model.GatewayResponse{
		IsSuccess:          tappay.IsSuccess(status),
		ActionRequired:     result.HasTransaction(),
		Kind:               kind,
		Amount:             data.Amount,
		Currency:           data.Currency,
		TransactionID:      result.ID(),
		Error:              authError,
		RawResponse:        result.Raw(),
		ActionRequiredData: result.Transaction(),
		SearchableKey:      result.ID(),
	}, nil
}

func (p *GatewayPlugin) ConfirmPayment(ctx context.Context, data model.PaymentData, previous *model.GatewayResponse) (*model.GatewayResponse, error) {
	return p.confirm(ctx, nil, data, previous)
}

// confirm reads the payment's log on qx, so the caller decides whether the
// already-processed check and the write of its result share a transaction.
func (p *GatewayPlugin) confirm(ctx context.Context, qx repository.Tx, data model.PaymentData, previous *model.GatewayResponse) (*model.GatewayResponse, error) {
	if !p.active {
		return previous, nil
	}
	ctx = logging.WithPaymentID(ctx, data.PaymentID)

	if _, err := p.payments.FindByID(ctx, qx, data.PaymentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFound("Unable to find the payment.")
		}
		return nil, err
	}

	kind := model.TransactionKindAuth
	if p.cfg.AutoCapture {
		kind = model.TransactionKindCapture
	}

	toConfirm, err := p.transactions.Find(ctx, qx, model.TransactionFilter{
		PaymentID:      data.PaymentID,
		Kinds:          []model.TransactionKind{model.TransactionKindActionToConfirm},
		IsSuccess:      model.Bool(true),
		ActionRequired: model.Bool(false),
		NonEmptyToken:  true,
		Newest:         true,
	})
	if errors.Is(err, domain.ErrNotFound) {
		return p.processAdditionalAction(ctx, data, kind)
	}
	if err != nil {
		return nil, err
	}

	if status, _ := toConfirm.GatewayResponse["status"].(string); tappay.IsPending(tappay.Status(status)) {
		kind = model.TransactionKindPending
	}

	// The redirect may already have been confirmed by an earlier call.
	amount := data.Amount
	processed, err := p.transactions.Find(ctx, qx, model.TransactionFilter{
		PaymentID:      data.PaymentID,
		Kinds:          []model.TransactionKind{kind},
		IsSuccess:      model.Bool(true),
		ActionRequired: model.Bool(false),
		Amount:         &amount,
		Currency:       data.Currency,
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	alreadyProcessed := processed != nil

	isSuccess := true
	if !alreadyProcessed && p.cfg.AutoCapture && kind == model.TransactionKindCapture {
		capData := data
		if capData.Token == "" {
			capData.Token = toConfirm.Token
		}
		resp, err := p.CapturePayment(ctx, capData, nil)
		if err != nil {
			return nil, err
		}
		isSuccess = resp.IsSuccess
	}

	token := toConfirm.Token
	if alreadyProcessed {
		token = processed.Token
	}
	// Nothing is left for the shopper to do, and the logged confirmation must
	// satisfy the already-processed lookup of the next call.
	return &model.GatewayResponse{
		IsSuccess:                   isSuccess,
		ActionRequired:              false,
		Kind:                        kind,
		Amount:                      data.Amount,
		Currency:                    data.Currency,
		TransactionID:               token,
		RawResponse:                 map[string]any{},
		TransactionAlreadyProcessed: alreadyProcessed,
	}, nil
}

// processAdditionalAction re-sends the storefront supplied request when no
// redirect has been recorded for the payment yet.
func (p *GatewayPlugin) processAdditionalAction(ctx context.Context, data model.PaymentData, kind model.TransactionKind) (*model.GatewayResponse, error) {
	req, err := tappay.BuildAdditionalActionRequest(data)
	if err != nil {
		return nil, err
	}
	result, err := tappay.Call(ctx, p.logger, "authorize", req, p.client.Authorize)
	if err != nil {
		return nil, err
	}

	status := result.Status()
	isSuccess := tappay.IsSuccess(status)
	switch {
	case tappay.IsPending(status):
		kind = model.TransactionKindPending
	case isSuccess && p.cfg.AutoCapture:
		capData := data
		if capData.Token == "" {
			capData.Token = result.ID()
		}
		resp, err := p.CapturePayment(ctx, capData, nil)
		if err != nil {
			return nil, err
		}
		isSuccess = resp.IsSuccess
	}

	return &model.GatewayResponse{
		IsSuccess:      isSuccess,
		ActionRequired: true,
		Kind:           kind,
		Amount:         data.Amount,
		Currency:       data.Currency,
		TransactionID:  result.ID(),
		Error:          result.Error(),
		RawResponse:    result.Raw(),
		SearchableKey:  result.ID(),
	}, nil
}

func (p *GatewayPlugin) RefundPayment(ctx context.Context, data model.PaymentData, previous *model.GatewayResponse) (*model.GatewayResponse, error) {
	if !p.active {
		return previous, nil
	}
	return p.refund(logging.WithPaymentID(ctx, data.PaymentID), nil, data)
}

// refund prefers the AUTH token; a CAPTURE token is the fallback.
func (p *GatewayPlugin) refund(ctx context.Context, qx repository.Tx, data model.PaymentData) (*model.GatewayResponse, error) {
	var source *model.Transaction
	for _, kind := range []model.TransactionKind{model.TransactionKindAuth, model.TransactionKindCapture} {
		t, err := p.transactions.Find(ctx, qx, model.TransactionFilter{
			PaymentID:     data.PaymentID,
			Kinds:         []model.TransactionKind{kind},
			IsSuccess:     model.Bool(true),
			NonEmptyToken: true,
			Newest:        true,
		})
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		source = t
		break
	}
	if source == nil {
		return nil, domain.NewNotFound("Cannot find a payment reference to refund.")
	}

	result, err := tappay.Call(ctx, p.logger, "refund", tappay.BuildRefundRequest(data, source.Token), p.client.Refund)
	if err != nil {
		return nil, err
	}
	return completedResponse(model.TransactionKindRefundOngoing, data, result), nil
}

func (p *GatewayPlugin) CapturePayment(ctx context.Context, data model.PaymentData, previous *model.GatewayResponse) (*model.GatewayResponse, error) {
	if !p.active {
		return previous, nil
	}
	if data.Token == "" {
		return nil, domain.NewInvalidRequest("Cannot find a payment reference to capture.")
	}
	result, err := p.capture(logging.WithPaymentID(ctx, data.PaymentID), data, data.Token)
	if err != nil {
		return nil, err
	}
	return completedResponse(model.TransactionKindCapture, data, result), nil
}

// capture resolves the customer of the authorization and charges it.
func (p *GatewayPlugin) capture(ctx context.Context, data model.PaymentData, token string) (tappay.Response, error) {
	statusReq, err := tappay.BuildStatusRequest(token)
	if err != nil {
		return nil, err
	}
	auth, err := tappay.Call(ctx, p.logger, "get_authorize_status", statusReq, p.client.GetAuthorizeStatus)
	if err != nil {
		return nil, err
	}
	req, err := tappay.BuildCaptureRequest(data, auth.CustomerID(), token)
	if err != nil {
		return nil, err
	}
	return tappay.Call(ctx, p.logger, "authorize_capture", req, p.client.AuthorizeCapture)
}

func (p *GatewayPlugin) VoidPayment(ctx context.Context, data model.PaymentData, previous *model.GatewayResponse) (*model.GatewayResponse, error) {
	if !p.active {
		return previous, nil
	}
	return p.void(logging.WithPaymentID(ctx, data.PaymentID), data)
}

func (p *GatewayPlugin) void(ctx context.Context, data model.PaymentData) (*model.GatewayResponse, error) {
	if data.Token == "" {
		return nil, domain.NewInvalidRequest("Cannot find a payment reference to void.")
	}
	result, err := tappay.Call(ctx, p.logger, "authorize_void", tappay.BuildVoidRequest(data.Token), p.client.AuthorizeVoid)
	if err != nil {
		return nil, err
	}
	return completedResponse(model.TransactionKindVoid, data, result), nil
}

// completedResponse is the shape of capture, refund and void results; the
// vendor accepted the request so they are reported as successful.
func completedResponse(kind model.TransactionKind, data model.PaymentData, result tappay.Response) *model.GatewayResponse {
	return &model.GatewayResponse{
		IsSuccess:     true,
		Kind:          kind,
		Amount:        data.Amount,
		Currency:      data.Currency,
		TransactionID: result.ID(),
		RawResponse:   result.Raw(),
		SearchableKey: result.ID(),
	}
}

// Webhook routes a request below /plugins/{PluginID}. Only the
// additional-actions path is served.
func (p *GatewayPlugin) Webhook(ctx context.Context, query url.Values, path string, previous *WebhookResult) (*WebhookResult, error) {
	if !p.active {
		return previous, nil
	}
	if !strings.HasPrefix(path, AdditionalActionPath) {
		return &WebhookResult{Status: WebhookNotFound}, nil
	}
	res, err := p.actions.Handle(ctx, query, p.client.GetAuthorizeStatus)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (p *GatewayPlugin) TokenIsRequiredAsPaymentInput(previous bool) bool {
	if !p.active {
		return previous
	}
	return false
}

func (p *GatewayPlugin) GetPaymentConfig(previous []model.ConfigField) []model.ConfigField {
	if !p.active {
		return previous
	}
	return []model.ConfigField{}
}

func (p *GatewayPlugin) GetSupportedCurrencies(previous []string) []string {
	if !p.active {
		return previous
	}
	return SupportedCurrencies(p.cfg.SupportedCurrencies)
}

func (p *GatewayPlugin) GetPaymentGatewayForCheckout(checkoutToken string, previous *model.PaymentGateway) *model.PaymentGateway {
	if !p.active {
		return previous
	}
	return &model.PaymentGateway{
		ID:         PluginID,
		Name:       PluginName,
		Config:     []model.ConfigField{{Field: "config", Value: checkoutToken}},
		Currencies: p.GetSupportedCurrencies(nil),
	}
}

// SupportedCurrencies splits the comma separated configuration value.
func SupportedCurrencies(raw string) []string {
	out := []string{}
	for _, c := range strings.Split(raw, ",") {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// prepareURL sets the query of base to params, replacing any query it had.
func prepareURL(params url.Values, base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + params.Encode()
	}
	u.RawQuery = params.Encode()
	return u.String()
}
