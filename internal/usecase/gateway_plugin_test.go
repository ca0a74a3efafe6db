//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"tappay-gateway/internal/domain"
	"tappay-gateway/internal/domain/model"
	"tappay-gateway/internal/domain/ports/adapter"
	"tappay-gateway/internal/usecase"
)

type pluginFixture struct {
	client    *MockTapClient
	payments  *MockPaymentRepo
	txs       *MockTransactionRepo
	checkouts *MockCheckoutRepo
	orders    *MockOrderRepo
	tm        *MockTxManager
	locker    *MockLocker
	plugin    *usecase.GatewayPlugin
}

func newPluginFixture(active, autoCapture bool) *pluginFixture {
	f := &pluginFixture{
		client:    &MockTapClient{},
		payments:  NewMockPaymentRepo(),
		txs:       NewMockTransactionRepo(),
		checkouts: NewMockCheckoutRepo(),
		orders:    NewMockOrderRepo(),
		tm:        NewMockTxManager(),
		locker:    NewMockLocker(),
	}
	logger := newTestLogger()
	f.plugin = usecase.NewGatewayPlugin(usecase.GatewayPluginDeps{
		Active: active,
		Config: model.GatewayConfig{
			GatewayName:         usecase.PluginName,
			AutoCapture:         autoCapture,
			SupportedCurrencies: "kwd, USD ,",
			ConnectionParams:    model.ConnectionParams{APIKey: "sk_test", SourceID: "src_all"},
		},
		PublicURL:    testPublicURL + "/",
		Client:       f.client,
		Payments:     f.payments,
		Transactions: f.txs,
		Checkouts:    f.checkouts,
		TxManager:    f.tm,
		Locker:       f.locker,
		Completer:    usecase.NewCheckoutUseCase(f.checkouts, f.orders, f.payments, logger),
		Logger:       logger,
	})
	f.payments.Put(testPayment())
	f.checkouts.Put(testCheckout())
	return f
}

func (f *pluginFixture) authorizedCustomer() {
	f.client.GetAuthorizeStatusFunc = respond(adapter.TapResponse{
		"id":       "auth_1",
		"status":   "AUTHORIZED",
		"customer": map[string]any{"id": "cus_1"},
	})
	f.client.AuthorizeCaptureFunc = respond(adapter.TapResponse{"id": "chg_1", "status": "CAPTURED"})
}

func wantPaymentError(t *testing.T, err error, kind domain.ErrorKind) {
	t.Helper()
	pe, ok := domain.AsPaymentError(err)
	if !ok {
		t.Fatalf("expected a payment error of kind %s, got %v", kind, err)
	}
	if pe.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%s)", kind, pe.Kind, pe.Msg)
	}
}

func TestGatewayPlugin_InactivePassesPreviousThrough(t *testing.T) {
	ctx := context.Background()
	f := newPluginFixture(false, false)
	previous := &model.GatewayResponse{TransactionID: "from-another-plugin"}

	ops := map[string]func(context.Context, model.PaymentData, *model.GatewayResponse) (*model.GatewayResponse, error){
		"process": f.plugin.ProcessPayment,
		"confirm": f.plugin.ConfirmPayment,
		"capture": f.plugin.CapturePayment,
		"refund":  f.plugin.RefundPayment,
		"void":    f.plugin.VoidPayment,
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			got, err := op(ctx, testPaymentData(), previous)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != previous {
				t.Fatalf("expected previous value to be returned unchanged")
			}
		})
	}

	prevWebhook := &usecase.WebhookResult{Status: usecase.WebhookNotFound, Message: "previous"}
	res, err := f.plugin.Webhook(ctx, url.Values{}, usecase.AdditionalActionPath, prevWebhook)
	if err != nil || res != prevWebhook {
		t.Fatalf("expected webhook previous value, got %v %v", res, err)
	}
	if got := f.plugin.GetSupportedCurrencies([]string{"EUR"}); !reflect.DeepEqual(got, []string{"EUR"}) {
		t.Errorf("expected previous currencies, got %v", got)
	}
	if !f.plugin.TokenIsRequiredAsPaymentInput(true) {
		t.Error("expected previous token requirement")
	}
	if f.plugin.GetPaymentGatewayForCheckout("chk", nil) != nil {
		t.Error("expected nil gateway from inactive plugin")
	}
	if len(f.client.Calls) != 0 {
		t.Errorf("inactive plugin must not call the vendor, got %d calls", len(f.client.Calls))
	}
}

func TestGatewayPlugin_ProcessPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("pending status yields a pending transaction", func(t *testing.T) {
		f := newPluginFixture(true, true)
		f.client.AuthorizeFunc = respond(adapter.TapResponse{
			"id":          "auth_1",
			"status":      "INITIATED",
			"transaction": map[string]any{"url": "https://tap.example/3ds"},
		})

		resp, err := f.plugin.ProcessPayment(ctx, testPaymentData(), nil)
		if err != nil {
			t.Fatalf("ProcessPayment: %v", err)
		}
		if resp.Kind != model.TransactionKindPending {
			t.Errorf("expected pending, got %s", resp.Kind)
		}
		if !resp.IsSuccess || !resp.ActionRequired {
			t.Errorf("expected success with action required, got %+v", resp)
		}
		if resp.ActionRequiredData["url"] != "https://tap.example/3ds" {
			t.Errorf("expected 3ds url in action data, got %v", resp.ActionRequiredData)
		}
		if len(f.client.CallsTo("authorize_capture")) != 0 {
			t.Error("pending payments must not be captured")
		}
	})

	t.Run("authorize request carries the return url", func(t *testing.T) {
		f := newPluginFixture(true, false)
		f.client.AuthorizeFunc = respond(adapter.TapResponse{"id": "auth_1", "status": "AUTHORIZED"})

		resp, err := f.plugin.ProcessPayment(ctx, testPaymentData(), nil)
		if err != nil {
			t.Fatalf("ProcessPayment: %v", err)
		}
		if resp.Kind != model.TransactionKindAuth || resp.TransactionID != "auth_1" {
			t.Errorf("unexpected response %+v", resp)
		}
		if resp.ActionRequired {
			t.Error("no transaction object means no action required")
		}

		reqs := f.client.CallsTo("authorize")
		if len(reqs) != 1 {
			t.Fatalf("expected one authorize call, got %d", len(reqs))
		}
		q := url.Values{}
		q.Set("payment", model.ToGlobalID(model.GlobalTypePayment, testPaymentID))
		q.Set("checkout", testCheckoutToken)
		want := testPublicURL + "/plugins/" + usecase.PluginID + usecase.AdditionalActionPath + "?" + q.Encode()
		redirect := reqs[0]["redirect"].(map[string]any)
		if redirect["url"] != want {
			t.Errorf("return url mismatch\nwant %s\ngot  %s", want, redirect["url"])
		}
		if reqs[0]["amount"] != int64(10) {
			t.Errorf("expected the fraction of 10.50 to be dropped, got %v", reqs[0]["amount"])
		}
	})

	t.Run("auto capture escalates an authorized payment", func(t *testing.T) {
		f := newPluginFixture(true, true)
		f.client.AuthorizeFunc = respond(adapter.TapResponse{"id": "auth_1", "status": "AUTHORIZED"})
		f.authorizedCustomer()

		resp, err := f.plugin.ProcessPayment(ctx, testPaymentData(), nil)
		if err != nil {
			t.Fatalf("ProcessPayment: %v", err)
		}
		if resp.Kind != model.TransactionKindCapture || resp.TransactionID != "chg_1" {
			t.Errorf("expected capture chg_1, got %s %s", resp.Kind, resp.TransactionID)
		}
		caps := f.client.CallsTo("authorize_capture")
		if len(caps) != 1 {
			t.Fatalf("expected one capture, got %d", len(caps))
		}
		if caps[0]["source"].(map[string]any)["id"] != "auth_1" {
			t.Errorf("capture must use the authorization id, got %v", caps[0]["source"])
		}
		if caps[0]["customer"].(map[string]any)["id"] != "cus_1" {
			t.Errorf("capture must use the resolved customer, got %v", caps[0]["customer"])
		}
	})

	t.Run("declined payment is reported as failed", func(t *testing.T) {
		f := newPluginFixture(true, true)
		f.client.AuthorizeFunc = respond(adapter.TapResponse{"id": "auth_1", "status": "DECLINED", "error": "card declined"})

		resp, err := f.plugin.ProcessPayment(ctx, testPaymentData(), nil)
		if err != nil {
			t.Fatalf("ProcessPayment: %v", err)
		}
		if resp.IsSuccess || resp.Kind != model.TransactionKindAuth || resp.Error != "card declined" {
			t.Errorf("unexpected response %+v", resp)
		}
	})

	t.Run("unknown payment", func(t *testing.T) {
		f := newPluginFixture(true, false)
		data := testPaymentData()
		data.PaymentID = 999
		_, err := f.plugin.ProcessPayment(ctx, data, nil)
		wantPaymentError(t, err, domain.KindNotFound)
		if len(f.client.Calls) != 0 {
			t.Error("vendor must not be called")
		}
	})

	t.Run("payment without checkout", func(t *testing.T) {
		f := newPluginFixture(true, false)
		p := testPayment()
		p.CheckoutToken = nil
		f.payments.Put(p)
		_, err := f.plugin.ProcessPayment(ctx, testPaymentData(), nil)
		wantPaymentError(t, err, domain.KindNotFound)
	})

	t.Run("invalid payment data", func(t *testing.T) {
		f := newPluginFixture(true, false)
		data := testPaymentData()
		data.Data = map[string]any{"is_valid": false}
		_, err := f.plugin.ProcessPayment(ctx, data, nil)
		wantPaymentError(t, err, domain.KindValidationFailure)
		if len(f.client.Calls) != 0 {
			t.Error("vendor must not be called")
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		f := newPluginFixture(true, false)
		f.client.AuthorizeFunc = func(context.Context, adapter.TapRequest) (adapter.TapResponse, error) {
			return nil, errors.New("connection reset by peer")
		}
		_, err := f.plugin.ProcessPayment(ctx, testPaymentData(), nil)
		wantPaymentError(t, err, domain.KindTransportFailure)
		if err.Error() != domain.MsgTransportFailure {
			t.Errorf("transport detail must not leak, got %q", err.Error())
		}
	})
}

func TestGatewayPlugin_CapturePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("empty token", func(t *testing.T) {
		f := newPluginFixture(true, false)
		_, err := f.plugin.CapturePayment(ctx, testPaymentData(), nil)
		wantPaymentError(t, err, domain.KindInvalidRequest)
		if len(f.client.Calls) != 0 {
			t.Errorf("expected no vendor calls, got %d", len(f.client.Calls))
		}
	})

	t.Run("captures the token", func(t *testing.T) {
		f := newPluginFixture(true, false)
		f.authorizedCustomer()
		data := testPaymentData()
		data.Token = "auth_1"

		resp, err := f.plugin.CapturePayment(ctx, data, nil)
		if err != nil {
			t.Fatalf("CapturePayment: %v", err)
		}
		if !resp.IsSuccess || resp.Kind != model.TransactionKindCapture || resp.TransactionID != "chg_1" {
			t.Errorf("unexpected response %+v", resp)
		}
		if !resp.Amount.Equal(testTotal) || resp.Currency != "KWD" {
			t.Errorf("expected amount and currency of the request, got %s %s", resp.Amount, resp.Currency)
		}
	})

	t.Run("customer cannot be resolved", func(t *testing.T) {
		f := newPluginFixture(true, false)
		f.client.GetAuthorizeStatusFunc = respond(adapter.TapResponse{"id": "auth_1", "status": "AUTHORIZED"})
		data := testPaymentData()
		data.Token = "auth_1"
		_, err := f.plugin.CapturePayment(ctx, data, nil)
		wantPaymentError(t, err, domain.KindValidationFailure)
		if len(f.client.CallsTo("authorize_capture")) != 0 {
			t.Error("capture must not be attempted without a customer")
		}
	})
}

func TestGatewayPlugin_RefundPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("prefers the authorization token", func(t *testing.T) {
		f := newPluginFixture(true, false)
		f.txs.Seed(
			&model.Transaction{PaymentID: testPaymentID, Kind: model.TransactionKindCapture, IsSuccess: true, Token: "chg_1"},
			&model.Transaction{PaymentID: testPaymentID, Kind: model.TransactionKindAuth, IsSuccess: true, Token: "auth_1"},
		)
		f.client.RefundFunc = respond(adapter.TapResponse{"id": "re_1", "status": "PENDING"})

		resp, err := f.plugin.RefundPayment(ctx, testPaymentData(), nil)
		if err != nil {
			t.Fatalf("RefundPayment: %v", err)
		}
		if resp.Kind != model.TransactionKindRefundOngoing || resp.TransactionID != "re_1" {
			t.Errorf("unexpected response %+v", resp)
		}
		reqs := f.client.CallsTo("refund")
		if len(reqs) != 1 || reqs[0]["charge_id"] != "auth_1" {
			t.Fatalf("expected refund of auth_1, got %v", reqs)
		}
	})

	t.Run("falls back to the capture token", func(t *testing.T) {
		f := newPluginFixture(true, false)
		f.txs.Seed(&model.Transaction{PaymentID: testPaymentID, Kind: model.TransactionKindCapture, IsSuccess: true, Token: "chg_1"})
		f.client.RefundFunc = respond(adapter.TapResponse{"id": "re_1"})

		if _, err := f.plugin.RefundPayment(ctx, testPaymentData(), nil); err != nil {
			t.Fatalf("RefundPayment: %v", err)
		}
		if got := f.client.CallsTo("refund")[0]["charge_id"]; got != "chg_1" {
			t.Errorf("expected refund of chg_1, got %v", got)
		}
	})

	t.Run("nothing to refund", func(t *testing.T) {
		f := newPluginFixture(true, false)
		f.txs.Seed(&model.Transaction{PaymentID: testPaymentID, Kind: model.TransactionKindAuth, IsSuccess: false, Token: "auth_1"})
		_, err := f.plugin.RefundPayment(ctx, testPaymentData(), nil)
		wantPaymentError(t, err, domain.KindNotFound)
		if len(f.client.Calls) != 0 {
			t.Error("vendor must not be called")
		}
	})
}

func TestGatewayPlugin_VoidPayment(t *testing.T) {
	ctx := context.Background()
	f := newPluginFixture(true, false)

	_, err := f.plugin.VoidPayment(ctx, testPaymentData(), nil)
	wantPaymentError(t, err, domain.KindInvalidRequest)

	f.client.AuthorizeVoidFunc = respond(adapter.TapResponse{"id": "auth_1", "status": "VOID"})
	data := testPaymentData()
	data.Token = "auth_1"
	resp, err := f.plugin.VoidPayment(ctx, data, nil)
	if err != nil {
		t.Fatalf("VoidPayment: %v", err)
	}
	if resp.Kind != model.TransactionKindVoid || !resp.IsSuccess {
		t.Errorf("unexpected response %+v", resp)
	}
	if got := f.client.CallsTo("authorize_void")[0]["authorize_id"]; got != "auth_1" {
		t.Errorf("expected void of auth_1, got %v", got)
	}
}

func TestGatewayPlugin_ConfirmPayment(t *testing.T) {
	ctx := context.Background()

	toConfirm := func() *model.Transaction {
		return &model.Transaction{
			PaymentID:       testPaymentID,
			Kind:            model.TransactionKindActionToConfirm,
			IsSuccess:       true,
			Token:           "auth_9",
			Amount:          testTotal,
			Currency:        "KWD",
			GatewayResponse: map[string]any{"status": "AUTHORIZED"},
		}
	}

	t.Run("captures a confirmed redirect", func(t *testing.T) {
		f := newPluginFixture(true, true)
		f.txs.Seed(toConfirm())
		f.authorizedCustomer()

		resp, err := f.plugin.ConfirmPayment(ctx, testPaymentData(), nil)
		if err != nil {
			t.Fatalf("ConfirmPayment: %v", err)
		}
		if resp.Kind != model.TransactionKindCapture || !resp.IsSuccess || resp.TransactionAlreadyProcessed {
			t.Errorf("unexpected response %+v", resp)
		}
		if resp.TransactionID != "auth_9" {
			t.Errorf("expected the redirect token, got %s", resp.TransactionID)
		}
		if resp.ActionRequired {
			t.Error("a confirmed redirect needs no further action")
		}
		caps := f.client.CallsTo("authorize_capture")
		if len(caps) != 1 || caps[0]["source"].(map[string]any)["id"] != "auth_9" {
			t.Fatalf("expected capture of auth_9, got %v", caps)
		}
	})

	t.Run("already processed", func(t *testing.T) {
		f := newPluginFixture(true, true)
		f.txs.Seed(toConfirm(), &model.Transaction{
			PaymentID: testPaymentID,
			Kind:      model.TransactionKindCapture,
			IsSuccess: true,
			Token:     "chg_7",
			Amount:    decimal.RequireFromString("10.5"),
			Currency:  "KWD",
		})

		resp, err := f.plugin.ConfirmPayment(ctx, testPaymentData(), nil)
		if err != nil {
			t.Fatalf("ConfirmPayment: %v", err)
		}
		if !resp.TransactionAlreadyProcessed || resp.TransactionID != "chg_7" {
			t.Errorf("expected processed capture chg_7, got %+v", resp)
		}
		if len(f.client.Calls) != 0 {
			t.Errorf("expected no vendor calls, got %v", f.client.Calls)
		}
	})

	t.Run("pending redirect", func(t *testing.T) {
		f := newPluginFixture(true, true)
		pending := toConfirm()
		pending.GatewayResponse = map[string]any{"status": "INITIATED"}
		f.txs.Seed(pending)

		resp, err := f.plugin.ConfirmPayment(ctx, testPaymentData(), nil)
		if err != nil {
			t.Fatalf("ConfirmPayment: %v", err)
		}
		if resp.Kind != model.TransactionKindPending {
			t.Errorf("expected pending, got %s", resp.Kind)
		}
		if len(f.client.Calls) != 0 {
			t.Error("pending confirmation must not capture")
		}
	})

	t.Run("no redirect yet re-sends the storefront request", func(t *testing.T) {
		f := newPluginFixture(true, false)
		f.client.AuthorizeFunc = respond(adapter.TapResponse{"id": "auth_3", "status": "AUTHORIZED"})
		data := testPaymentData()
		data.Data = map[string]any{"amount": 10.5, "currency": "KWD"}

		resp, err := f.plugin.ConfirmPayment(ctx, data, nil)
		if err != nil {
			t.Fatalf("ConfirmPayment: %v", err)
		}
		if resp.Kind != model.TransactionKindAuth || resp.TransactionID != "auth_3" || !resp.ActionRequired {
			t.Errorf("unexpected response %+v", resp)
		}
		reqs := f.client.CallsTo("authorize")
		if len(reqs) != 1 || reqs[0]["currency"] != "KWD" {
			t.Errorf("expected the blob to be forwarded, got %v", reqs)
		}
	})

	t.Run("no redirect and no data", func(t *testing.T) {
		f := newPluginFixture(true, false)
		_, err := f.plugin.ConfirmPayment(ctx, testPaymentData(), nil)
		wantPaymentError(t, err, domain.KindValidationFailure)
	})

	t.Run("unknown payment", func(t *testing.T) {
		f := newPluginFixture(true, false)
		data := testPaymentData()
		data.PaymentID = 7
		_, err := f.plugin.ConfirmPayment(ctx, data, nil)
		wantPaymentError(t, err, domain.KindNotFound)
	})
}

func TestGatewayPlugin_Configuration(t *testing.T) {
	f := newPluginFixture(true, false)

	if f.plugin.TokenIsRequiredAsPaymentInput(true) {
		t.Error("token is never required")
	}
	if cfg := f.plugin.GetPaymentConfig(nil); cfg == nil || len(cfg) != 0 {
		t.Errorf("expected empty config, got %v", cfg)
	}
	if got := f.plugin.GetSupportedCurrencies(nil); !reflect.DeepEqual(got, []string{"KWD", "USD"}) {
		t.Errorf("unexpected currencies %v", got)
	}

	gw := f.plugin.GetPaymentGatewayForCheckout("chk-1", nil)
	if gw == nil || gw.ID != usecase.PluginID || gw.Name != usecase.PluginName {
		t.Fatalf("unexpected gateway %+v", gw)
	}
	if len(gw.Config) != 1 || gw.Config[0].Value != "chk-1" {
		t.Errorf("expected checkout token in config, got %v", gw.Config)
	}
}

func TestSupportedCurrencies(t *testing.T) {
	cases := map[string][]string{
		"":              {},
		"usd":           {"USD"},
		" kwd , sar,, ": {"KWD", "SAR"},
	}
	for raw, want := range cases {
		if got := usecase.SupportedCurrencies(raw); !reflect.DeepEqual(got, want) {
			t.Errorf("SupportedCurrencies(%q) = %v, want %v", raw, got, want)
		}
	}
}
