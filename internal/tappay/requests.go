package tappay

import (
	"tappay-gateway/internal/domain"
	"tappay-gateway/internal/domain/model"
	"tappay-gateway/internal/domain/ports/adapter"
)

const (
	refundReason      = "reason"
	customerFirstName = "first_name"
)

// BuildAuthorizeRequest assembles the authorization body for a new payment.
// The vendor redirects and posts back to returnURL.
func BuildAuthorizeRequest(data model.PaymentData, returnURL, sourceID string) (adapter.TapRequest, error) {
	violations, err := ValidatePaymentData(data.Data)
	if err != nil {
		return nil, domain.NewInvalidRequest(err.Error())
	}
	if len(violations) > 0 {
		return nil, domain.NewInvalidRequest(formatViolations(violations))
	}
	if v, ok := data.Data["is_valid"]; ok && !truthy(v) {
		return nil, domain.NewValidationFailure("Payment data are not valid.")
	}

	req := adapter.TapRequest{
		"amount":   ToVendorAmount(data.Amount),
		"currency": data.Currency,
		"customer": map[string]any{
			"email":      data.CustomerEmail,
			"first_name": customerFirstName,
		},
		"source":   map[string]any{"id": sourceID},
		"redirect": map[string]any{"url": returnURL},
		"post":     map[string]any{"url": returnURL},
	}
	for _, k := range []string{"browserInfo", "billingAddress"} {
		if v, ok := data.Data[k]; ok {
			req[k] = v
		}
	}
	return req, nil
}

// BuildRefundRequest refunds the charge identified by token.
func BuildRefundRequest(data model.PaymentData, token string) adapter.TapRequest {
	return adapter.TapRequest{
		"charge_id": token,
		"currency":  data.Currency,
		"amount":    ToVendorAmount(data.Amount),
		"reason":    refundReason,
	}
}

// BuildCaptureRequest charges the authorization token on behalf of customerID.
func BuildCaptureRequest(data model.PaymentData, customerID, token string) (adapter.TapRequest, error) {
	if customerID == "" {
		return nil, domain.NewValidationFailure("Unable to resolve the customer of the authorization.")
	}
	return adapter.TapRequest{
		"currency": data.Currency,
		"amount":   ToVendorAmount(data.Amount),
		"customer": map[string]any{"id": customerID},
		"source":   map[string]any{"id": token},
	}, nil
}

func BuildVoidRequest(token string) adapter.TapRequest {
	return adapter.TapRequest{"authorize_id": token}
}

// BuildStatusRequest prepares an authorization lookup for the id the vendor
// appended to the redirect.
func BuildStatusRequest(authorizeID string) (adapter.TapRequest, error) {
	if authorizeID == "" {
		return nil, domain.NewInvalidRequest("Cannot perform payment. Lack of payment data and parameters information.")
	}
	return adapter.TapRequest{"authorize_id": authorizeID}, nil
}

// BuildAdditionalActionRequest forwards a storefront-supplied request as is.
func BuildAdditionalActionRequest(data model.PaymentData) (adapter.TapRequest, error) {
	if len(data.Data) == 0 {
		return nil, domain.NewValidationFailure("Unable to finish the payment.")
	}
	req := make(adapter.TapRequest, len(data.Data))
	for k, v := range data.Data {
		req[k] = v
	}
	return req, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}
