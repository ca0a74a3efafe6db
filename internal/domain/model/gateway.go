package model

import "github.com/shopspring/decimal"

// PaymentData is what the platform hands the plugin for every operation.
type PaymentData struct {
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	CustomerEmail    string          `json:"customer_email"`
	PaymentID        int64           `json:"payment_id"`
	GraphQLPaymentID string          `json:"graphql_payment_id"`
	CheckoutToken    string          `json:"checkout_token,omitempty"`
	Token            string          `json:"token,omitempty"`
	Data             map[string]any  `json:"data,omitempty"`
}

type GatewayResponse struct {
	IsSuccess                   bool            `json:"is_success"`
	ActionRequired              bool            `json:"action_required"`
	Kind                        TransactionKind `json:"kind"`
	Amount                      decimal.Decimal `json:"amount"`
	Currency                    string          `json:"currency"`
	TransactionID               string          `json:"transaction_id"`
	Error                       string          `json:"error,omitempty"`
	RawResponse                 map[string]any  `json:"raw_response,omitempty"`
	ActionRequiredData          map[string]any  `json:"action_required_data,omitempty"`
	SearchableKey               string          `json:"searchable_key,omitempty"`
	TransactionAlreadyProcessed bool            `json:"transaction_already_processed"`
}

type ConnectionParams struct {
	APIKey   string
	SourceID string
}

// GatewayConfig is fixed for the lifetime of a plugin instance.
type GatewayConfig struct {
	GatewayName         string
	AutoCapture         bool
	SupportedCurrencies string
	ConnectionParams    ConnectionParams
}

type ConfigField struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// PaymentGateway describes the plugin to a checkout.
type PaymentGateway struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Config     []ConfigField `json:"config"`
	Currencies []string      `json:"currencies"`
}
