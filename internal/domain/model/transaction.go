package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	TransactionKindAuth            TransactionKind = "auth"
	TransactionKindPending         TransactionKind = "pending"
	TransactionKindCapture         TransactionKind = "capture"
	TransactionKindVoid            TransactionKind = "void"
	TransactionKindRefund          TransactionKind = "refund"
	TransactionKindRefundOngoing   TransactionKind = "refund_ongoing"
	TransactionKindActionToConfirm TransactionKind = "action_to_confirm"
)

// Transaction is an append-only entry of a payment's log. IDs are ULIDs so
// lexical order follows creation order.
type Transaction struct {
	ID              string
	PaymentID       int64
	Kind            TransactionKind
	IsSuccess       bool
	ActionRequired  bool
	Token           string
	Amount          decimal.Decimal
	Currency        string
	Error           string
	GatewayResponse map[string]any
	CreatedAt       time.Time
}

// TransactionFilter narrows a payment's log. Nil pointers mean "any".
type TransactionFilter struct {
	PaymentID      int64
	Kinds          []TransactionKind
	IsSuccess      *bool
	ActionRequired *bool
	NonEmptyToken  bool
	Amount         *decimal.Decimal
	Currency       string
	// Newest selects the latest match; otherwise the oldest one is returned.
	Newest bool
}

// Bool is a small helper for filter literals.
func Bool(v bool) *bool { return &v }
