package adapter

import "context"

// TapRequest is a vendor request body as built by the translator.
type TapRequest map[string]any

// TapResponse is the decoded vendor JSON payload.
type TapResponse map[string]any

// TapClient is the hex port for the Tap Payments REST API. Errors returned
// here are transport or decoding failures; business outcomes are carried in
// the response status.
type TapClient interface {
	// Authorize creates an authorization (POST /authorize).
	Authorize(ctx context.Context, req TapRequest) (TapResponse, error)
	// AuthorizeCapture charges a previously authorized amount.
	AuthorizeCapture(ctx context.Context, req TapRequest) (TapResponse, error)
	// AuthorizeVoid releases an authorization; req carries authorize_id.
	AuthorizeVoid(ctx context.Context, req TapRequest) (TapResponse, error)
	// Refund refunds a charge; req carries charge_id.
	Refund(ctx context.Context, req TapRequest) (TapResponse, error)
	// GetAuthorizeStatus retrieves an authorization; req carries authorize_id.
	GetAuthorizeStatus(ctx context.Context, req TapRequest) (TapResponse, error)
}
