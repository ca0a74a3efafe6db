package tappay

import (
	"fmt"

	"tappay-gateway/internal/domain/ports/adapter"
)

// Response wraps a decoded vendor payload with typed accessors.
type Response adapter.TapResponse

func (r Response) str(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (r Response) object(key string) map[string]any {
	if m, ok := r[key].(map[string]any); ok {
		return m
	}
	return nil
}

func (r Response) Status() Status { return Status(r.str("status")) }

func (r Response) ID() string { return r.str("id") }

// Error flattens the vendor error field, which may be a string or an object.
func (r Response) Error() string {
	v, ok := r["error"]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// HasTransaction reports whether the payload carries a transaction object.
func (r Response) HasTransaction() bool {
	_, ok := r["transaction"]
	return ok
}

func (r Response) Transaction() map[string]any { return r.object("transaction") }

// TransactionURL is the 3-D Secure page the shopper has to visit, if any.
func (r Response) TransactionURL() (string, bool) {
	tr := r.Transaction()
	if tr == nil {
		return "", false
	}
	v, ok := tr["url"]
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, true
}

func (r Response) Action() map[string]any { return r.object("action") }

// CustomerID returns customer.id of an authorization.
func (r Response) CustomerID() string {
	c := r.object("customer")
	if c == nil {
		return ""
	}
	if id, ok := c["id"].(string); ok {
		return id
	}
	return ""
}

func (r Response) Raw() map[string]any { return map[string]any(r) }
