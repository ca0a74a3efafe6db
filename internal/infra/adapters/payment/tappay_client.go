package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tappay-gateway/internal/domain/ports/adapter"
)

var _ adapter.TapClient = (*TapPayClient)(nil)

const defaultBaseURL = "https://api.tap.company/v2"

// TapPayClient implements adapter.TapClient over the Tap Payments REST API v2.
type TapPayClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewTapPayClient validates the key and base URL; an empty baseURL selects production.
func NewTapPayClient(apiKey, baseURL string, timeout time.Duration) (*TapPayClient, error) {
	if apiKey == "" {
		return nil, errors.New("tappay api key empty")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid tappay base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &TapPayClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *TapPayClient) endpoint(path string) string { return c.baseURL + path }

// Authorize calls POST /authorize/.
func (c *TapPayClient) Authorize(ctx context.Context, req adapter.TapRequest) (adapter.TapResponse, error) {
	return c.do(ctx, http.MethodPost, "/authorize/", req)
}

// AuthorizeCapture charges an authorization through POST /charges/ with source.id set to it.
func (c *TapPayClient) AuthorizeCapture(ctx context.Context, req adapter.TapRequest) (adapter.TapResponse, error) {
	return c.do(ctx, http.MethodPost, "/charges/", req)
}

// AuthorizeVoid calls POST /authorize/{authorize_id}/void.
func (c *TapPayClient) AuthorizeVoid(ctx context.Context, req adapter.TapRequest) (adapter.TapResponse, error) {
	id, err := authorizeID(req)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, "/authorize/"+url.PathEscape(id)+"/void", nil)
}

// Refund calls POST /refunds/.
func (c *TapPayClient) Refund(ctx context.Context, req adapter.TapRequest) (adapter.TapResponse, error) {
	return c.do(ctx, http.MethodPost, "/refunds/", req)
}

// GetAuthorizeStatus calls GET /authorize/{authorize_id}.
func (c *TapPayClient) GetAuthorizeStatus(ctx context.Context, req adapter.TapRequest) (adapter.TapResponse, error) {
	id, err := authorizeID(req)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodGet, "/authorize/"+url.PathEscape(id), nil)
}

func authorizeID(req adapter.TapRequest) (string, error) {
	id, _ := req["authorize_id"].(string)
	if id == "" {
		return "", errors.New("authorize_id missing")
	}
	return id, nil
}

func (c *TapPayClient) do(ctx context.Context, method, path string, body adapter.TapRequest) (adapter.TapResponse, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", path, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out adapter.TapResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s (http %d): %w", path, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("tappay %s %s: http %d: %v", method, path, resp.StatusCode, out["errors"])
	}
	return out, nil
}
