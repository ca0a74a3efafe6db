package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"tappay-gateway/internal/domain"
	"tappay-gateway/internal/domain/model"
	"tappay-gateway/internal/infra/logging"
	"tappay-gateway/internal/usecase"
)

// WebhookHandler serves the plugin's public sub-paths.
type WebhookHandler interface {
	Webhook(ctx context.Context, query url.Values, path string, previous *usecase.WebhookResult) (*usecase.WebhookResult, error)
}

// Server exposes the gateway's HTTP surface: the vendor redirect target under
// /plugins and the authenticated platform API under /api/v1.
type Server struct {
	gateway  usecase.PaymentGatewayUseCase
	webhooks WebhookHandler
	auth     *AuthManager
	timeout  time.Duration
	log      *zerolog.Logger
}

func NewServer(gateway usecase.PaymentGatewayUseCase, webhooks WebhookHandler, auth *AuthManager, timeout time.Duration, logger *zerolog.Logger) *Server {
	return &Server{gateway: gateway, webhooks: webhooks, auth: auth, timeout: timeout, log: logger}
}

// Router builds the chi router with the request middlewares applied.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.HandleFunc("/plugins/{pluginID}/*", s.handlePlugin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Require)
		r.Post("/payments/{op}", s.handlePayment)
		r.Get("/gateway", s.handleGateway)
		r.Get("/gateway/currencies", s.handleCurrencies)
	})

	mws := []Middleware{TraceID(), Recover(s.log), RequestLog(s.log)}
	if s.timeout > 0 {
		mws = append(mws, Timeout(s.timeout))
	}
	return Chain(r, mws...)
}

func (s *Server) handlePlugin(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "pluginID") != usecase.PluginID {
		http.NotFound(w, r)
		return
	}
	path := "/" + chi.URLParam(r, "*")

	res, err := s.webhooks.Webhook(r.Context(), r.URL.Query(), path, nil)
	if err != nil {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("path", path).Msg("plugin webhook failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if res == nil {
		http.NotFound(w, r)
		return
	}

	switch res.Status {
	case usecase.WebhookRedirect:
		http.Redirect(w, r, res.Location, http.StatusFound)
	case usecase.WebhookBadRequest:
		http.Error(w, res.Message, http.StatusBadRequest)
	default:
		msg := res.Message
		if msg == "" {
			msg = http.StatusText(http.StatusNotFound)
		}
		http.Error(w, msg, http.StatusNotFound)
	}
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	var op func(context.Context, model.PaymentData) (*model.GatewayResponse, error)
	switch chi.URLParam(r, "op") {
	case "process":
		op = s.gateway.Process
	case "confirm":
		op = s.gateway.Confirm
	case "capture":
		op = s.gateway.Capture
	case "refund":
		op = s.gateway.Refund
	case "void":
		op = s.gateway.Void
	default:
		writeError(w, http.StatusNotFound, "unknown payment operation")
		return
	}

	var data model.PaymentData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if data.PaymentID == 0 && data.GraphQLPaymentID != "" {
		id, err := model.PaymentPKFromGlobalID(data.GraphQLPaymentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid graphql_payment_id")
			return
		}
		data.PaymentID = id
	}
	if data.PaymentID <= 0 {
		writeError(w, http.StatusBadRequest, "payment_id is required")
		return
	}

	resp, err := op(r.Context(), data)
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGateway(w http.ResponseWriter, r *http.Request) {
	gw, err := s.gateway.Gateway(r.URL.Query().Get("checkout"))
	if err != nil {
		s.writeOpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gw)
}

func (s *Server) handleCurrencies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"currencies": s.gateway.Currencies()})
}

// writeOpError maps payment errors by kind; anything else is a 500.
func (s *Server) writeOpError(w http.ResponseWriter, r *http.Request, err error) {
	if pe, ok := domain.AsPaymentError(err); ok {
		code := http.StatusBadRequest
		if pe.Kind == domain.KindNotFound {
			code = http.StatusNotFound
		}
		writeJSON(w, code, errorBody{Error: pe.Msg, Kind: pe.Kind.String()})
		return
	}
	if errors.Is(err, usecase.ErrPluginInactive) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	l := logging.With(r.Context(), s.log)
	l.Error().Err(err).Msg("payment operation failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
