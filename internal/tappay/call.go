package tappay

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tappay-gateway/internal/domain"
	"tappay-gateway/internal/domain/ports/adapter"
	"tappay-gateway/internal/infra/logging"
	"tappay-gateway/internal/infra/metrics"
)

// Method is one vendor operation of adapter.TapClient.
type Method func(ctx context.Context, req adapter.TapRequest) (adapter.TapResponse, error)

// Call invokes method at the single vendor boundary. Transport or decode
// failures are logged with detail and surfaced as a generic TransportFailure.
func Call(ctx context.Context, logger *zerolog.Logger, name string, req adapter.TapRequest, method Method) (Response, error) {
	l := logging.With(ctx, logger)
	defer logging.TraceDuration(l, "tappay."+name)()

	start := time.Now()
	resp, err := method(ctx, req)
	metrics.ObserveTapCall(name, err == nil, time.Since(start))
	if err != nil {
		l.Warn().Err(err).Str("method", name).Msg("unable to process the payment")
		return nil, domain.NewTransportFailure(err)
	}
	return Response(resp), nil
}
