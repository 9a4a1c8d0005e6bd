package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/scrape-gateway/internal/dispatcher"
	"github.com/angeloszaimis/scrape-gateway/internal/encoder"
	"github.com/angeloszaimis/scrape-gateway/internal/metrics"
	"github.com/angeloszaimis/scrape-gateway/internal/scrape"
)

// Fetcher runs one backend exchange. *loadbalancer.LoadBalancer is the
// production implementation.
type Fetcher interface {
	Fetch(ctx context.Context, req scrape.Request) (*scrape.Result, error)
}

type GatewayHandler struct {
	logger    *slog.Logger
	fetcher   Fetcher
	encoder   *encoder.Encoder
	timeout   time.Duration
	collector *metrics.Collector
}

// NewGatewayHandler returns the scrape pipeline handler. timeout bounds each
// backend exchange; zero leaves it to the request context. collector may be
// nil.
func NewGatewayHandler(logger *slog.Logger, fetcher Fetcher, enc *encoder.Encoder, timeout time.Duration, collector *metrics.Collector) *GatewayHandler {
	return &GatewayHandler{
		logger:    logger,
		fetcher:   fetcher,
		encoder:   enc,
		timeout:   timeout,
		collector: collector,
	}
}

func (h *GatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := LoggerFrom(r.Context(), h.logger)

	h.collector.Emit(metrics.MetricEvent{
		Type:      metrics.EventRequestReceived,
		Timestamp: start,
	})

	status, err := h.serve(w, r, log)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = scrape.KindOf(err).String()
	}

	h.collector.Emit(metrics.MetricEvent{
		Type:       metrics.EventResponseCompleted,
		Timestamp:  time.Now(),
		Duration:   time.Since(start),
		StatusCode: status,
		Outcome:    outcome,
	})
}

func (h *GatewayHandler) serve(w http.ResponseWriter, r *http.Request, log *slog.Logger) (int, error) {
	target, err := dispatcher.ParseTarget(r)
	if err != nil {
		return h.fail(w, log, err), err
	}

	log = log.With(slog.String("target", target.URL))
	log.Debug("Dispatching scrape request", slog.String("proto", r.Proto))

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.fetcher.Fetch(ctx, target)
	if err != nil {
		return h.fail(w, log, err), err
	}

	if err := h.encoder.WriteContent(w, r, result); err != nil {
		if scrape.KindOf(err) == scrape.KindResponseWriteFailed {
			log.Warn("Failed to write response", slog.Any("error", err))
			return http.StatusOK, err
		}
		return h.fail(w, log, err), err
	}

	log.Info("Scrape completed",
		slog.Int("bytes", len(result.Content)),
		slog.String("charset", result.CharsetOrDefault()))

	return http.StatusOK, nil
}

// fail logs err and writes its mapped error response. Nothing must have been
// written to w yet.
func (h *GatewayHandler) fail(w http.ResponseWriter, log *slog.Logger, err error) int {
	status, message := MapError(err)
	kind := scrape.KindOf(err)

	switch {
	case kind == scrape.KindCanceled:
		log.Debug("Client went away", slog.Any("error", err))
	case status < http.StatusInternalServerError:
		log.Info("Rejected request", slog.String("kind", kind.String()))
	default:
		log.Error("Scrape failed",
			slog.String("kind", kind.String()),
			slog.Int("status", status),
			slog.Any("error", err))
	}

	if writeErr := h.encoder.WriteError(w, status, message); writeErr != nil {
		log.Debug("Failed to write error response", slog.Any("error", writeErr))
	}

	return status
}
