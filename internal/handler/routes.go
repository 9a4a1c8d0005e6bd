package handler

import (
	"log/slog"
	"net/http"

	"github.com/angeloszaimis/scrape-gateway/internal/backend"
	"github.com/angeloszaimis/scrape-gateway/internal/encoder"
)

// EndpointSet reports backend endpoint health.
type EndpointSet interface {
	Endpoints() []*backend.Endpoint
	HealthyEndpoints() []*backend.Endpoint
}

type healthBody struct {
	Status          string `json:"status"`
	HealthyBackends int    `json:"healthy_backends"`
	TotalBackends   int    `json:"total_backends"`
}

// Health answers 200 while at least one endpoint is healthy, 503 otherwise.
func Health(endpoints EndpointSet, enc *encoder.Encoder, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := healthBody{
			Status:          "ok",
			HealthyBackends: len(endpoints.HealthyEndpoints()),
			TotalBackends:   len(endpoints.Endpoints()),
		}

		status := http.StatusOK
		if body.HealthyBackends == 0 {
			status = http.StatusServiceUnavailable
			body.Status = "unavailable"
		}

		if err := enc.WriteJSON(w, status, body); err != nil {
			LoggerFrom(r.Context(), logger).Debug("Failed to write health response", slog.Any("error", err))
		}
	}
}

// NotFound writes the JSON 404 error.
func NotFound(enc *encoder.Encoder, logger *slog.Logger) http.HandlerFunc {
	return errorRoute(enc, logger, http.StatusNotFound, msgNotFound)
}

// MethodNotAllowed writes the JSON 405 error.
func MethodNotAllowed(enc *encoder.Encoder, logger *slog.Logger) http.HandlerFunc {
	return errorRoute(enc, logger, http.StatusMethodNotAllowed, msgMethodNotAllowed)
}

func errorRoute(enc *encoder.Encoder, logger *slog.Logger, status int, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := enc.WriteError(w, status, message); err != nil {
			LoggerFrom(r.Context(), logger).Debug("Failed to write error response",
				slog.Int("status", status),
				slog.Any("error", err))
		}
	}
}
