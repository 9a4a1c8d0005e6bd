package healthcheck

import (
	"context"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/angeloszaimis/scrape-gateway/internal/backend"
	"github.com/angeloszaimis/scrape-gateway/internal/metrics"
)

// Probe reports whether the backend at address accepts connections.
type Probe func(ctx context.Context, address string) error

// TCPProbe returns a Probe that opens and immediately closes a TCP
// connection. It accepts host:port as well as ws:// and wss:// addresses.
func TCPProbe(timeout time.Duration) Probe {
	dialer := net.Dialer{Timeout: timeout}

	return func(ctx context.Context, address string) error {
		conn, err := dialer.DialContext(ctx, "tcp", dialAddress(address))
		if err != nil {
			return err
		}
		return conn.Close()
	}
}

func dialAddress(address string) string {
	if !strings.Contains(address, "://") {
		return address
	}

	u, err := url.Parse(address)
	if err != nil || u.Host == "" {
		return address
	}
	if u.Port() != "" {
		return u.Host
	}

	port := "80"
	if u.Scheme == "wss" || u.Scheme == "https" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// HealthCheck probes endpoint every interval until ctx is done. Transitions
// are logged and sent to collector, which may be nil.
func HealthCheck(
	ctx context.Context,
	endpoint *backend.Endpoint,
	interval time.Duration,
	probe Probe,
	collector *metrics.Collector,
	logger *slog.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Health check stopped",
				slog.String("backend", endpoint.Address()))
			return

		case <-ticker.C:
			err := probe(ctx, endpoint.Address())
			if ctx.Err() != nil {
				continue
			}

			healthy := err == nil
			if !endpoint.SetHealthy(healthy) {
				continue
			}

			collector.Emit(metrics.MetricEvent{
				Type:      metrics.EventHealthChanged,
				Timestamp: time.Now(),
				Backend:   endpoint.Address(),
				Healthy:   healthy,
			})

			if healthy {
				logger.Info("Backend is back up",
					slog.String("backend", endpoint.Address()))
			} else {
				logger.Warn("Backend is down",
					slog.String("backend", endpoint.Address()),
					slog.Any("error", err))
			}
		}
	}
}
