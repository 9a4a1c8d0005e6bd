package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/angeloszaimis/scrape-gateway/config"
	"github.com/angeloszaimis/scrape-gateway/internal/backend"
	"github.com/angeloszaimis/scrape-gateway/internal/encoder"
	"github.com/angeloszaimis/scrape-gateway/internal/handler"
	"github.com/angeloszaimis/scrape-gateway/internal/healthcheck"
	"github.com/angeloszaimis/scrape-gateway/internal/httpserver"
	"github.com/angeloszaimis/scrape-gateway/internal/loadbalancer"
	"github.com/angeloszaimis/scrape-gateway/internal/metrics"
	"github.com/angeloszaimis/scrape-gateway/internal/strategy"
	"github.com/angeloszaimis/scrape-gateway/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, log)
	collector.Start(ctx)

	endpoints, err := initializeEndpoints(ctx, cfg, collector, log)
	if err != nil {
		log.Error("Failed to initialize backend endpoints", slog.Any("err", err))
		os.Exit(1)
	}

	strat := createStrategy(log, cfg.Strategy)
	lb := loadbalancer.NewLoadBalancer(strat, endpoints, cfg.Backend.MaxInFlight, collector)
	enc := newEncoder(cfg.Compression)

	gateway := handler.NewGatewayHandler(log, lb, enc, cfg.Backend.Timeout, collector)

	router := setupRouter(routerConfig{
		logger:     log,
		gateway:    gateway,
		endpoints:  lb,
		collector:  collector,
		encoder:    enc,
		strategy:   cfg.Strategy.Type,
		staticRoot: cfg.Server.StaticRoot,
	})

	tlsConfig, err := httpserver.LoadTLSConfig(cfg.Server.CertFile, cfg.Server.KeyFile)
	if err != nil {
		log.Error("Failed to load TLS identity",
			slog.String("cert_file", cfg.Server.CertFile),
			slog.String("key_file", cfg.Server.KeyFile),
			slog.Any("err", err))
		os.Exit(1)
	}

	srv, err := httpserver.New(httpserver.Options{
		Addr:      cfg.Server.Address,
		TLSConfig: tlsConfig,
		EnableTCP: cfg.Server.EnableTCP,
	}, router)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	log.Info("Scrape gateway listening",
		slog.String("address", cfg.Server.Address),
		slog.Bool("tcp_fallback", cfg.Server.EnableTCP),
		slog.String("protocol", cfg.Backend.Protocol),
		slog.String("strategy", cfg.Strategy.Type),
		slog.Int("endpoints", len(endpoints)))

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting scrape gateway", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// initializeEndpoints builds one endpoint per configured backend address and
// starts its health check, which runs until ctx is done.
func initializeEndpoints(ctx context.Context, cfg *config.Config, collector *metrics.Collector, log *slog.Logger) ([]*backend.Endpoint, error) {
	if len(cfg.Backend.Endpoints) == 0 {
		return nil, errors.New("no backend endpoints configured")
	}

	opts := backend.Options{
		DialTimeout:   cfg.Backend.DialTimeout,
		MaxReplyBytes: cfg.Backend.MaxReplyBytes,
	}
	probe := healthcheck.TCPProbe(cfg.Backend.DialTimeout)

	endpoints := make([]*backend.Endpoint, 0, len(cfg.Backend.Endpoints))

	for _, ec := range cfg.Backend.Endpoints {
		client, err := backend.NewClient(cfg.Backend.Protocol, ec.Address, opts)
		if err != nil {
			return nil, err
		}

		endpoint := backend.NewEndpoint(ec.Address, ec.EffectiveWeight(), client)
		endpoints = append(endpoints, endpoint)
		collector.Register(endpoint.Address(), endpoint.IsHealthy())

		go healthcheck.HealthCheck(ctx, endpoint, cfg.HealthCheck.Interval, probe, collector, log)
	}

	return endpoints, nil
}

func createStrategy(log *slog.Logger, cfg config.StrategyConfig) strategy.Strategy {
	strat, err := strategy.New(cfg.Type, cfg.VirtualNodes)
	if err != nil {
		log.Warn("Unknown strategy, defaulting to round-robin", slog.String("requested", cfg.Type))
		strat, _ = strategy.New(strategy.RoundRobin, 0)
	}
	return strat
}

func newEncoder(cfg config.CompressionConfig) *encoder.Encoder {
	return encoder.New(
		encoder.NewBrotli(cfg.Quality, cfg.Window),
		encoder.Options{Compress: cfg.Enabled, ChunkSize: cfg.ChunkSize},
	)
}
