package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/angeloszaimis/scrape-gateway/internal/dispatcher"
	"github.com/angeloszaimis/scrape-gateway/internal/encoder"
	"github.com/angeloszaimis/scrape-gateway/internal/handler"
	"github.com/angeloszaimis/scrape-gateway/internal/metrics"
	"github.com/angeloszaimis/scrape-gateway/internal/static"
)

type routerConfig struct {
	logger     *slog.Logger
	gateway    http.Handler
	endpoints  handler.EndpointSet
	collector  *metrics.Collector
	encoder    *encoder.Encoder
	strategy   string
	staticRoot string
}

func setupRouter(cfg routerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handler.RequestID(cfg.logger))

	r.Method(http.MethodGet, "/", cfg.gateway)
	r.Method(http.MethodGet, "/scrape", cfg.gateway)
	r.Get("/healthz", handler.Health(cfg.endpoints, cfg.encoder, cfg.logger))
	r.Get("/metrics", cfg.collector.Handler(cfg.strategy))

	r.MethodNotAllowed(handler.MethodNotAllowed(cfg.encoder, cfg.logger))

	notFound := handler.NotFound(cfg.encoder, cfg.logger)
	if cfg.staticRoot != "" {
		r.NotFound(static.New(cfg.staticRoot, notFound).ServeHTTP)
	} else {
		r.NotFound(scrapeOrNotFound(cfg.gateway, notFound))
	}

	return r
}

// scrapeOrNotFound sends GET requests carrying a url parameter to the
// gateway whatever their path.
func scrapeOrNotFound(gateway http.Handler, notFound http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			if _, ok := dispatcher.Lookup(dispatcher.ParseQuery(r.URL.RawQuery), dispatcher.TargetParam); ok {
				gateway.ServeHTTP(w, r)
				return
			}
		}
		notFound(w, r)
	}
}
