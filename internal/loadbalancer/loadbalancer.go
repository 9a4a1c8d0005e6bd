package loadbalancer

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/angeloszaimis/scrape-gateway/internal/backend"
	"github.com/angeloszaimis/scrape-gateway/internal/metrics"
	"github.com/angeloszaimis/scrape-gateway/internal/scrape"
	"github.com/angeloszaimis/scrape-gateway/internal/strategy"
)

// ErrNoHealthyEndpoint is wrapped in a KindBackendConnectFailed error when
// every endpoint is marked down.
var ErrNoHealthyEndpoint = errors.New("no healthy backend endpoints")

type LoadBalancer struct {
	strategy  strategy.Strategy
	endpoints []*backend.Endpoint
	limiter   *semaphore.Weighted
	collector *metrics.Collector
}

// NewLoadBalancer creates a LoadBalancer over endpoints. maxInFlight <= 0
// leaves backend exchanges unbounded. collector may be nil.
func NewLoadBalancer(strat strategy.Strategy, endpoints []*backend.Endpoint, maxInFlight int64, collector *metrics.Collector) *LoadBalancer {
	lb := &LoadBalancer{
		strategy:  strat,
		endpoints: endpoints,
		collector: collector,
	}
	if maxInFlight > 0 {
		lb.limiter = semaphore.NewWeighted(maxInFlight)
	}
	return lb
}

// Fetch runs one backend exchange for req. It waits for a free slot, picks a
// healthy endpoint keyed by the target URL and never retries.
func (lb *LoadBalancer) Fetch(ctx context.Context, req scrape.Request) (*scrape.Result, error) {
	if lb.limiter != nil {
		if err := lb.limiter.Acquire(ctx, 1); err != nil {
			if ctxErr := scrape.FromContext(ctx, "loadbalancer.acquire"); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, scrape.NewError(scrape.KindBackendTimeout, "loadbalancer.acquire", err)
		}
		defer lb.limiter.Release(1)
	}

	endpoint, err := lb.GetAndReserveEndpoint(req.URL)
	if err != nil {
		return nil, scrape.NewError(scrape.KindBackendConnectFailed, "loadbalancer.select", err)
	}
	defer endpoint.DecrementConn()

	lb.collector.Emit(metrics.MetricEvent{
		Type:      metrics.EventBackendSelected,
		Timestamp: time.Now(),
		Backend:   endpoint.Address(),
	})

	start := time.Now()
	result, err := endpoint.Fetch(ctx, req.URL)

	lb.collector.Emit(metrics.MetricEvent{
		Type:      metrics.EventExchangeCompleted,
		Timestamp: time.Now(),
		Backend:   endpoint.Address(),
		Duration:  time.Since(start),
		Outcome:   outcome(err),
	})

	return result, err
}

// GetAndReserveEndpoint selects a healthy endpoint for key and counts the
// exchange against it. The caller must call DecrementConn when done.
func (lb *LoadBalancer) GetAndReserveEndpoint(key string) (*backend.Endpoint, error) {
	healthy := lb.HealthyEndpoints()
	if len(healthy) == 0 {
		return nil, ErrNoHealthyEndpoint
	}

	chosen := lb.strategy.Select(healthy, key)
	if chosen == nil {
		return nil, errors.New("strategy returned nil endpoint")
	}

	chosen.IncrementConn()
	return chosen, nil
}

// HealthyEndpoints returns the endpoints currently marked healthy.
func (lb *LoadBalancer) HealthyEndpoints() []*backend.Endpoint {
	healthy := make([]*backend.Endpoint, 0, len(lb.endpoints))

	for _, e := range lb.endpoints {
		if e.IsHealthy() {
			healthy = append(healthy, e)
		}
	}

	return healthy
}

// Endpoints returns every configured endpoint.
func (lb *LoadBalancer) Endpoints() []*backend.Endpoint {
	return lb.endpoints
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	return scrape.KindOf(err).String()
}
