package backend

import (
	"context"
	"sync"
	"time"

	"github.com/angeloszaimis/scrape-gateway/internal/scrape"
)

// Endpoint is one scraper backend instance with health status, in-flight
// exchange tracking and response time monitoring.
type Endpoint struct {
	address           string
	weight            int
	client            Client
	mutex             sync.Mutex
	isHealthy         bool
	activeConnections int
	ewmaResponseTime  time.Duration
	hasEWMA           bool
}

const ewmaAlpha = 0.2

// NewEndpoint creates an Endpoint for address served by client.
// The endpoint starts in a healthy state. Weighted selection skips
// endpoints whose weight is not positive.
func NewEndpoint(address string, weight int, client Client) *Endpoint {
	return &Endpoint{
		address:   address,
		weight:    weight,
		client:    client,
		isHealthy: true,
	}
}

// Address returns the backend address the endpoint dials.
func (e *Endpoint) Address() string {
	return e.address
}

// Weight returns the configured weight.
func (e *Endpoint) Weight() int {
	return e.weight
}

// Fetch runs one exchange with the backend and records its duration.
// Connection accounting is left to the caller that reserved the endpoint.
func (e *Endpoint) Fetch(ctx context.Context, target string) (*scrape.Result, error) {
	start := time.Now()
	result, err := e.client.Fetch(ctx, target)

	if scrape.KindOf(err) != scrape.KindCanceled {
		e.RecordResponse(time.Since(start))
	}

	return result, err
}

// IncrementConn increments the in-flight exchange count.
func (e *Endpoint) IncrementConn() {
	e.mutex.Lock()
	e.activeConnections++
	e.mutex.Unlock()
}

// DecrementConn decrements the in-flight exchange count.
func (e *Endpoint) DecrementConn() {
	e.mutex.Lock()
	if e.activeConnections > 0 {
		e.activeConnections--
	}
	e.mutex.Unlock()
}

// ActiveConnections returns the current number of in-flight exchanges.
func (e *Endpoint) ActiveConnections() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.activeConnections
}

// IsHealthy returns true if the endpoint is currently healthy.
func (e *Endpoint) IsHealthy() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.isHealthy
}

// SetHealthy updates the endpoint's health status.
// Returns true if the status changed, false if it was already in that state.
func (e *Endpoint) SetHealthy(healthy bool) (changed bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.isHealthy == healthy {
		return false
	}

	e.isHealthy = healthy
	return true
}

// RecordResponse updates the exponentially weighted moving average (EWMA)
// response time using the latest exchange duration.
func (e *Endpoint) RecordResponse(duration time.Duration) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if !e.hasEWMA {
		e.ewmaResponseTime = duration
		e.hasEWMA = true
		return
	}
	//ewma = (1 - α) * ewma + α * latest
	e.ewmaResponseTime = time.Duration((1-ewmaAlpha)*float64(e.ewmaResponseTime) + ewmaAlpha*float64(duration))
}

// EWMATime returns the exponentially weighted moving average response time.
// Returns 0 if no responses have been recorded yet.
func (e *Endpoint) EWMATime() time.Duration {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if !e.hasEWMA {
		return 0
	}

	return e.ewmaResponseTime
}
