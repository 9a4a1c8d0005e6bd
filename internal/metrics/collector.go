package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventRequestReceived   EventType = "request_received"
	EventResponseCompleted EventType = "response_completed"
	EventBackendSelected   EventType = "backend_selected"
	EventExchangeCompleted EventType = "exchange_completed"
	EventHealthChanged     EventType = "health_changed"
)

// OutcomeSuccess is the outcome label of a request or exchange that did not
// fail. Failures use the scrape error kind name.
const OutcomeSuccess = "success"

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Backend    string
	Duration   time.Duration
	StatusCode int
	Outcome    string
	Healthy    bool
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

// Emit queues event without blocking. It is a no-op on a nil Collector.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}

	select {
	case c.eventCh <- event:
	default:
	}
}

// Register records an endpoint up front so it shows in snapshots before any
// traffic reaches it.
func (c *Collector) Register(backend string, healthy bool) {
	if c == nil {
		return
	}
	c.metrics.UpdateHealthStatus(backend, healthy)
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventRequestReceived:
		c.metrics.IncrementRequests()

	case EventResponseCompleted:
		c.metrics.RecordResponse(event.Duration, event.StatusCode, event.Outcome)

	case EventBackendSelected:
		c.metrics.RecordBackendSelection(event.Backend)

	case EventExchangeCompleted:
		c.metrics.RecordExchange(event.Backend, event.Duration, event.Outcome)

	case EventHealthChanged:
		c.metrics.UpdateHealthStatus(event.Backend, event.Healthy)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot(algorithm string) Snapshot {
	return c.metrics.Snapshot(algorithm)
}
