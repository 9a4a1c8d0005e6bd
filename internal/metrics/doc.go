// Package metrics provides real-time metrics collection for the gateway.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Gateway requests, response status codes and outcome kinds
//   - Gateway response times with percentile calculations (P50, P95, P99)
//   - Backend endpoint selections, exchange outcomes and exchange latency
//   - Backend endpoint health transitions
//
// The collector runs in a dedicated goroutine. Emit never blocks: when the
// buffer is full the event is dropped, so a slow collector cannot hold up a
// request.
//
// Example usage:
//
//	collector := metrics.NewCollector(1024, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:       metrics.EventResponseCompleted,
//		Duration:   150 * time.Millisecond,
//		StatusCode: 200,
//		Outcome:    metrics.OutcomeSuccess,
//	})
//
//	snapshot := collector.Snapshot("round-robin")
package metrics
