// Package strategy defines how the gateway picks a scraper endpoint for a
// request and implements the selection algorithms:
//
//   - Round Robin: Sequential distribution across endpoints
//   - Random: Random endpoint selection
//   - Least Connections: Routes to the endpoint with the fewest in-flight exchanges
//   - Least Response Time: Routes on exponentially weighted moving average (EWMA) latency
//   - Consistent Hash: The same target URL lands on the same endpoint while the set is stable
//   - Weighted Round Robin: Distribution proportional to endpoint weights
//
// Callers pass only healthy endpoints; strategies never look at health.
package strategy
