// Package healthcheck periodically probes scrape backend endpoints and marks
// them up or down. The load balancer only routes to endpoints marked up.
package healthcheck
