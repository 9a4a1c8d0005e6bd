// Package loadbalancer routes each scrape to one healthy backend endpoint
// and bounds the number of backend exchanges in flight.
package loadbalancer
