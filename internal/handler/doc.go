// Package handler implements the client-facing HTTP handlers of the gateway.
//
// GatewayHandler runs the scrape pipeline for each request: parse the target
// URL, fetch the page from a backend, encode the response. Every failure on
// that path goes through MapError, so each request gets exactly one response.
package handler
