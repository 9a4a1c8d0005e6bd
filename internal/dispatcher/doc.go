// Package dispatcher extracts and validates the scrape target from an
// incoming request. Nothing that fails here ever reaches a backend.
package dispatcher
