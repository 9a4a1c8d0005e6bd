// Package encoder turns scrape results and gateway errors into HTTP
// responses. Successful pages are optionally brotli compressed when the
// client accepts it and are streamed in fixed size chunks.
package encoder
