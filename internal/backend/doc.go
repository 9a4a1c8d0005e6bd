// Package backend implements the client side of the scraper backend
// contract. A Client fetches one URL over one fresh connection: the text
// protocol speaks a single HTTP/1.1 exchange over TCP, the message protocol
// a single websocket request/reply. Both decode the same JSON reply and
// report failures as typed scrape errors.
//
// Endpoint wraps a Client with the health, connection and latency tracking
// used by the selection strategies.
package backend
