// Package httpserver runs the client-facing listeners: HTTP/3 over QUIC and,
// optionally, HTTP/2 and HTTP/1.1 over TLS on the same address. Responses on
// the TCP listener advertise HTTP/3 through Alt-Svc.
package httpserver
