package handler

import (
	"net/http"

	"github.com/angeloszaimis/scrape-gateway/internal/scrape"
)

// StatusClientClosedRequest is used when the client went away before the
// response was ready. It almost never reaches anyone.
const StatusClientClosedRequest = 499

const (
	msgMissingURL       = "missing url parameter, use ?url=https://example.com"
	msgInvalidURL       = "url must be an absolute http or https url"
	msgUnavailable      = "scrape backend unavailable"
	msgConnection       = "scrape backend connection failed"
	msgInvalidReply     = "scrape backend returned an invalid response"
	msgNotRetrieved     = "scrape backend could not retrieve the page"
	msgTimeout          = "scrape backend timed out"
	msgEncodeFailed     = "failed to encode response"
	msgClientClosed     = "client closed request"
	msgInternal         = "internal error"
	msgNotFound         = "not found"
	msgMethodNotAllowed = "method not allowed"
)

// MapError returns the status and client message for err. Messages never
// carry backend details.
func MapError(err error) (int, string) {
	switch scrape.KindOf(err) {
	case scrape.KindMissingURL:
		return http.StatusBadRequest, msgMissingURL
	case scrape.KindInvalidURLScheme:
		return http.StatusBadRequest, msgInvalidURL
	case scrape.KindBackendConnectFailed:
		return http.StatusBadGateway, msgUnavailable
	case scrape.KindBackendIOFailed:
		return http.StatusBadGateway, msgConnection
	case scrape.KindBackendMalformedResponse:
		return http.StatusBadGateway, msgInvalidReply
	case scrape.KindBackendReportedError:
		return http.StatusBadGateway, msgNotRetrieved
	case scrape.KindBackendTimeout:
		return http.StatusGatewayTimeout, msgTimeout
	case scrape.KindCompressionFailed:
		return http.StatusInternalServerError, msgEncodeFailed
	case scrape.KindCanceled:
		return StatusClientClosedRequest, msgClientClosed
	default:
		return http.StatusInternalServerError, msgInternal
	}
}
