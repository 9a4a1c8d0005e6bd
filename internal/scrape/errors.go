package scrape

import (
	"context"
	"errors"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindMissingURL
	KindInvalidURLScheme
	KindBackendConnectFailed
	KindBackendIOFailed
	KindBackendMalformedResponse
	KindBackendReportedError
	KindBackendTimeout
	KindCompressionFailed
	KindResponseWriteFailed
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindMissingURL:
		return "missing_url"
	case KindInvalidURLScheme:
		return "invalid_url_scheme"
	case KindBackendConnectFailed:
		return "backend_connect_failed"
	case KindBackendIOFailed:
		return "backend_io_failed"
	case KindBackendMalformedResponse:
		return "backend_malformed_response"
	case KindBackendReportedError:
		return "backend_reported_error"
	case KindBackendTimeout:
		return "backend_timeout"
	case KindCompressionFailed:
		return "compression_failed"
	case KindResponseWriteFailed:
		return "response_write_failed"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is the typed failure passed between pipeline stages. Err may hold
// backend addresses or raw protocol fragments and must only be logged.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds an *Error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain. Bare context
// errors map to KindBackendTimeout and KindCanceled.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindBackendTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}

	return KindUnknown
}

// FromContext converts a done context into a timeout or canceled error.
// It returns nil while ctx is still live.
func FromContext(ctx context.Context, op string) *Error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(KindBackendTimeout, op, err)
	default:
		return NewError(KindCanceled, op, err)
	}
}
