package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/angeloszaimis/scrape-gateway/internal/scrape"
)

const (
	ProtocolText    = "text"
	ProtocolMessage = "message"
)

// DefaultMaxReplyBytes caps a backend reply when Options leaves it unset.
const DefaultMaxReplyBytes = 32 << 20

// Client fetches a single page from a scraper backend. Every call opens its
// own connection and closes it before returning.
type Client interface {
	Fetch(ctx context.Context, target string) (*scrape.Result, error)
}

// Options tunes the connection made for each exchange.
type Options struct {
	DialTimeout   time.Duration
	MaxReplyBytes int64
}

func (o Options) maxReplyBytes() int64 {
	if o.MaxReplyBytes <= 0 {
		return DefaultMaxReplyBytes
	}
	return o.MaxReplyBytes
}

// NewClient returns the client for protocol talking to address.
func NewClient(protocol, address string, opts Options) (Client, error) {
	switch protocol {
	case ProtocolText:
		return NewTextClient(address, opts), nil
	case ProtocolMessage:
		return NewMessageClient(address, opts), nil
	default:
		return nil, fmt.Errorf("unknown backend protocol %q", protocol)
	}
}

// aLongTimeAgo is used to unblock pending reads and writes on cancellation.
var aLongTimeAgo = time.Unix(1, 0)

func ioFailure(ctx context.Context, op string, err error) error {
	if ctxErr := scrape.FromContext(ctx, op); ctxErr != nil {
		return ctxErr
	}
	return scrape.NewError(scrape.KindBackendIOFailed, op, err)
}
