package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/angeloszaimis/scrape-gateway/internal/scrape"
)

const closeGracePeriod = time.Second

// MessageClient speaks the message protocol: one websocket connection per
// request, one {"url": ...} text message out, exactly one JSON text message
// back.
type MessageClient struct {
	url    string
	dialer websocket.Dialer
	opts   Options
}

// NewMessageClient dials ws://address/. A full ws:// or wss:// URL is used
// as given.
func NewMessageClient(address string, opts Options) *MessageClient {
	u := address
	if !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") {
		u = "ws://" + address + "/"
	}

	return &MessageClient{
		url:    u,
		dialer: websocket.Dialer{HandshakeTimeout: opts.DialTimeout},
		opts:   opts,
	}
}

// Fetch implements Client.
func (c *MessageClient) Fetch(ctx context.Context, target string) (*scrape.Result, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if ctxErr := scrape.FromContext(ctx, "backend.dial"); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, scrape.NewError(scrape.KindBackendConnectFailed, "backend.dial", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.NetConn().SetDeadline(aLongTimeAgo)
	})
	defer stop()

	conn.SetReadLimit(c.opts.maxReplyBytes())

	payload, err := EncodeRequest(target)
	if err != nil {
		return nil, scrape.NewError(scrape.KindUnknown, "backend.encode", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, ioFailure(ctx, "backend.write", err)
	}

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		return nil, c.readFailure(ctx, err)
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGracePeriod))

	if msgType != websocket.TextMessage {
		return nil, scrape.NewError(scrape.KindBackendMalformedResponse, "backend.read",
			fmt.Errorf("unexpected message type %d", msgType))
	}

	return DecodeReply(data)
}

// readFailure maps a peer that closed without replying, or replied with an
// oversized frame, to a malformed response.
func (c *MessageClient) readFailure(ctx context.Context, err error) error {
	const op = "backend.read"

	if ctxErr := scrape.FromContext(ctx, op); ctxErr != nil {
		return ctxErr
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) || errors.Is(err, websocket.ErrReadLimit) {
		return scrape.NewError(scrape.KindBackendMalformedResponse, op, err)
	}

	return scrape.NewError(scrape.KindBackendIOFailed, op, err)
}
