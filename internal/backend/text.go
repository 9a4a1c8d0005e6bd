package backend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/angeloszaimis/scrape-gateway/internal/scrape"
)

// TextClient speaks the line protocol: one HTTP/1.1 GET per TCP connection,
// with the target percent-encoded into the path.
//
//	GET /scrape/<encoded url> HTTP/1.1
//	Host: <address>
//	Connection: close
//
// The reply is a regular HTTP/1.1 response whose body is the JSON reply.
type TextClient struct {
	address string
	dialer  net.Dialer
	opts    Options
}

func NewTextClient(address string, opts Options) *TextClient {
	return &TextClient{
		address: address,
		dialer:  net.Dialer{Timeout: opts.DialTimeout},
		opts:    opts,
	}
}

// Fetch implements Client.
func (c *TextClient) Fetch(ctx context.Context, target string) (*scrape.Result, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		if ctxErr := scrape.FromContext(ctx, "backend.dial"); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, scrape.NewError(scrape.KindBackendConnectFailed, "backend.dial", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(aLongTimeAgo)
	})
	defer stop()

	if _, err := io.WriteString(conn, FormatTextRequest(c.address, target)); err != nil {
		return nil, ioFailure(ctx, "backend.write", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		return nil, c.readFailure(ctx, err)
	}
	defer resp.Body.Close()

	limit := c.opts.maxReplyBytes()
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, c.readFailure(ctx, err)
	}
	if int64(len(body)) > limit {
		return nil, scrape.NewError(scrape.KindBackendMalformedResponse, "backend.read",
			fmt.Errorf("reply exceeds %d bytes", limit))
	}

	return DecodeReply(body)
}

// readFailure separates transport failures from replies that are missing,
// truncated or not HTTP at all.
func (c *TextClient) readFailure(ctx context.Context, err error) error {
	const op = "backend.read"

	if ctxErr := scrape.FromContext(ctx, op); ctxErr != nil {
		return ctxErr
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return scrape.NewError(scrape.KindBackendIOFailed, op, err)
	}

	return scrape.NewError(scrape.KindBackendMalformedResponse, op, err)
}

// FormatTextRequest renders the request written by TextClient.
func FormatTextRequest(host, target string) string {
	return "GET /scrape/" + EncodeTarget(target) + " HTTP/1.1\r\n" +
		"Host: " + host + "\r\n" +
		"Connection: close\r\n" +
		"\r\n"
}

// EncodeTarget percent-encodes every byte outside the unreserved set, so the
// whole URL travels as a single path segment.
func EncodeTarget(target string) string {
	return strings.ReplaceAll(url.QueryEscape(target), "+", "%20")
}
