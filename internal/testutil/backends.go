// Package testutil provides in-process scraper backends for tests.
package testutil

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// StaticReply always answers with the same text-protocol reply.
func StaticReply(body string) func(string) string {
	return func(string) string { return HTTPReply(body) }
}

// HTTPReply renders a text-protocol reply the way the scraper backend does.
func HTTPReply(body string) string {
	return "HTTP/1.1 200 OK\r\n" +
		"Content-Type: application/json\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n" +
		"Connection: close\r\n" +
		"\r\n" + body
}

// TextBackend is a TCP server speaking the text protocol. The reply func
// receives the decoded target and returns the raw bytes to write back.
type TextBackend struct {
	reply    func(target string) string
	listener net.Listener
	mutex    sync.Mutex
	requests []string
	wg       sync.WaitGroup
}

// NewTextBackend starts listening on a loopback port.
func NewTextBackend(reply func(target string) string) (*TextBackend, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	b := &TextBackend{reply: reply, listener: l}
	b.wg.Add(1)
	go b.serve()
	return b, nil
}

// Addr returns host:port of the listener.
func (b *TextBackend) Addr() string {
	return b.listener.Addr().String()
}

// SetReply replaces the reply func for later connections.
func (b *TextBackend) SetReply(reply func(target string) string) {
	b.mutex.Lock()
	b.reply = reply
	b.mutex.Unlock()
}

// Requests returns the raw request heads received so far.
func (b *TextBackend) Requests() []string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return append([]string(nil), b.requests...)
}

// Close stops the listener.
func (b *TextBackend) Close() {
	b.listener.Close()
	b.wg.Wait()
}

func (b *TextBackend) serve() {
	defer b.wg.Done()
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			return
		}
		go b.handle(conn)
	}
}

func (b *TextBackend) handle(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	var head strings.Builder
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		head.WriteString(line)
		if line == "\r\n" {
			break
		}
	}

	b.mutex.Lock()
	b.requests = append(b.requests, head.String())
	reply := b.reply
	b.mutex.Unlock()

	target := ""
	if fields := strings.Fields(head.String()); len(fields) > 1 {
		target, _ = url.PathUnescape(strings.TrimPrefix(fields[1], "/scrape/"))
	}

	conn.Write([]byte(reply(target)))
}

// MessageBackend is a websocket server speaking the message protocol. The
// reply func receives the raw request message and returns the message type
// and payload to send back; websocket.CloseMessage closes without replying.
type MessageBackend struct {
	reply    func(request []byte) (int, []byte)
	server   *httptest.Server
	upgrader websocket.Upgrader
	mutex    sync.Mutex
	requests [][]byte
}

// NewMessageBackend starts the websocket server.
func NewMessageBackend(reply func(request []byte) (int, []byte)) *MessageBackend {
	b := &MessageBackend{reply: reply}
	b.server = httptest.NewServer(http.HandlerFunc(b.handle))
	return b
}

// Addr returns host:port of the server.
func (b *MessageBackend) Addr() string {
	return strings.TrimPrefix(b.server.URL, "http://")
}

// SetReply replaces the reply func for later connections.
func (b *MessageBackend) SetReply(reply func(request []byte) (int, []byte)) {
	b.mutex.Lock()
	b.reply = reply
	b.mutex.Unlock()
}

// Requests returns the request messages received so far.
func (b *MessageBackend) Requests() [][]byte {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return append([][]byte(nil), b.requests...)
}

// Close shuts the server down.
func (b *MessageBackend) Close() {
	b.server.CloseClientConnections()
	b.server.Close()
}

func (b *MessageBackend) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return
	}

	b.mutex.Lock()
	b.requests = append(b.requests, msg)
	replyFn := b.reply
	b.mutex.Unlock()

	msgType, reply := replyFn(msg)
	if msgType == websocket.CloseMessage {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return
	}
	conn.WriteMessage(msgType, reply)

	// wait for the client's close frame
	conn.ReadMessage()
}
