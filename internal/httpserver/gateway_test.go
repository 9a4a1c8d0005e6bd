package httpserver_test

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/quic-go/quic-go/http3"

	"github.com/angeloszaimis/scrape-gateway/internal/encoder"
	"github.com/angeloszaimis/scrape-gateway/internal/handler"
	"github.com/angeloszaimis/scrape-gateway/internal/httpserver"
	"github.com/angeloszaimis/scrape-gateway/internal/scrape"
)

// holdingFetcher answers immediately, except for targets containing "slow",
// which wait for release or for their context to end.
type holdingFetcher struct {
	slowStarted  chan struct{}
	slowCanceled chan struct{}
	release      chan struct{}
}

func newHoldingFetcher() *holdingFetcher {
	return &holdingFetcher{
		slowStarted:  make(chan struct{}),
		slowCanceled: make(chan struct{}),
		release:      make(chan struct{}),
	}
}

func (f *holdingFetcher) Fetch(ctx context.Context, req scrape.Request) (*scrape.Result, error) {
	if strings.Contains(req.URL, "slow") {
		close(f.slowStarted)
		select {
		case <-f.release:
		case <-ctx.Done():
			close(f.slowCanceled)
			return nil, scrape.FromContext(ctx, "fetch")
		}
	}
	return &scrape.Result{Content: []byte(req.URL)}, nil
}

type reply struct {
	status int
	body   string
	err    error
}

var _ = Describe("Gateway over HTTP/3", func() {
	var (
		srv       *httpserver.Server
		addr      string
		done      chan error
		fetcher   *holdingFetcher
		transport *http3.Transport
		client    *http.Client

		connMu sync.Mutex
		conns  map[string]*http3.Conn
	)

	BeforeEach(func() {
		certFile, keyFile := writeKeyPair(GinkgoT().TempDir())
		tlsConfig, err := httpserver.LoadTLSConfig(certFile, keyFile)
		Expect(err).NotTo(HaveOccurred())

		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		fetcher = newHoldingFetcher()
		gateway := handler.NewGatewayHandler(log, fetcher, encoder.New(nil, encoder.Options{}), 5*time.Second, nil)

		conns = map[string]*http3.Conn{}
		recordConn := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if h, ok := w.(http3.Hijacker); ok {
				connMu.Lock()
				conns[r.URL.Query().Get("url")] = h.Connection()
				connMu.Unlock()
			}
			gateway.ServeHTTP(w, r)
		})

		addr = freePort()
		srv, err = httpserver.New(httpserver.Options{Addr: addr, TLSConfig: tlsConfig}, recordConn)
		Expect(err).NotTo(HaveOccurred())

		done = make(chan error, 1)
		go func() { done <- srv.Start() }()

		transport = &http3.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
		client = &http.Client{Transport: transport}

		Eventually(func() error {
			resp, err := client.Get(scrapeURL(addr, "https://warmup.example/"))
			if err == nil {
				resp.Body.Close()
			}
			return err
		}, 5*time.Second).Should(Succeed())
	})

	AfterEach(func() {
		transport.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	fetch := func(ctx context.Context, target string) reply {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, scrapeURL(addr, target), nil)
		if err != nil {
			return reply{err: err}
		}
		resp, err := client.Do(req)
		if err != nil {
			return reply{err: err}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		return reply{status: resp.StatusCode, body: string(body), err: err}
	}

	startSlow := func(ctx context.Context) chan reply {
		replies := make(chan reply, 1)
		go func() {
			defer GinkgoRecover()
			replies <- fetch(ctx, "https://slow.example/")
		}()
		Eventually(fetcher.slowStarted).Should(BeClosed())
		return replies
	}

	It("should answer a fast request while a slow one on the same connection waits", func() {
		slow := startSlow(context.Background())

		fast := fetch(context.Background(), "https://fast.example/")
		Expect(fast.err).NotTo(HaveOccurred())
		Expect(fast.status).To(Equal(http.StatusOK))
		Expect(fast.body).To(Equal("https://fast.example/"))
		Consistently(slow, 100*time.Millisecond).ShouldNot(Receive())

		connMu.Lock()
		Expect(conns["https://fast.example/"]).NotTo(BeNil())
		Expect(conns["https://fast.example/"]).To(BeIdenticalTo(conns["https://slow.example/"]))
		connMu.Unlock()

		close(fetcher.release)
		var got reply
		Eventually(slow, 2*time.Second).Should(Receive(&got))
		Expect(got.err).NotTo(HaveOccurred())
		Expect(got.body).To(Equal("https://slow.example/"))
	})

	It("should cancel the backend exchange when the client gives up", func() {
		ctx, cancel := context.WithCancel(context.Background())
		slow := startSlow(ctx)

		cancel()

		Eventually(fetcher.slowCanceled, 2*time.Second).Should(BeClosed())
		Eventually(slow).Should(Receive())

		fast := fetch(context.Background(), "https://fast.example/")
		Expect(fast.err).NotTo(HaveOccurred())
		Expect(fast.status).To(Equal(http.StatusOK))
	})

	It("should let in-flight requests finish during shutdown", func() {
		slow := startSlow(context.Background())

		shutdown := make(chan error, 1)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			shutdown <- srv.Shutdown(ctx)
		}()
		Consistently(slow, 100*time.Millisecond).ShouldNot(Receive())

		close(fetcher.release)

		var got reply
		Eventually(slow, 2*time.Second).Should(Receive(&got))
		Expect(got.err).NotTo(HaveOccurred())
		Expect(got.status).To(Equal(http.StatusOK))
		Expect(got.body).To(Equal("https://slow.example/"))

		Eventually(shutdown, 3*time.Second).Should(Receive(BeNil()))
		Eventually(done).Should(Receive(BeNil()))
	})
})

func scrapeURL(addr, target string) string {
	return "https://" + addr + "/?url=" + url.QueryEscape(target)
}
