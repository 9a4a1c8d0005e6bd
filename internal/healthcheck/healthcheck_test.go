package healthcheck_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/scrape-gateway/internal/backend"
	"github.com/angeloszaimis/scrape-gateway/internal/healthcheck"
	"github.com/angeloszaimis/scrape-gateway/internal/metrics"
)

var _ = Describe("Healthcheck", func() {
	var (
		endpoint *backend.Endpoint
		log      *slog.Logger
		ctx      context.Context
		cancel   context.CancelFunc
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
		endpoint = backend.NewEndpoint("127.0.0.1:3001", 1, nil)
		ctx, cancel = context.WithCancel(context.Background())
	})

	AfterEach(func() {
		cancel()
	})

	Describe("HealthCheck", func() {
		It("should mark a reachable endpoint healthy", func() {
			endpoint.SetHealthy(false)
			probe := func(context.Context, string) error { return nil }

			go healthcheck.HealthCheck(ctx, endpoint, 20*time.Millisecond, probe, nil, log)

			Eventually(endpoint.IsHealthy).Should(BeTrue())
		})

		It("should mark an unreachable endpoint down", func() {
			probe := func(context.Context, string) error { return errors.New("connection refused") }

			go healthcheck.HealthCheck(ctx, endpoint, 20*time.Millisecond, probe, nil, log)

			Eventually(endpoint.IsHealthy).Should(BeFalse())
		})

		It("should probe the endpoint address", func() {
			var seen atomic.Value
			probe := func(_ context.Context, address string) error {
				seen.Store(address)
				return nil
			}

			go healthcheck.HealthCheck(ctx, endpoint, 20*time.Millisecond, probe, nil, log)

			Eventually(seen.Load).Should(Equal("127.0.0.1:3001"))
		})

		It("should report transitions to the collector", func() {
			collector := metrics.NewCollector(16, log)
			collector.Start(ctx)
			probe := func(context.Context, string) error { return errors.New("down") }

			go healthcheck.HealthCheck(ctx, endpoint, 20*time.Millisecond, probe, collector, log)

			Eventually(func() bool {
				b, ok := collector.Snapshot("").Backends["127.0.0.1:3001"]
				return ok && !b.Healthy
			}).Should(BeTrue())
		})

		It("should stop when the context is cancelled", func() {
			var probes atomic.Int32
			probe := func(context.Context, string) error {
				probes.Add(1)
				return nil
			}

			done := make(chan struct{})
			go func() {
				healthcheck.HealthCheck(ctx, endpoint, 10*time.Millisecond, probe, nil, log)
				close(done)
			}()

			Eventually(probes.Load).Should(BeNumerically(">", 0))
			cancel()
			Eventually(done).Should(BeClosed())
		})
	})

	Describe("TCPProbe", func() {
		It("should succeed against a listening socket", func() {
			listener, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			defer listener.Close()

			probe := healthcheck.TCPProbe(time.Second)
			Expect(probe(context.Background(), listener.Addr().String())).To(Succeed())
		})

		It("should accept websocket addresses", func() {
			listener, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			defer listener.Close()

			probe := healthcheck.TCPProbe(time.Second)
			Expect(probe(context.Background(), "ws://"+listener.Addr().String()+"/")).To(Succeed())
		})

		It("should fail when nothing is listening", func() {
			listener, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			address := listener.Addr().String()
			listener.Close()

			probe := healthcheck.TCPProbe(time.Second)
			Expect(probe(context.Background(), address)).NotTo(Succeed())
		})
	})
})
