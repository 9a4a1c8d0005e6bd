package loadbalancer_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/scrape-gateway/internal/backend"
	"github.com/angeloszaimis/scrape-gateway/internal/loadbalancer"
	"github.com/angeloszaimis/scrape-gateway/internal/metrics"
	"github.com/angeloszaimis/scrape-gateway/internal/scrape"
	"github.com/angeloszaimis/scrape-gateway/internal/strategy"
)

type fakeClient struct {
	release  chan struct{}
	err      error
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeClient) Fetch(ctx context.Context, target string) (*scrape.Result, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)

	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, scrape.FromContext(ctx, "fake.fetch")
		}
	}

	if f.err != nil {
		return nil, f.err
	}
	return &scrape.Result{Content: []byte("<p>" + target + "</p>"), Charset: "utf-8"}, nil
}

var _ = Describe("LoadBalancer", func() {
	var (
		client *fakeClient
		first  *backend.Endpoint
		second *backend.Endpoint
		strat  strategy.Strategy
	)

	BeforeEach(func() {
		client = &fakeClient{}
		first = backend.NewEndpoint("127.0.0.1:3001", 1, client)
		second = backend.NewEndpoint("127.0.0.1:3002", 1, client)

		var err error
		strat, err = strategy.New(strategy.RoundRobin, 0)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Fetch", func() {
		It("should return the backend result", func() {
			lb := loadbalancer.NewLoadBalancer(strat, []*backend.Endpoint{first}, 0, nil)

			result, err := lb.Fetch(context.Background(), scrape.Request{URL: "https://example.com"})

			Expect(err).NotTo(HaveOccurred())
			Expect(string(result.Content)).To(Equal("<p>https://example.com</p>"))
			Expect(client.calls.Load()).To(Equal(int32(1)))
		})

		It("should call the backend exactly once on failure", func() {
			client.err = scrape.NewError(scrape.KindBackendIOFailed, "fake.fetch", io.ErrClosedPipe)
			lb := loadbalancer.NewLoadBalancer(strat, []*backend.Endpoint{first, second}, 0, nil)

			_, err := lb.Fetch(context.Background(), scrape.Request{URL: "https://example.com"})

			Expect(scrape.KindOf(err)).To(Equal(scrape.KindBackendIOFailed))
			Expect(client.calls.Load()).To(Equal(int32(1)))
		})

		It("should fail with connect failed when no endpoint is healthy", func() {
			first.SetHealthy(false)
			lb := loadbalancer.NewLoadBalancer(strat, []*backend.Endpoint{first}, 0, nil)

			_, err := lb.Fetch(context.Background(), scrape.Request{URL: "https://example.com"})

			Expect(scrape.KindOf(err)).To(Equal(scrape.KindBackendConnectFailed))
			Expect(errors.Is(err, loadbalancer.ErrNoHealthyEndpoint)).To(BeTrue())
			Expect(client.calls.Load()).To(BeZero())
		})

		It("should skip unhealthy endpoints", func() {
			first.SetHealthy(false)
			lb := loadbalancer.NewLoadBalancer(strat, []*backend.Endpoint{first, second}, 0, nil)

			for i := 0; i < 4; i++ {
				endpoint, err := lb.GetAndReserveEndpoint("")
				Expect(err).NotTo(HaveOccurred())
				Expect(endpoint).To(Equal(second))
				endpoint.DecrementConn()
			}
		})

		It("should release the connection count when done", func() {
			lb := loadbalancer.NewLoadBalancer(strat, []*backend.Endpoint{first}, 0, nil)

			_, err := lb.Fetch(context.Background(), scrape.Request{URL: "https://example.com"})

			Expect(err).NotTo(HaveOccurred())
			Expect(first.ActiveConnections()).To(BeZero())
		})

		It("should bound concurrent exchanges", func() {
			client.release = make(chan struct{})
			lb := loadbalancer.NewLoadBalancer(strat, []*backend.Endpoint{first, second}, 2, nil)

			var wg sync.WaitGroup
			for i := 0; i < 6; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := lb.Fetch(context.Background(), scrape.Request{URL: "https://example.com"})
					Expect(err).NotTo(HaveOccurred())
				}()
			}

			Eventually(client.inFlight.Load).Should(Equal(int32(2)))
			Consistently(client.inFlight.Load, 100*time.Millisecond).Should(Equal(int32(2)))

			close(client.release)
			wg.Wait()

			Expect(client.calls.Load()).To(Equal(int32(6)))
			Expect(client.peak.Load()).To(Equal(int32(2)))
		})

		It("should give up waiting for a slot when the context ends", func() {
			client.release = make(chan struct{})
			defer close(client.release)
			lb := loadbalancer.NewLoadBalancer(strat, []*backend.Endpoint{first}, 1, nil)

			go lb.Fetch(context.Background(), scrape.Request{URL: "https://example.com/slow"})
			Eventually(client.inFlight.Load).Should(Equal(int32(1)))

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			_, err := lb.Fetch(ctx, scrape.Request{URL: "https://example.com/queued"})

			Expect(scrape.KindOf(err)).To(Equal(scrape.KindBackendTimeout))
			Expect(client.calls.Load()).To(Equal(int32(1)))
		})

		It("should emit selection and exchange metrics", func() {
			collector := metrics.NewCollector(16, slog.New(slog.NewTextHandler(io.Discard, nil)))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			collector.Start(ctx)

			lb := loadbalancer.NewLoadBalancer(strat, []*backend.Endpoint{first}, 0, collector)
			_, err := lb.Fetch(context.Background(), scrape.Request{URL: "https://example.com"})
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() int64 {
				return collector.Snapshot("").Backends["127.0.0.1:3001"].Exchanges
			}).Should(Equal(int64(1)))

			b := collector.Snapshot("").Backends["127.0.0.1:3001"]
			Expect(b.Selections).To(Equal(int64(1)))
			Expect(b.Outcomes).To(HaveKeyWithValue(metrics.OutcomeSuccess, int64(1)))
		})
	})

	Describe("HealthyEndpoints", func() {
		It("should list only healthy endpoints", func() {
			second.SetHealthy(false)
			lb := loadbalancer.NewLoadBalancer(strat, []*backend.Endpoint{first, second}, 0, nil)

			Expect(lb.HealthyEndpoints()).To(ConsistOf(first))
			Expect(lb.Endpoints()).To(HaveLen(2))
		})
	})
})
