package scrape_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/scrape-gateway/internal/scrape"
)

var _ = Describe("Error", func() {
	It("should include op, kind and cause in the message", func() {
		err := scrape.NewError(scrape.KindBackendIOFailed, "backend.read", errors.New("reset"))
		Expect(err.Error()).To(Equal("backend.read: backend_io_failed: reset"))
	})

	It("should unwrap to the cause", func() {
		cause := errors.New("boom")
		err := scrape.NewError(scrape.KindBackendConnectFailed, "dial", cause)
		Expect(errors.Is(err, cause)).To(BeTrue())
	})

	It("should match by kind through wrapping", func() {
		err := fmt.Errorf("outer: %w", scrape.NewError(scrape.KindMissingURL, "", nil))
		Expect(errors.Is(err, &scrape.Error{Kind: scrape.KindMissingURL})).To(BeTrue())
		Expect(errors.Is(err, &scrape.Error{Kind: scrape.KindBackendTimeout})).To(BeFalse())
	})

	DescribeTable("KindOf",
		func(err error, want scrape.Kind) {
			Expect(scrape.KindOf(err)).To(Equal(want))
		},
		Entry("nil", nil, scrape.KindUnknown),
		Entry("plain error", errors.New("x"), scrape.KindUnknown),
		Entry("typed", scrape.NewError(scrape.KindBackendReportedError, "", nil), scrape.KindBackendReportedError),
		Entry("wrapped typed", fmt.Errorf("w: %w", scrape.NewError(scrape.KindCompressionFailed, "", nil)), scrape.KindCompressionFailed),
		Entry("deadline", context.DeadlineExceeded, scrape.KindBackendTimeout),
		Entry("canceled", context.Canceled, scrape.KindCanceled),
	)

	Describe("FromContext", func() {
		It("should return nil for a live context", func() {
			Expect(scrape.FromContext(context.Background(), "op")).To(BeNil())
		})

		It("should report cancellation", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			Expect(scrape.FromContext(ctx, "op").Kind).To(Equal(scrape.KindCanceled))
		})

		It("should report deadlines as timeouts", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 0)
			defer cancel()
			<-ctx.Done()
			Expect(scrape.FromContext(ctx, "op").Kind).To(Equal(scrape.KindBackendTimeout))
		})
	})
})

var _ = Describe("Result", func() {
	It("should default the charset", func() {
		Expect((&scrape.Result{}).CharsetOrDefault()).To(Equal("utf-8"))
		Expect((&scrape.Result{Charset: "iso-8859-1"}).CharsetOrDefault()).To(Equal("iso-8859-1"))
	})
})
