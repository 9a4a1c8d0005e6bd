package encoder_test

import (
	"bytes"
	"io"
	"math/rand"

	"github.com/andybalholm/brotli"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/scrape-gateway/internal/encoder"
)

func decompress(data []byte) []byte {
	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	Expect(err).NotTo(HaveOccurred())
	return out
}

var _ = Describe("Brotli", func() {
	It("should label output as br", func() {
		Expect(encoder.NewBrotli(0, 0).Encoding()).To(Equal("br"))
	})

	DescribeTable("should round trip arbitrary bytes",
		func(size int, quality, window int) {
			input := make([]byte, size)
			rand.New(rand.NewSource(int64(size))).Read(input)

			compressed, err := encoder.NewBrotli(quality, window).Compress(input)
			Expect(err).NotTo(HaveOccurred())
			Expect(decompress(compressed)).To(Equal(input))
		},
		Entry("empty", 0, 0, 0),
		Entry("one byte", 1, 0, 0),
		Entry("small page", 4<<10, 6, 22),
		Entry("larger than a chunk", 200<<10, 6, 22),
		Entry("fast settings", 64<<10, 1, 16),
		Entry("best settings", 64<<10, 11, 24),
	)

	It("should shrink repetitive html", func() {
		page := bytes.Repeat([]byte("<p>hello world</p>\n"), 1000)

		compressed, err := encoder.NewBrotli(0, 0).Compress(page)
		Expect(err).NotTo(HaveOccurred())
		Expect(len(compressed)).To(BeNumerically("<", len(page)/10))
	})
})
