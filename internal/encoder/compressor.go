package encoder

import (
	"bytes"
	"fmt"

	"github.com/andybalholm/brotli"
)

const (
	DefaultQuality = 6
	DefaultWindow  = 22
)

// Compressor compresses a complete response body.
type Compressor interface {
	Compress(body []byte) ([]byte, error)
	// Encoding is the Content-Encoding token the output is labelled with.
	Encoding() string
}

// Brotli compresses with github.com/andybalholm/brotli.
type Brotli struct {
	options brotli.WriterOptions
}

// NewBrotli returns a Brotli compressor. Zero values select the defaults.
func NewBrotli(quality, window int) *Brotli {
	if quality == 0 {
		quality = DefaultQuality
	}
	if window == 0 {
		window = DefaultWindow
	}

	return &Brotli{options: brotli.WriterOptions{Quality: quality, LGWin: window}}
}

func (b *Brotli) Encoding() string {
	return "br"
}

func (b *Brotli) Compress(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(body) / 2)

	w := brotli.NewWriterOptions(&buf, b.options)
	if _, err := w.Write(body); err != nil {
		w.Close()
		return nil, fmt.Errorf("brotli write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("brotli close: %w", err)
	}

	return buf.Bytes(), nil
}
