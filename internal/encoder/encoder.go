package encoder

import (
	"errors"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/angeloszaimis/scrape-gateway/internal/scrape"
)

const DefaultChunkSize = 64 << 10

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Options struct {
	// Compress enables content encoding for clients that accept it.
	Compress  bool
	ChunkSize int
}

type Encoder struct {
	compressor Compressor
	compress   bool
	chunkSize  int
}

// New returns an Encoder. A nil compressor disables compression.
func New(compressor Compressor, opts Options) *Encoder {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &Encoder{
		compressor: compressor,
		compress:   opts.Compress && compressor != nil,
		chunkSize:  chunkSize,
	}
}

type successBody struct {
	Status  string `json:"status"`
	Content string `json:"content"`
	Charset string `json:"charset"`
}

type errorBody struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// WriteContent writes result as a 200 response. Compression happens before
// anything is written, so a KindCompressionFailed error leaves w untouched.
// Any later failure is a KindResponseWriteFailed error.
func (e *Encoder) WriteContent(w http.ResponseWriter, r *http.Request, result *scrape.Result) error {
	charset := result.CharsetOrDefault()
	body := result.Content
	contentType := "text/html; charset=" + charset

	if WantsJSON(r) {
		encoded, err := json.Marshal(successBody{
			Status:  "success",
			Content: string(result.Content),
			Charset: charset,
		})
		if err != nil {
			return scrape.NewError(scrape.KindCompressionFailed, "encoder.json", err)
		}
		body = encoded
		contentType = "application/json"
	}

	encoding := ""
	if e.compress && Accepts(r.Header.Get("Accept-Encoding"), e.compressor.Encoding()) {
		compressed, err := e.compressor.Compress(body)
		if err != nil {
			return scrape.NewError(scrape.KindCompressionFailed, "encoder.compress", err)
		}
		body = compressed
		encoding = e.compressor.Encoding()
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Add("Vary", "Accept-Encoding")
	if encoding != "" {
		h.Set("Content-Encoding", encoding)
	}
	w.WriteHeader(http.StatusOK)

	return e.stream(w, body)
}

// WriteError writes the JSON error object with status.
func (e *Encoder) WriteError(w http.ResponseWriter, status int, message string) error {
	return e.WriteJSON(w, status, errorBody{Status: "error", Error: message})
}

// WriteJSON writes v as an uncompressed JSON response.
func (e *Encoder) WriteJSON(w http.ResponseWriter, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return scrape.NewError(scrape.KindResponseWriteFailed, "encoder.json", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)

	if _, err := w.Write(body); err != nil {
		return scrape.NewError(scrape.KindResponseWriteFailed, "encoder.write", err)
	}
	return nil
}

func (e *Encoder) stream(w http.ResponseWriter, body []byte) error {
	rc := http.NewResponseController(w)

	for len(body) > 0 {
		n := min(e.chunkSize, len(body))
		if _, err := w.Write(body[:n]); err != nil {
			return scrape.NewError(scrape.KindResponseWriteFailed, "encoder.write", err)
		}
		body = body[n:]

		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return scrape.NewError(scrape.KindResponseWriteFailed, "encoder.flush", err)
		}
	}

	return nil
}
