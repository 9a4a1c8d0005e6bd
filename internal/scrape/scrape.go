package scrape

// DefaultCharset is used when the backend does not report one.
const DefaultCharset = "utf-8"

// Request is a validated scrape target. Only dispatcher.ParseTarget builds
// one, so URL is always non-empty with an http or https scheme.
type Request struct {
	URL string
}

// Result is a successful backend reply.
type Result struct {
	Content []byte
	Charset string
}

// CharsetOrDefault returns the reported charset or DefaultCharset.
func (r *Result) CharsetOrDefault() string {
	if r == nil || r.Charset == "" {
		return DefaultCharset
	}
	return r.Charset
}
