package encoder

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/angeloszaimis/scrape-gateway/internal/dispatcher"
)

// Accepts reports whether an Accept-Encoding header value admits coding.
// An explicit q=0 refuses it; "*" matches anything not listed.
func Accepts(header, coding string) bool {
	wildcard := false

	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))

		switch name {
		case coding:
			return qualityOf(params) > 0
		case "*":
			wildcard = qualityOf(params) > 0
		}
	}

	return wildcard
}

func qualityOf(params string) float64 {
	for _, p := range strings.Split(params, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || strings.ToLower(strings.TrimSpace(key)) != "q" {
			continue
		}

		q, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0
		}
		return q
	}

	return 1
}

// WantsJSON reports whether the client asked for the JSON success object
// instead of raw HTML, via format=json or an Accept header.
func WantsJSON(r *http.Request) bool {
	if format, ok := dispatcher.Lookup(dispatcher.ParseQuery(r.URL.RawQuery), "format"); ok {
		return strings.EqualFold(format, "json")
	}

	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
