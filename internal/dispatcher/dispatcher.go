package dispatcher

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"golang.org/x/net/idna"

	"github.com/angeloszaimis/scrape-gateway/internal/scrape"
)

// TargetParam is the query parameter carrying the page to scrape.
const TargetParam = "url"

// Param is one decoded query pair.
type Param struct {
	Key   string
	Value string
}

// ParseQuery decodes a raw query string into pairs in the order they appear.
// Pairs whose escapes cannot be decoded keep their raw text.
func ParseQuery(raw string) []Param {
	var params []Param

	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if pair == "" {
			continue
		}

		key, value, _ := strings.Cut(pair, "=")
		params = append(params, Param{Key: unescape(key), Value: unescape(value)})
	}

	return params
}

// Lookup returns the first value for key.
func Lookup(params []Param, key string) (string, bool) {
	for _, p := range params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// ParseTarget returns the validated scrape target of r. A missing or blank
// url parameter is KindMissingURL; anything that is not an absolute http or
// https URL with a host is KindInvalidURLScheme.
func ParseTarget(r *http.Request) (scrape.Request, error) {
	raw, ok := Lookup(ParseQuery(r.URL.RawQuery), TargetParam)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return scrape.Request{}, scrape.NewError(scrape.KindMissingURL, "dispatcher.parse", nil)
	}

	if err := validateTarget(raw); err != nil {
		return scrape.Request{}, scrape.NewError(scrape.KindInvalidURLScheme, "dispatcher.parse", err)
	}

	return scrape.Request{URL: raw}, nil
}

func validateTarget(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return errors.New("url must use http or https scheme")
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	// Internationalized names are checked in their punycode form.
	host, err := idna.Punycode.ToASCII(u.Hostname())
	if err != nil {
		return err
	}

	return validation.Validate(host, validation.Required, is.Host)
}

func unescape(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}
