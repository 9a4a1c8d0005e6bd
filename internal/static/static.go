// Package static serves files from a directory for requests the router does
// not otherwise handle.
package static

import (
	"net/http"
	"path/filepath"
	"strings"
)

// Handler serves files under root.
type Handler struct {
	root     string
	notFound http.Handler
}

// New returns a Handler for root. notFound answers rejected paths and
// defaults to http.NotFound.
func New(root string, notFound http.Handler) *Handler {
	if notFound == nil {
		notFound = http.HandlerFunc(http.NotFound)
	}
	return &Handler{root: root, notFound: notFound}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if HasTraversal(r) {
		h.notFound.ServeHTTP(w, r)
		return
	}

	name := filepath.Join(h.root, filepath.FromSlash(r.URL.Path))
	http.ServeFile(w, r, name)
}

// HasTraversal reports whether the request path contains "..", either as
// sent or after decoding. The query is not inspected.
func HasTraversal(r *http.Request) bool {
	return strings.Contains(r.URL.Path, "..") ||
		strings.Contains(r.URL.RawPath, "..")
}
