package metrics

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

// Handler serves the current snapshot as JSON.
func (c *Collector) Handler(strategy string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(c.metrics.Snapshot(strategy))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}
