package strategy

import (
	"time"

	"github.com/angeloszaimis/scrape-gateway/internal/backend"
)

type leastResponseStrategy struct{}

// Select scores each endpoint as EWMA latency times (in-flight + 1). An
// endpoint with no samples yet is tried first.
func (l *leastResponseStrategy) Select(endpoints []*backend.Endpoint, _ string) *backend.Endpoint {
	var chosen *backend.Endpoint
	var best time.Duration

	for _, e := range endpoints {
		ewma := e.EWMATime()
		if ewma == 0 {
			return e
		}

		score := ewma * (time.Duration(e.ActiveConnections()) + 1)
		if chosen == nil || score < best {
			chosen, best = e, score
		}
	}

	return chosen
}

func NewLeastResponseStrategy() Strategy {
	return &leastResponseStrategy{}
}
