package strategy

import (
	"github.com/angeloszaimis/scrape-gateway/internal/backend"
)

type leastConnStrategy struct{}

// Select returns the endpoint with the fewest in-flight exchanges; ties go to
// the earliest endpoint.
func (l *leastConnStrategy) Select(endpoints []*backend.Endpoint, _ string) *backend.Endpoint {
	var best *backend.Endpoint
	bestConns := 0

	for _, e := range endpoints {
		conns := e.ActiveConnections()
		if best == nil || conns < bestConns {
			best, bestConns = e, conns
		}
	}

	return best
}

func NewLeastConnStrategy() Strategy {
	return &leastConnStrategy{}
}
