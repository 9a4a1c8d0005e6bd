package strategy

import (
	"sync/atomic"

	"github.com/angeloszaimis/scrape-gateway/internal/backend"
)

type roundRobinStrategy struct {
	current atomic.Uint64
}

func (rr *roundRobinStrategy) Select(endpoints []*backend.Endpoint, _ string) *backend.Endpoint {
	if len(endpoints) == 0 {
		return nil
	}

	n := rr.current.Add(1)
	return endpoints[(n-1)%uint64(len(endpoints))]
}

func NewRoundRobinStrategy() Strategy {
	return &roundRobinStrategy{}
}
