package strategy

import (
	"sync"

	"github.com/angeloszaimis/scrape-gateway/internal/backend"
)

// weightedRoundRobinStrategy implements smooth weighted round-robin (the
// Nginx algorithm): each endpoint accumulates its weight per pick, the
// highest running value wins and is then reduced by the total weight.
type weightedRoundRobinStrategy struct {
	mutex   sync.Mutex
	current map[*backend.Endpoint]int
}

func NewWeightedRoundRobinStrategy() Strategy {
	return &weightedRoundRobinStrategy{
		current: make(map[*backend.Endpoint]int),
	}
}

func (w *weightedRoundRobinStrategy) Select(endpoints []*backend.Endpoint, _ string) *backend.Endpoint {
	if len(endpoints) == 0 {
		return nil
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.forgetMissing(endpoints)

	totalWeight := 0
	var chosen *backend.Endpoint

	for _, e := range endpoints {
		weight := e.Weight()
		if weight <= 0 {
			continue
		}

		w.current[e] += weight
		totalWeight += weight

		if chosen == nil || w.current[e] > w.current[chosen] {
			chosen = e
		}
	}

	if chosen == nil {
		return nil
	}

	w.current[chosen] -= totalWeight
	return chosen
}

// forgetMissing drops running values of endpoints that are no longer offered,
// so an endpoint returning from an outage starts from zero.
func (w *weightedRoundRobinStrategy) forgetMissing(endpoints []*backend.Endpoint) {
	offered := make(map[*backend.Endpoint]struct{}, len(endpoints))
	for _, e := range endpoints {
		offered[e] = struct{}{}
	}

	for e := range w.current {
		if _, ok := offered[e]; !ok {
			delete(w.current, e)
		}
	}
}
