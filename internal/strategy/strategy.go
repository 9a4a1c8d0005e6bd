package strategy

import (
	"fmt"

	"github.com/angeloszaimis/scrape-gateway/internal/backend"
)

const (
	RoundRobin         = "round-robin"
	Random             = "random"
	LeastConn          = "least-conn"
	LeastResponse      = "least-response"
	ConsistentHash     = "consistent-hash"
	WeightedRoundRobin = "weighted-round-robin"
)

// Names lists every strategy accepted by New.
var Names = []string{RoundRobin, Random, LeastConn, LeastResponse, ConsistentHash, WeightedRoundRobin}

// Strategy picks one endpoint. key is the request's affinity key (the target
// URL); only hashing strategies use it. It returns nil when nothing can be
// picked.
type Strategy interface {
	Select(endpoints []*backend.Endpoint, key string) *backend.Endpoint
}

// New builds the named strategy.
func New(name string, virtualNodes int) (Strategy, error) {
	switch name {
	case RoundRobin:
		return NewRoundRobinStrategy(), nil
	case Random:
		return NewRandomStrategy(), nil
	case LeastConn:
		return NewLeastConnStrategy(), nil
	case LeastResponse:
		return NewLeastResponseStrategy(), nil
	case ConsistentHash:
		return NewConsistentHashStrategy(virtualNodes), nil
	case WeightedRoundRobin:
		return NewWeightedRoundRobinStrategy(), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}
