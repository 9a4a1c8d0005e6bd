package strategy

import (
	"math/rand/v2"

	"github.com/angeloszaimis/scrape-gateway/internal/backend"
)

type randomStrategy struct{}

func (r *randomStrategy) Select(endpoints []*backend.Endpoint, _ string) *backend.Endpoint {
	if len(endpoints) == 0 {
		return nil
	}
	return endpoints[rand.IntN(len(endpoints))]
}

func NewRandomStrategy() Strategy {
	return &randomStrategy{}
}
