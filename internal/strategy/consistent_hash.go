package strategy

import (
	"hash/crc32"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/angeloszaimis/scrape-gateway/internal/backend"
)

const defaultVirtualNodes = 100

// consistentHashStrategy maps a key onto a crc32 ring of virtual nodes. The
// ring is rebuilt whenever the set of endpoints offered to Select changes,
// e.g. after a health transition.
type consistentHashStrategy struct {
	virtualNodes int
	mutex        sync.Mutex
	ring         *ring
}

type ring struct {
	signature string
	positions []uint32
	owners    map[uint32]*backend.Endpoint
}

func buildRing(endpoints []*backend.Endpoint, vnodes int, signature string) *ring {
	r := &ring{
		signature: signature,
		positions: make([]uint32, 0, len(endpoints)*vnodes),
		owners:    make(map[uint32]*backend.Endpoint, len(endpoints)*vnodes),
	}

	for _, e := range endpoints {
		for i := 0; i < vnodes; i++ {
			hash := crc32.ChecksumIEEE([]byte(e.Address() + "#" + strconv.Itoa(i)))
			if _, taken := r.owners[hash]; taken {
				continue
			}
			r.positions = append(r.positions, hash)
			r.owners[hash] = e
		}
	}

	sort.Slice(r.positions, func(i, j int) bool { return r.positions[i] < r.positions[j] })
	return r
}

func (r *ring) lookup(hash uint32) *backend.Endpoint {
	if len(r.positions) == 0 {
		return nil
	}

	idx := sort.Search(len(r.positions), func(i int) bool {
		return r.positions[i] >= hash
	})
	if idx == len(r.positions) {
		idx = 0
	}

	return r.owners[r.positions[idx]]
}

func (s *consistentHashStrategy) Select(endpoints []*backend.Endpoint, key string) *backend.Endpoint {
	if len(endpoints) == 0 {
		return nil
	}

	signature := ringSignature(endpoints)

	s.mutex.Lock()
	if s.ring == nil || s.ring.signature != signature {
		s.ring = buildRing(endpoints, s.virtualNodes, signature)
	}
	r := s.ring
	s.mutex.Unlock()

	return r.lookup(crc32.ChecksumIEEE([]byte(key)))
}

func ringSignature(endpoints []*backend.Endpoint) string {
	addrs := make([]string, len(endpoints))
	for i, e := range endpoints {
		addrs[i] = e.Address()
	}
	sort.Strings(addrs)
	return strings.Join(addrs, ",")
}

func NewConsistentHashStrategy(virtualNodes int) Strategy {
	if virtualNodes <= 0 {
		virtualNodes = defaultVirtualNodes
	}
	return &consistentHashStrategy{virtualNodes: virtualNodes}
}
