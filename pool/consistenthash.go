package pool

import (
	"fmt"
	"hash/crc32"
	"sort"
	"sync"

	"github.com/yamayuski/kataribe/presence"
)

// ConsistentHashBalancer maps affinity keys onto a hash ring of virtual
// nodes, so the same key always resolves to the same instance as long as
// the ring membership doesn't change — useful for stateful services that
// benefit from per-peer cache locality.
//
// Unlike RoundRobinBalancer and WeightedRandomBalancer, picking requires
// an explicit key rather than just the instance list, so ConsistentHashBalancer
// does not itself implement Balancer; callers that want affinity call
// PickForKey directly after syncing the ring with the latest discovery
// result via Sync.
type ConsistentHashBalancer struct {
	replicas int

	mu    sync.Mutex
	ring  []uint32
	nodes map[uint32]presence.Instance
}

// NewConsistentHashBalancer creates a ring with 100 virtual nodes per
// instance, matching the uniformity the project's own hash ring used.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{replicas: 100, nodes: make(map[uint32]presence.Instance)}
}

// Sync rebuilds the ring from the current instance set. Call it after
// every presence.Discover/Watch update.
func (b *ConsistentHashBalancer) Sync(instances []presence.Instance) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ring = b.ring[:0]
	b.nodes = make(map[uint32]presence.Instance, len(instances)*b.replicas)
	for _, inst := range instances {
		for i := 0; i < b.replicas; i++ {
			key := fmt.Sprintf("%s#%d", inst.Addr, i)
			hash := crc32.ChecksumIEEE([]byte(key))
			b.ring = append(b.ring, hash)
			b.nodes[hash] = inst
		}
	}
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
}

// PickForKey finds the instance responsible for key by walking clockwise
// from key's hash to the first ring position at or past it, wrapping
// around to the start of the ring if key's hash exceeds every node.
func (b *ConsistentHashBalancer) PickForKey(key string) (*presence.Instance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.ring) == 0 {
		return nil, fmt.Errorf("pool: consistent hash ring is empty")
	}

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool { return b.ring[i] >= hash })
	if idx == len(b.ring) {
		idx = 0
	}
	inst := b.nodes[b.ring[idx]]
	return &inst, nil
}

func (b *ConsistentHashBalancer) Name() string { return "ConsistentHash" }
