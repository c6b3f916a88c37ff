// Package pool selects among the peers presence.Discover returns and
// hands back a connected runtime.Client for whichever one was chosen.
// Three balancing strategies are adapted from the project's own
// load-balancer package:
//
//   - RoundRobin: stateless services, equal-capacity instances
//   - WeightedRandom: heterogeneous instances (different capacity)
//   - ConsistentHash: stateful services that want affinity for a given key
package pool

import (
	"fmt"
	"math/rand"

	"github.com/yamayuski/kataribe/presence"
)

// Balancer picks one instance out of the currently discovered set. Pick
// is called on every dial attempt and must be goroutine-safe.
type Balancer interface {
	Pick(instances []presence.Instance) (*presence.Instance, error)
	Name() string
}

// RoundRobinBalancer cycles through instances in order using an atomic
// counter, so no lock is needed even under concurrent Pick calls.
type RoundRobinBalancer struct {
	counter uint64
}

func (b *RoundRobinBalancer) Pick(instances []presence.Instance) (*presence.Instance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("pool: no instances available")
	}
	idx := nextIndex(&b.counter, len(instances))
	return &instances[idx], nil
}

func (b *RoundRobinBalancer) Name() string { return "RoundRobin" }

// WeightedRandomBalancer picks randomly in proportion to each instance's
// advertised Weight.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(instances []presence.Instance) (*presence.Instance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("pool: no instances available")
	}

	total := 0
	for _, inst := range instances {
		total += inst.Weight
	}
	if total <= 0 {
		return &instances[rand.Intn(len(instances))], nil
	}

	r := rand.Intn(total)
	for i := range instances {
		r -= instances[i].Weight
		if r < 0 {
			return &instances[i], nil
		}
	}
	return nil, fmt.Errorf("pool: unexpected error in weighted random selection")
}

func (b *WeightedRandomBalancer) Name() string { return "WeightedRandom" }
