package pool

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamayuski/kataribe/presence"
)

var testInstances = []presence.Instance{
	{Addr: ":9001", Weight: 10, Version: "1.0"},
	{Addr: ":9002", Weight: 5, Version: "1.0"},
	{Addr: ":9003", Weight: 10, Version: "1.0"},
}

func TestRoundRobinCyclesAndWraps(t *testing.T) {
	b := &RoundRobinBalancer{}

	results := make([]string, 3)
	for i := 0; i < 3; i++ {
		inst, err := b.Pick(testInstances)
		require.NoError(t, err)
		results[i] = inst.Addr
	}

	inst, err := b.Pick(testInstances)
	require.NoError(t, err)
	assert.Equal(t, results[0], inst.Addr)
}

func TestRoundRobinEmptyInstances(t *testing.T) {
	b := &RoundRobinBalancer{}
	_, err := b.Pick(nil)
	assert.Error(t, err)
}

func TestWeightedRandomRespectsWeightRatio(t *testing.T) {
	b := &WeightedRandomBalancer{}

	counts := map[string]int{}
	const n = 10000
	for i := 0; i < n; i++ {
		inst, err := b.Pick(testInstances)
		require.NoError(t, err)
		counts[inst.Addr]++
	}

	ratio := float64(counts[":9001"]) / float64(counts[":9002"])
	assert.InDelta(t, 2.0, ratio, 0.5, "weight ratio :9001/:9002 should be roughly 2:1")
}

func TestConsistentHashStableForSameKey(t *testing.T) {
	b := NewConsistentHashBalancer()
	b.Sync(testInstances)

	inst1, err := b.PickForKey("user-123")
	require.NoError(t, err)
	inst2, err := b.PickForKey("user-123")
	require.NoError(t, err)
	assert.Equal(t, inst1.Addr, inst2.Addr)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		inst, err := b.PickForKey(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		seen[inst.Addr] = true
	}
	assert.GreaterOrEqual(t, len(seen), 2)
}

func TestConsistentHashEmptyRing(t *testing.T) {
	b := NewConsistentHashBalancer()
	_, err := b.PickForKey("anything")
	assert.Error(t, err)
}
