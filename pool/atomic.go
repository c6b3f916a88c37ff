package pool

import "sync/atomic"

func nextIndex(counter *uint64, n int) uint64 {
	return atomic.AddUint64(counter, 1) % uint64(n)
}
