package usecase

import (
	"hash/fnv"
	"sync"
)

// stripedLock serializes work per intent without holding one mutex per
// intent id forever. 64 stripes is plenty for the write rates involved.
type stripedLock struct {
	mus [64]sync.Mutex
}

// intentLocks is the single process-wide lock set. All use cases go through
// it so a Confirm, a Cancel and a verify transition on the same intent
// serialize against each other, not just against their own kind.
var intentLocks stripedLock

func (s *stripedLock) lock(key string) func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	mu := &s.mus[h.Sum32()%uint32(len(s.mus))]
	mu.Lock()
	return mu.Unlock
}
