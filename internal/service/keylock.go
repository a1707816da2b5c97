package service

import (
	"sync"

	"github.com/google/uuid"
)

const lockStripes = 256

// keyLock serializes work per product id over a fixed set of mutexes.
// Distinct ids may share a stripe; the same id always maps to the same one.
type keyLock struct {
	stripes [lockStripes]sync.Mutex
}

// Lock acquires the stripe for id and returns its release func.
func (k *keyLock) Lock(id uuid.UUID) func() {
	m := &k.stripes[stripe(id)]
	m.Lock()
	return m.Unlock
}

func stripe(id uuid.UUID) int {
	var h uint32 = 2166136261
	for _, b := range id {
		h ^= uint32(b)
		h *= 16777619
	}
	return int(h % lockStripes)
}
