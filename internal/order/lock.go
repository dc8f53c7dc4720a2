package order

import (
	"sync"

	"github.com/gofrs/uuid"
)

const lockStripes = 64

// keyedMutex serializes work per order id inside one process. Unrelated
// orders only contend when they hash to the same stripe.
type keyedMutex struct {
	stripes [lockStripes]sync.Mutex
}

func (k *keyedMutex) lock(id uuid.UUID) (unlock func()) {
	m := &k.stripes[int(id[len(id)-1])%lockStripes]
	m.Lock()
	return m.Unlock
}
