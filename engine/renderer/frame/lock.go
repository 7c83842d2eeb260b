package frame

import "sync"

type LockGroup string

const (
	CommandBufferManagement   LockGroup = "command_buffer_management"
	QueueManagement           LockGroup = "queue_management"
	SynchronizationManagement LockGroup = "synchronization_management"
)

// LockPool hands out one mutex per LockGroup, created on first use.
type LockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex // Protects access to the locks map
}

func NewLockPool() *LockPool {
	return &LockPool{
		locks: make(map[LockGroup]*sync.Mutex),
	}
}

// Get or create a mutex for a specific group
func (lp *LockPool) lock(group LockGroup) *sync.Mutex {
	lp.mu.Lock()
	l, exists := lp.locks[group]
	if !exists {
		l = &sync.Mutex{}
		lp.locks[group] = l
	}
	lp.mu.Unlock()

	l.Lock()
	return l
}

// SafeCall runs fn while holding the mutex of group.
func (lp *LockPool) SafeCall(group LockGroup, fn func() error) error {
	l := lp.lock(group)
	defer l.Unlock()

	return fn()
}
