package headless

import (
	"fmt"
	"sync"
	"time"

	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

type waiter struct {
	value uint64
	done  chan struct{}
}

// Fence is a CPU fence. Complete plays the role of the GPU.
type Fence struct {
	mu        sync.Mutex
	completed uint64
	signalled uint64
	waiters   []waiter
}

func NewFence(initial uint64) *Fence {
	return &Fence{completed: initial, signalled: initial}
}

func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// SignalledValue returns the last value the queue asked the fence to reach.
func (f *Fence) SignalledValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signalled
}

func (f *Fence) Wait(value uint64, timeout time.Duration) error {
	f.mu.Lock()
	if f.completed >= value {
		f.mu.Unlock()
		return nil
	}
	w := waiter{value: value, done: make(chan struct{})}
	f.waiters = append(f.waiters, w)
	f.mu.Unlock()

	if timeout <= 0 {
		<-w.done
		return nil
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-w.done:
		return nil
	case <-t.C:
		return fmt.Errorf("%w: waiting for %d, completed %d", gpu.ErrFenceTimeout, value, f.CompletedValue())
	}
}

// Complete marks every value up to value as done and wakes the waiters.
// Values never go backwards.
func (f *Fence) Complete(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value > f.completed {
		f.completed = value
	}
	pending := f.waiters[:0]
	for _, w := range f.waiters {
		if w.value <= f.completed {
			close(w.done)
			continue
		}
		pending = append(pending, w)
	}
	f.waiters = pending
}

// CompleteAll completes the last signalled value.
func (f *Fence) CompleteAll() {
	f.Complete(f.SignalledValue())
}

func (f *Fence) signal(value uint64) {
	f.mu.Lock()
	if value > f.signalled {
		f.signalled = value
	}
	f.mu.Unlock()
}
