package headless

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

// Submission is a snapshot of one ExecuteCommandLists call. Commands are
// copied so the lists can be reset and reused afterwards.
type Submission struct {
	ListIDs  []int
	Commands [][]Command
}

// Barriers flattens every barrier of the submission, in GPU order.
func (s Submission) Barriers() []gpu.Barrier {
	var out []gpu.Barrier
	for _, cmds := range s.Commands {
		for _, c := range cmds {
			if c.Op == OpBarrier {
				out = append(out, c.Barriers...)
			}
		}
	}
	return out
}

type Queue struct {
	device      *Device
	mu          sync.Mutex
	submissions []Submission
}

func (q *Queue) ExecuteCommandLists(lists []gpu.CommandList) error {
	if err := q.device.err(); err != nil {
		return err
	}
	sub := Submission{}
	for _, l := range lists {
		cl, ok := l.(*CommandList)
		if !ok {
			return fmt.Errorf("command list %T does not belong to the headless device", l)
		}
		if !cl.closed {
			return fmt.Errorf("command list %d: %w", cl.id, gpu.ErrCommandListOpen)
		}
		sub.ListIDs = append(sub.ListIDs, cl.id)
		sub.Commands = append(sub.Commands, append([]Command(nil), cl.commands...))
	}
	q.mu.Lock()
	q.submissions = append(q.submissions, sub)
	q.mu.Unlock()
	return nil
}

func (q *Queue) Signal(fence gpu.Fence, value uint64) error {
	if err := q.device.err(); err != nil {
		return err
	}
	f, ok := fence.(*Fence)
	if !ok {
		return fmt.Errorf("fence %T does not belong to the headless device", fence)
	}
	f.signal(value)
	if q.device.opts.AutoComplete {
		f.Complete(value)
	}
	return nil
}

// Submissions returns every ExecuteCommandLists call so far.
func (q *Queue) Submissions() []Submission {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Submission(nil), q.submissions...)
}

// Barriers flattens the barriers of every submission, in submission order.
func (q *Queue) Barriers() []gpu.Barrier {
	var out []gpu.Barrier
	for _, s := range q.Submissions() {
		out = append(out, s.Barriers()...)
	}
	return out
}

// Clear forgets recorded submissions.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.submissions = nil
	q.mu.Unlock()
}
