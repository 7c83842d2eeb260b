package systems

import (
	"context"
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/math"
	"golang.org/x/sync/errgroup"
)

const maxWorkers = 64

// RecordTask records one command buffer. Tasks handed to the same Record call
// must not share a command buffer.
type RecordTask func(ctx context.Context) error

type JobSystem struct {
	numWorkers int
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")

func NewJobSystem(numWorkers int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	return &JobSystem{
		numWorkers: math.Clamp(numWorkers, 1, maxWorkers),
	}, nil
}

func (js *JobSystem) Workers() int { return js.numWorkers }

/**
 * @brief Runs tasks on at most Workers goroutines and waits for all of them.
 * A fatal assertion raised by a task is turned into its error, since it
 * cannot be recovered from the caller's goroutine.
 * @returns the first error returned by a task; the context passed to the
 * others is cancelled at that point.
 */
func (js *JobSystem) Record(ctx context.Context, tasks ...RecordTask) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(js.numWorkers)
	for _, task := range tasks {
		g.Go(func() (err error) {
			defer core.RecoverFatal(&err)
			if err := ctx.Err(); err != nil {
				return err
			}
			return task(ctx)
		})
	}
	return g.Wait()
}

/**
 * @brief Shuts the job system down.
 */
func (js *JobSystem) Shutdown() error {
	return nil
}
