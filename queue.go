package depresolve

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// defaultBuildOperationQueue is the [BuildOperationQueue] used when a [GraphBuilder] does not
// supply its own: every enqueued task runs in its own goroutine under an [errgroup.Group],
// fanning out independent work and collecting the first error across a context-bound group.
type defaultBuildOperationQueue struct{}

func (defaultBuildOperationQueue) RunAll(ctx context.Context, produce func(enqueue func(task func(context.Context) error))) error {
	gr, gctx := errgroup.WithContext(ctx)
	produce(func(task func(context.Context) error) {
		gr.Go(func() error { return task(gctx) })
	})
	return gr.Wait()
}
