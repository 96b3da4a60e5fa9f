package extraction

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchItem is the outcome for one document of a batch.
type BatchItem struct {
	Source Source
	Result *Result
	Err    error
}

// ProcessBatch runs the chain for every source with at most workers chains in
// flight. A failing document does not stop the others; results keep the
// order of sources.
func (o *Orchestrator) ProcessBatch(ctx context.Context, sources []Source, workers int) []BatchItem {
	if workers <= 0 {
		workers = 1
	}
	out := make([]BatchItem, len(sources))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			res, err := o.Run(ctx, src)
			out[i] = BatchItem{Source: src, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
