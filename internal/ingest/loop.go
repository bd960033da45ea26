package ingest

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Loop drains a Source with a fixed pool of workers, handing each event to
// the pipeline. There is no intra-sample parallelism; concurrency comes only
// from independent events being handled by different workers.
type Loop struct {
	source   Source
	pipeline *Pipeline
	workers  int
	log      *slog.Logger
}

const DefaultWorkers = 4

func NewLoop(source Source, pipeline *Pipeline, workers int, log *slog.Logger) *Loop {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Loop{source: source, pipeline: pipeline, workers: workers, log: log}
}

// Run blocks until the source's event channel closes or the context is
// canceled. Event handling errors are logged inside the pipeline, never
// returned; only context cancellation ends Run with an error.
func (l *Loop) Run(ctx context.Context) error {
	events := l.source.Events()

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < l.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gCtx.Done():
					return gCtx.Err()
				case ev, ok := <-events:
					if !ok {
						return nil
					}
					l.pipeline.HandleEvent(gCtx, ev)
				}
			}
		})
	}

	err := g.Wait()
	if err != nil && err != context.Canceled {
		return err
	}
	l.log.Info("ingest loop stopped")
	return nil
}
