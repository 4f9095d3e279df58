// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-sync-keeper/internal/logger"
	"golang.org/x/sync/errgroup"
)

type namedWorker struct {
	name   string
	worker Worker
}

// Workers runs a fixed set of workers concurrently.
type Workers struct {
	workers []namedWorker
	logger  *logger.Logger
}

// NewWorkers creates an empty Workers aggregate.
func NewWorkers(logger *logger.Logger) *Workers {
	return &Workers{logger: logger}
}

// Add registers a worker under name. Must be called before Run.
func (w *Workers) Add(name string, worker Worker) *Workers {
	w.workers = append(w.workers, namedWorker{name: name, worker: worker})
	return w
}

// Len returns the number of registered workers.
func (w *Workers) Len() int {
	return len(w.workers)
}

// Run starts every worker and blocks until all of them returned. The first
// worker error cancels the others and is returned. Cancellation of ctx is a
// clean shutdown and yields nil.
func (w *Workers) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, nw := range w.workers {
		g.Go(func() error {
			w.logger.Debug().Str("func", "Workers.Run").Str("worker", nw.name).Msg("worker started")

			err := nw.worker.Run(gctx)
			if err != nil && !isShutdown(gctx, err) {
				w.logger.Err(err).Str("func", "Workers.Run").Str("worker", nw.name).Msg("worker failed")
				return fmt.Errorf("worker %s: %w", nw.name, err)
			}

			w.logger.Debug().Str("func", "Workers.Run").Str("worker", nw.name).Msg("worker stopped")
			return nil
		})
	}

	return g.Wait()
}

func isShutdown(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
