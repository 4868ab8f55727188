package orchestration

import (
	"context"
	"fmt"
)

type workerRun func(context.Context) error

func panicSafeNamedWorker(name string, run func(context.Context) error) workerRun {
	return func(ctx context.Context) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%s worker panicked: %v", name, recovered)
			}
		}()

		if err = run(ctx); err != nil {
			return fmt.Errorf("%s worker failed: %w", name, err)
		}

		return nil
	}
}

// goWorker runs a named worker in the background and logs its failure.
func (o *Orchestrator) goWorker(name string, run func(context.Context) error) {
	ctx := o.context()
	worker := panicSafeNamedWorker(name, run)

	o.workers.Add(1)
	go func() {
		defer o.workers.Done()
		if err := worker(ctx); err != nil {
			logger.ErrorContext(ctx, "background worker failed", "worker", name, "error", err)
		}
	}()
}
