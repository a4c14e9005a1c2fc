package farm

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/iter"
	"github.com/sourcegraph/conc/pool"
)

// StartFunc opens a session for a resolved agent at target and returns
// the worker to track. StartedAt and URL are filled in by ConnectAll when
// left empty.
type StartFunc func(ctx context.Context, agent Agent, target string) (*Worker, error)

// ConnectAll resolves and starts every spec concurrently. Each spec gets
// its own Result in input order; a failing spec never affects the others.
// Successful workers are added to registry.
func ConnectAll(ctx context.Context, source CatalogSource, registry *Registry, target string, specs []Spec, start StartFunc) []Result {
	return iter.Map(specs, func(spec *Spec) Result {
		result := Result{Spec: *spec}

		agent, err := Resolve(ctx, source, *spec)
		if err != nil {
			result.Err = err
			return result
		}
		result.Agent = agent

		worker, err := start(ctx, agent, target)
		if err != nil {
			result.Err = fmt.Errorf("%s: %w", agent, err)
			return result
		}
		if worker.URL == "" {
			worker.URL = target
		}
		if worker.StartedAt.IsZero() {
			worker.StartedAt = time.Now()
		}
		worker.Agent = agent

		registry.Add(worker)
		result.Worker = worker
		return result
	})
}

// KillFunc terminates one worker's remote session.
type KillFunc func(ctx context.Context, w *Worker) error

// KillAll kills every worker in registry concurrently and waits for all
// of them. Every worker is removed whether or not its kill succeeded; the
// failures are joined into the returned error.
func KillAll(ctx context.Context, registry *Registry, kill KillFunc) error {
	p := pool.New().WithErrors()
	for _, id := range registry.IDs() {
		w, ok := registry.Get(id)
		if !ok {
			continue
		}
		p.Go(func() error {
			defer registry.Remove(w.SessionID)
			if err := kill(ctx, w); err != nil {
				return fmt.Errorf("kill %s: %w", w.SessionID, err)
			}
			return nil
		})
	}
	return p.Wait()
}
