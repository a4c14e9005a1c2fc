package farm

import "context"

// Resolve returns the first agent in source's catalog matching spec.
func Resolve(ctx context.Context, source CatalogSource, spec Spec) (Agent, error) {
	agents, err := source.Available(ctx)
	if err != nil {
		return Agent{}, err
	}
	for _, agent := range agents {
		if spec.Matches(agent) {
			return agent, nil
		}
	}
	return Agent{}, &UnresolvedAgentError{Spec: spec}
}
