// Package farm defines the farm-independent model shared by every remote
// browser farm adapter.
//
// # Agents
//
// An Agent is a browser/OS/version combination in canonical form. Each
// adapter builds its catalog by normalizing the vendor's own names
// through static lookup tables; names missing from a table pass through
// unchanged. Agent.Farm keeps the vendor vocabulary needed to request the
// agent again.
//
// # Resolution
//
// A Spec is a partial Agent. Resolve returns the first catalog entry whose
// fields equal every field present in the Spec, so catalog order decides
// between ambiguous matches:
//
//	agent, err := farm.Resolve(ctx, adapter, farm.ParseSpec("chrome"))
//
// # Workers
//
// A Worker is a live remote session. Adapters keep their workers in a
// Registry, which is what Exit drains when the run ends.
package farm
