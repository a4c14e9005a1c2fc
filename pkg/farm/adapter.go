package farm

import "context"

// HostClassifier decides whether a host is only reachable locally.
type HostClassifier interface {
	IsLocal(ctx context.Context, host string) (bool, error)
}

// CatalogSource provides a normalized agent catalog.
type CatalogSource interface {
	Available(ctx context.Context) ([]Agent, error)
}

// Adapter is the capability set every farm backend exposes.
type Adapter interface {
	CatalogSource

	// Name returns the farm name, e.g. "browserstack".
	Name() string

	// Connect points one agent per spec at rawURL, exposing a local
	// server through the farm's tunnel first when needed. It returns one
	// Result per spec, in spec order. The error is reserved for failures
	// shared by every agent, such as tunnel provisioning.
	Connect(ctx context.Context, rawURL string, specs []Spec) ([]Result, error)

	// Kill terminates a tracked session. Unknown sessions are ignored.
	Kill(ctx context.Context, sessionID string) error

	// KillAll terminates every tracked session and empties the registry.
	KillAll(ctx context.Context) error

	// Workers returns the tracked sessions.
	Workers() []Worker

	// Exit kills all workers, stops the tunnel and drops cached state.
	Exit(ctx context.Context) error
}

// RemoteInspector is implemented by adapters whose vendor API can list
// and terminate sessions this process did not start.
type RemoteInspector interface {
	RemoteWorkers(ctx context.Context) ([]RemoteWorker, error)
	KillRemote(ctx context.Context, sessionID string) error
	Status(ctx context.Context) (map[string]any, error)
}

// RemoteWorker is a session as reported by the vendor.
type RemoteWorker struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Browser   string `json:"browser"`
	Version   string `json:"browser_version"`
	OS        string `json:"os"`
	OSVersion string `json:"os_version"`
}
