// Package agentfarm is the entry point for driving remote browser farms.
// It selects a vendor adapter by name and exposes one API over all of
// them.
package agentfarm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/entrhq/bunyip/pkg/download"
	"github.com/entrhq/bunyip/pkg/farm"
	"github.com/entrhq/bunyip/pkg/farm/browserstack"
	"github.com/entrhq/bunyip/pkg/farm/saucelabs"
	"github.com/entrhq/bunyip/pkg/logging"
)

// Kind names a farm backend.
type Kind string

const (
	BrowserStack Kind = browserstack.Name
	SauceLabs    Kind = saucelabs.Name

	// DefaultKind is used when no farm is named.
	DefaultKind = SauceLabs
)

// Kinds lists the supported farms.
func Kinds() []Kind {
	return []Kind{BrowserStack, SauceLabs}
}

// ParseKind normalizes a farm name. An empty name selects DefaultKind.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultKind, nil
	}
	for _, k := range Kinds() {
		if string(k) == name {
			return k, nil
		}
	}
	return "", &ConfigurationError{Field: "farm", Reason: fmt.Sprintf("unknown farm %q", name)}
}

// ConfigurationError reports settings that make a farm unusable.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Options holds the credentials and knobs shared by all farms.
type Options struct {
	User string
	Pass string

	// TunnelKey overrides the BrowserStack tunnel key.
	TunnelKey string

	ToolsDir       string
	SessionTimeout time.Duration

	HTTPClient *http.Client
	Classifier farm.HostClassifier
	Progress   download.ProgressFunc
	Logger     *logging.Logger
}

// AgentFarm drives one farm through its adapter.
type AgentFarm struct {
	kind    Kind
	adapter farm.Adapter
}

// New builds the AgentFarm for kind. Missing credentials and unknown
// farms are configuration errors.
func New(kind Kind, opts Options) (*AgentFarm, error) {
	kind, err := ParseKind(string(kind))
	if err != nil {
		return nil, err
	}
	if opts.User == "" {
		return nil, &ConfigurationError{Field: "user", Reason: fmt.Sprintf("%s requires a username", kind)}
	}
	if opts.Pass == "" {
		return nil, &ConfigurationError{Field: "pass", Reason: fmt.Sprintf("%s requires an access key", kind)}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	var adapter farm.Adapter
	switch kind {
	case BrowserStack:
		adapter = browserstack.New(browserstack.Options{
			User:           opts.User,
			Pass:           opts.Pass,
			TunnelKey:      opts.TunnelKey,
			ToolsDir:       opts.ToolsDir,
			SessionTimeout: opts.SessionTimeout,
			HTTPClient:     opts.HTTPClient,
			Classifier:     opts.Classifier,
			Progress:       opts.Progress,
			Logger:         logger.With(string(kind)),
		})
	case SauceLabs:
		adapter = saucelabs.New(saucelabs.Options{
			User:       opts.User,
			Pass:       opts.Pass,
			ToolsDir:   opts.ToolsDir,
			HTTPClient: opts.HTTPClient,
			Classifier: opts.Classifier,
			Progress:   opts.Progress,
			Logger:     logger.With(string(kind)),
		})
	}
	return NewWithAdapter(kind, adapter), nil
}

// NewWithAdapter wraps an existing adapter.
func NewWithAdapter(kind Kind, adapter farm.Adapter) *AgentFarm {
	return &AgentFarm{kind: kind, adapter: adapter}
}

// Kind returns the selected farm.
func (f *AgentFarm) Kind() Kind {
	return f.kind
}

// Adapter returns the underlying adapter, e.g. to check for
// farm.RemoteInspector.
func (f *AgentFarm) Adapter() farm.Adapter {
	return f.adapter
}

// Resolve returns the first catalog entry matching spec.
func (f *AgentFarm) Resolve(ctx context.Context, spec farm.Spec) (farm.Agent, error) {
	return farm.Resolve(ctx, f.adapter, spec)
}

// Connect points one agent per spec at rawURL.
func (f *AgentFarm) Connect(ctx context.Context, rawURL string, specs ...farm.Spec) ([]farm.Result, error) {
	return f.adapter.Connect(ctx, rawURL, specs)
}

// Kill terminates one tracked worker.
func (f *AgentFarm) Kill(ctx context.Context, sessionID string) error {
	return f.adapter.Kill(ctx, sessionID)
}

// KillAll terminates every tracked worker.
func (f *AgentFarm) KillAll(ctx context.Context) error {
	return f.adapter.KillAll(ctx)
}

// Workers returns the tracked workers.
func (f *AgentFarm) Workers() []farm.Worker {
	return f.adapter.Workers()
}

// Exit releases everything the farm holds.
func (f *AgentFarm) Exit(ctx context.Context) error {
	return f.adapter.Exit(ctx)
}

// List returns the catalog, keeping entries whose ID or Name match the
// glob pattern. An empty pattern keeps everything.
func (f *AgentFarm) List(ctx context.Context, pattern string) ([]farm.Agent, error) {
	agents, err := f.adapter.Available(ctx)
	if err != nil {
		return nil, err
	}
	if pattern == "" {
		return agents, nil
	}

	g, err := glob.Compile(strings.ToLower(pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	var matched []farm.Agent
	for _, a := range agents {
		if g.Match(strings.ToLower(a.ID)) || g.Match(strings.ToLower(a.Name)) {
			matched = append(matched, a)
		}
	}
	return matched, nil
}
