// Package browserstack implements the farm adapter for BrowserStack's
// REST worker API.
package browserstack

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/entrhq/bunyip/pkg/download"
	"github.com/entrhq/bunyip/pkg/farm"
	"github.com/entrhq/bunyip/pkg/logging"
	"github.com/entrhq/bunyip/pkg/reach"
	"github.com/entrhq/bunyip/pkg/tunnel"
)

// Name is the farm name of this adapter.
const Name = "browserstack"

const (
	DefaultBaseURL        = "https://api.browserstack.com/3"
	DefaultTunnelURL      = "http://www.browserstack.com/BrowserStackTunnel.jar"
	DefaultSessionTimeout = 300 * time.Second
	DefaultToolsDir       = "tools"

	tunnelJar   = "BrowserStackTunnel.jar"
	tunnelGrace = 10 * time.Second
)

// Options configures an Adapter. Only User and Pass are required.
type Options struct {
	User string
	Pass string

	// TunnelKey authenticates the tunnel. Defaults to Pass.
	TunnelKey string

	ToolsDir       string
	SessionTimeout time.Duration

	BaseURL    string
	TunnelURL  string
	HTTPClient *http.Client

	Classifier farm.HostClassifier
	Launcher   tunnel.Launcher
	Processes  tunnel.ProcessLister
	Readiness  tunnel.Readiness

	// Progress receives tunnel download progress.
	Progress download.ProgressFunc

	Logger *logging.Logger
}

// Adapter drives BrowserStack workers.
type Adapter struct {
	api        *client
	opts       Options
	catalog    *farm.Catalog
	registry   *farm.Registry
	tunnel     *tunnel.Manager
	classifier farm.HostClassifier
	logger     *logging.Logger
}

var (
	_ farm.Adapter         = (*Adapter)(nil)
	_ farm.RemoteInspector = (*Adapter)(nil)
)

// New creates a BrowserStack adapter.
func New(opts Options) *Adapter {
	if opts.TunnelKey == "" {
		opts.TunnelKey = opts.Pass
	}
	if opts.ToolsDir == "" {
		opts.ToolsDir = DefaultToolsDir
	}
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = DefaultSessionTimeout
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.TunnelURL == "" {
		opts.TunnelURL = DefaultTunnelURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Classifier == nil {
		opts.Classifier = reach.NewClassifier()
	}
	if opts.Processes == nil {
		opts.Processes = tunnel.ListProcesses
	}
	if opts.Readiness == nil {
		opts.Readiness = tunnel.Delay{D: tunnelGrace}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	a := &Adapter{
		api: &client{
			baseURL: opts.BaseURL,
			user:    opts.User,
			pass:    opts.Pass,
			http:    opts.HTTPClient,
		},
		opts:       opts,
		registry:   farm.NewRegistry(),
		classifier: opts.Classifier,
		logger:     opts.Logger,
	}
	a.catalog = farm.NewCatalog(a.fetchCatalog)

	jar := filepath.Join(opts.ToolsDir, tunnelJar)
	a.tunnel = tunnel.NewManager(tunnel.Config{
		Name:       Name,
		BinaryPath: jar,
		Fetch:      a.fetchTunnel,
		Command: func(binaryPath string, target *url.URL) (string, []string) {
			return "java", []string{"-jar", binaryPath, opts.TunnelKey, tunnelHost(target)}
		},
		Readiness: opts.Readiness,
		Probe:     tunnel.ProcessProbe(opts.Processes, tunnelSignature),
		Launcher:  opts.Launcher,
		Logger:    opts.Logger.With("browserstack-tunnel"),
	})
	return a
}

// Name returns "browserstack".
func (a *Adapter) Name() string {
	return Name
}

// Available returns the normalized catalog, fetched once per adapter.
func (a *Adapter) Available(ctx context.Context) ([]farm.Agent, error) {
	return a.catalog.Get(ctx)
}

func (a *Adapter) fetchCatalog(ctx context.Context) ([]farm.Agent, error) {
	body, err := a.api.call(ctx, "browsers", http.MethodGet, "/browsers", url.Values{"flat": {"true"}})
	if err != nil {
		return nil, err
	}
	if !body.IsArray() {
		return nil, &farm.VendorAPIError{Vendor: Name, Op: "browsers", Message: "catalog is not a list"}
	}

	rows := body.Array()
	agents := make([]farm.Agent, 0, len(rows))
	for _, row := range rows {
		agents = append(agents, normalize(row))
	}
	a.logger.Debugf("Fetched %d agents", len(agents))
	return agents, nil
}

func (a *Adapter) fetchTunnel(ctx context.Context, dir string) error {
	_, err := download.Fetch(ctx, a.opts.TunnelURL, download.Options{
		Dir:      dir,
		FileName: tunnelJar,
		Client:   a.opts.HTTPClient,
		Progress: a.opts.Progress,
	})
	return err
}

// Connect exposes rawURL through the tunnel when it is local, then starts
// one worker per spec.
func (a *Adapter) Connect(ctx context.Context, rawURL string, specs []farm.Spec) ([]farm.Result, error) {
	target, err := a.tunnel.ExposeURL(ctx, rawURL, a.classifier)
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, nil
	}
	if _, err := a.Available(ctx); err != nil {
		return nil, err
	}
	return farm.ConnectAll(ctx, a, a.registry, target.String(), specs, a.startWorker), nil
}

func (a *Adapter) startWorker(ctx context.Context, agent farm.Agent, target string) (*farm.Worker, error) {
	params := url.Values{}
	params.Set("url", target)
	params.Set("timeout", strconv.Itoa(int(a.opts.SessionTimeout/time.Second)))
	for _, key := range []string{"browser", "browser_version", "os", "os_version", "device"} {
		if v := agent.Farm[key]; v != "" {
			params.Set(key, v)
		}
	}

	body, err := a.api.call(ctx, "worker", http.MethodPost, "/worker", params)
	if err != nil {
		return nil, err
	}
	id := body.Get("id").String()
	if id == "" {
		return nil, &farm.VendorAPIError{Vendor: Name, Op: "worker", Message: "response has no worker id"}
	}

	a.logger.Infof("Started worker %s: %s", id, agent)
	return &farm.Worker{SessionID: id, URL: target}, nil
}

// Kill terminates a tracked worker. Unknown ids are ignored.
func (a *Adapter) Kill(ctx context.Context, sessionID string) error {
	w, ok := a.registry.Get(sessionID)
	if !ok {
		return nil
	}
	if err := a.killWorker(ctx, w); err != nil {
		return err
	}
	a.registry.Remove(sessionID)
	return nil
}

func (a *Adapter) killWorker(ctx context.Context, w *farm.Worker) error {
	return a.KillRemote(ctx, w.SessionID)
}

// KillAll terminates every tracked worker.
func (a *Adapter) KillAll(ctx context.Context) error {
	return farm.KillAll(ctx, a.registry, a.killWorker)
}

// Workers returns the tracked workers.
func (a *Adapter) Workers() []farm.Worker {
	return a.registry.List()
}

// Exit kills all workers, stops the tunnel and forgets the catalog.
func (a *Adapter) Exit(ctx context.Context) error {
	killErr := a.KillAll(ctx)
	if err := a.tunnel.Close(); err != nil {
		a.logger.Warnf("Failed to stop tunnel: %v", err)
	}
	a.catalog.Reset()
	a.registry.Clear()
	return killErr
}

// TunnelState reports the tunnel provisioning state.
func (a *Adapter) TunnelState() tunnel.State {
	return a.tunnel.State()
}

// RemoteWorkers lists every worker the account has running.
func (a *Adapter) RemoteWorkers(ctx context.Context) ([]farm.RemoteWorker, error) {
	body, err := a.api.call(ctx, "workers", http.MethodGet, "/workers", nil)
	if err != nil {
		return nil, err
	}

	var workers []farm.RemoteWorker
	for _, w := range body.Array() {
		workers = append(workers, farm.RemoteWorker{
			ID:        w.Get("id").String(),
			Status:    w.Get("status").String(),
			Browser:   w.Get("browser").String(),
			Version:   w.Get("browser_version").String(),
			OS:        w.Get("os").String(),
			OSVersion: w.Get("os_version").String(),
		})
	}
	return workers, nil
}

// KillRemote deletes a worker whether or not this adapter started it.
func (a *Adapter) KillRemote(ctx context.Context, sessionID string) error {
	_, err := a.api.call(ctx, "kill", http.MethodDelete, "/worker/"+url.PathEscape(sessionID), nil)
	return err
}

// Status returns the account status document.
func (a *Adapter) Status(ctx context.Context) (map[string]any, error) {
	body, err := a.api.call(ctx, "status", http.MethodGet, "/status", nil)
	if err != nil {
		return nil, err
	}
	status, ok := body.Value().(map[string]any)
	if !ok {
		return nil, &farm.VendorAPIError{Vendor: Name, Op: "status", Message: "status is not an object"}
	}
	return status, nil
}

// tunnelHost is the host,port,tls triple the tunnel jar expects.
func tunnelHost(target *url.URL) string {
	return fmt.Sprintf("%s,%s,%s", target.Hostname(), tunnel.Port(target), tunnel.TLSFlag(target))
}

func tunnelSignature(target *url.URL) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(tunnelJar) + `.+?` + regexp.QuoteMeta(tunnelHost(target)))
}
