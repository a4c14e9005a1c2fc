// Package saucelabs implements the farm adapter for SauceLabs, driving
// sessions through a remote WebDriver hub.
package saucelabs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/tebeka/selenium"

	"github.com/entrhq/bunyip/pkg/download"
	"github.com/entrhq/bunyip/pkg/farm"
	"github.com/entrhq/bunyip/pkg/logging"
	"github.com/entrhq/bunyip/pkg/reach"
	"github.com/entrhq/bunyip/pkg/tunnel"
)

// Name is the farm name of this adapter.
const Name = "saucelabs"

const (
	DefaultBaseURL   = "https://saucelabs.com/rest/v1"
	DefaultHubURL    = "http://ondemand.saucelabs.com:80/wd/hub"
	DefaultTunnelURL = "http://saucelabs.com/downloads/Sauce-Connect-latest.zip"
	DefaultToolsDir  = "tools"

	DefaultReadyInterval = 500 * time.Millisecond
	DefaultReadyTimeout  = 60 * time.Second

	tunnelJar    = "Sauce-Connect.jar"
	readyMarker  = "sauce.pid"
	tunnelLog    = "sauce.log"
	sessionLabel = "bunyip"
)

var tunnelSignature = regexp.MustCompile(regexp.QuoteMeta(tunnelJar))

// Dialer opens a WebDriver session on a hub.
type Dialer func(caps selenium.Capabilities, hubURL string) (selenium.WebDriver, error)

// Options configures an Adapter. Only User and Pass are required.
type Options struct {
	User string
	Pass string

	ToolsDir string

	BaseURL    string
	HubURL     string
	TunnelURL  string
	HTTPClient *http.Client

	// SessionName labels sessions in the SauceLabs dashboard.
	SessionName string

	Dialer     Dialer
	Classifier farm.HostClassifier
	Launcher   tunnel.Launcher
	Processes  tunnel.ProcessLister

	ReadyInterval time.Duration
	ReadyTimeout  time.Duration

	// Progress receives tunnel download progress.
	Progress download.ProgressFunc

	Logger *logging.Logger
}

// Adapter drives SauceLabs WebDriver sessions.
type Adapter struct {
	api        *client
	opts       Options
	hub        string
	catalog    *farm.Catalog
	registry   *farm.Registry
	tunnel     *tunnel.Manager
	classifier farm.HostClassifier
	logger     *logging.Logger
}

var _ farm.Adapter = (*Adapter)(nil)

// New creates a SauceLabs adapter.
func New(opts Options) *Adapter {
	if opts.ToolsDir == "" {
		opts.ToolsDir = DefaultToolsDir
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HubURL == "" {
		opts.HubURL = DefaultHubURL
	}
	if opts.TunnelURL == "" {
		opts.TunnelURL = DefaultTunnelURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.SessionName == "" {
		opts.SessionName = sessionLabel
	}
	if opts.Dialer == nil {
		opts.Dialer = selenium.NewRemote
	}
	if opts.Classifier == nil {
		opts.Classifier = reach.NewClassifier()
	}
	if opts.Processes == nil {
		opts.Processes = tunnel.ListProcesses
	}
	if opts.ReadyInterval <= 0 {
		opts.ReadyInterval = DefaultReadyInterval
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	a := &Adapter{
		api: &client{
			baseURL: opts.BaseURL,
			user:    opts.User,
			key:     opts.Pass,
			http:    opts.HTTPClient,
		},
		opts:       opts,
		hub:        hubURL(opts.HubURL, opts.User, opts.Pass),
		registry:   farm.NewRegistry(),
		classifier: opts.Classifier,
		logger:     opts.Logger,
	}
	a.catalog = farm.NewCatalog(a.fetchCatalog)

	jar := filepath.Join(opts.ToolsDir, tunnelJar)
	marker := filepath.Join(opts.ToolsDir, readyMarker)
	logFile := filepath.Join(opts.ToolsDir, tunnelLog)
	a.tunnel = tunnel.NewManager(tunnel.Config{
		Name:       Name,
		BinaryPath: jar,
		Fetch:      a.fetchTunnel,
		Command: func(binaryPath string, _ *url.URL) (string, []string) {
			return "java", []string{"-jar", binaryPath, opts.User, opts.Pass, "-f", marker, "-l", logFile}
		},
		Prepare: func() error {
			if err := os.Remove(marker); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to remove stale %s: %w", readyMarker, err)
			}
			return nil
		},
		Readiness: tunnel.MarkerFile{
			Path:     marker,
			Interval: opts.ReadyInterval,
			Timeout:  opts.ReadyTimeout,
		},
		Probe: tunnel.ProcessProbe(opts.Processes, func(*url.URL) *regexp.Regexp {
			return tunnelSignature
		}),
		Launcher: opts.Launcher,
		Logger:   opts.Logger.With("saucelabs-tunnel"),
	})
	return a
}

// hubURL embeds the credentials into the hub address.
func hubURL(raw, user, key string) string {
	u, err := url.Parse(raw)
	if err != nil || user == "" {
		return raw
	}
	u.User = url.UserPassword(user, key)
	return u.String()
}

// Name returns "saucelabs".
func (a *Adapter) Name() string {
	return Name
}

// Available returns the normalized catalog, fetched once per adapter.
func (a *Adapter) Available(ctx context.Context) ([]farm.Agent, error) {
	return a.catalog.Get(ctx)
}

func (a *Adapter) fetchCatalog(ctx context.Context) ([]farm.Agent, error) {
	body, err := a.api.get(ctx, "browsers", "/info/browsers/webdriver")
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

// fetchTunnel downloads the Sauce Connect archive, unpacks the jar and
// drops the archive.
func (a *Adapter) fetchTunnel(ctx context.Context, dir string) error {
	file, err := download.Fetch(ctx, a.opts.TunnelURL, download.Options{
		Dir:      dir,
		Client:   a.opts.HTTPClient,
		Progress: a.opts.Progress,
	})
	if err != nil {
		return err
	}
	archive := file.FullPath()

	a.logger.Infof("Unpacking: %s. Wait...", file.Name)
	_, extractErr := download.ExtractFile(archive, tunnelJar, dir)
	if err := os.Remove(archive); err != nil {
		a.logger.Warnf("Failed to remove %s: %v", archive, err)
	}
	return extractErr
}

// Connect exposes rawURL through Sauce Connect when it is local, then
// opens one WebDriver session per spec and navigates it to the URL.
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
	return farm.ConnectAll(ctx, a, a.registry, target.String(), specs, a.startSession), nil
}

func (a *Adapter) startSession(ctx context.Context, agent farm.Agent, target string) (*farm.Worker, error) {
	caps := selenium.Capabilities{
		"browserName": agent.Farm["browserName"],
		"version":     agent.Farm["version"],
		"platform":    agent.Farm["platform"],
		"name":        a.opts.SessionName,
	}

	a.logger.Infof("%s requested.", agent)
	driver, err := a.opts.Dialer(caps, a.hub)
	if err != nil {
		return nil, &farm.VendorAPIError{Vendor: Name, Op: "session", Err: err}
	}
	if err := ctx.Err(); err != nil {
		_ = driver.Quit()
		return nil, err
	}
	if err := driver.Get(target); err != nil {
		_ = driver.Quit()
		return nil, &farm.VendorAPIError{Vendor: Name, Op: "navigate", Err: err}
	}

	return &farm.Worker{SessionID: driver.SessionID(), URL: target, Handle: driver}, nil
}

// Kill quits a tracked session. Unknown ids are ignored.
func (a *Adapter) Kill(ctx context.Context, sessionID string) error {
	w, ok := a.registry.Get(sessionID)
	if !ok {
		return nil
	}
	if err := a.quit(ctx, w); err != nil {
		return err
	}
	a.registry.Remove(sessionID)
	a.logger.Infof("%s (%s): killed.", w.Agent.Name, sessionID)
	return nil
}

func (a *Adapter) quit(_ context.Context, w *farm.Worker) error {
	driver, ok := w.Handle.(selenium.WebDriver)
	if !ok {
		return fmt.Errorf("session %s has no driver", w.SessionID)
	}
	if err := driver.Quit(); err != nil {
		return &farm.VendorAPIError{Vendor: Name, Op: "quit", Err: err}
	}
	return nil
}

// KillAll quits every tracked session.
func (a *Adapter) KillAll(ctx context.Context) error {
	return farm.KillAll(ctx, a.registry, a.quit)
}

// Workers returns the tracked sessions.
func (a *Adapter) Workers() []farm.Worker {
	return a.registry.List()
}

// Exit quits all sessions, stops Sauce Connect and forgets the catalog.
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
