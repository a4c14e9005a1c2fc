package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/entrhq/bunyip/pkg/logging"
)

// FetchFunc places the tunnel binary into dir.
type FetchFunc func(ctx context.Context, dir string) error

// CommandFunc builds the command line that exposes target.
type CommandFunc func(binaryPath string, target *url.URL) (name string, args []string)

// Config describes one farm's tunnel.
type Config struct {
	// Name labels logs and errors, e.g. "browserstack".
	Name string

	// BinaryPath is where the tunnel executable lives once fetched.
	BinaryPath string

	// Fetch retrieves the binary when BinaryPath is missing.
	Fetch FetchFunc

	// Command builds the launch command.
	Command CommandFunc

	// Prepare runs right before launch, e.g. to remove a stale marker.
	Prepare func() error

	// Readiness decides when the launched tunnel is usable.
	Readiness Readiness

	// Probe detects a tunnel that is already running. Optional.
	Probe Probe

	// Rewrite adjusts the target once the tunnel is ready. Optional.
	Rewrite func(target *url.URL) *url.URL

	// Launcher starts the process (default: ExecLauncher).
	Launcher Launcher

	Logger *logging.Logger
}

// Manager provisions a tunnel at most once and owns its process.
type Manager struct {
	cfg Config

	mu    sync.Mutex
	state State
	proc  Process
	err   error
}

// NewManager creates a Manager in the NotNeeded state.
func NewManager(cfg Config) *Manager {
	if cfg.Launcher == nil {
		cfg.Launcher = ExecLauncher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Readiness == nil {
		cfg.Readiness = Delay{}
	}
	return &Manager{cfg: cfg}
}

// State returns the current provisioning state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Launched reports whether a tunnel process is held.
func (m *Manager) Launched() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.proc != nil
}

// Expose returns the URL a remote agent should use to reach target,
// provisioning the tunnel first when target is local and not already
// exposed. Concurrent callers wait for a single provisioning run.
func (m *Manager) Expose(ctx context.Context, target *url.URL, local bool) (*url.URL, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case Ready:
		return m.rewrite(target), nil
	case Failed:
		return nil, m.err
	}

	if !local {
		return target, nil
	}

	if m.cfg.Probe != nil {
		exposed, err := m.cfg.Probe(ctx, target)
		if err != nil {
			m.cfg.Logger.Warnf("Cannot tell whether a %s tunnel is running: %v", m.cfg.Name, err)
		}
		if exposed {
			m.cfg.Logger.Debugf("%s is already exposed by a running tunnel", target.Host)
			return target, nil
		}
	}

	if err := m.provision(ctx, target); err != nil {
		// A cancelled caller is not a tunnel failure; a launched process
		// is kept and awaited again by the next caller.
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			m.state = NotNeeded
			return nil, err
		}
		m.state = Failed
		m.err = err
		return nil, err
	}

	m.state = Ready
	return m.rewrite(target), nil
}

func (m *Manager) provision(ctx context.Context, target *url.URL) error {
	m.state = NeedsBinary
	if err := m.ensureBinary(ctx); err != nil {
		return &ProvisioningError{Tunnel: m.cfg.Name, Stage: "fetch", Err: err}
	}

	if m.proc == nil {
		if err := m.launch(target); err != nil {
			return &ProvisioningError{Tunnel: m.cfg.Name, Stage: "launch", Err: err}
		}
	}

	m.state = WaitingReady
	if err := m.cfg.Readiness.Wait(ctx); err != nil {
		return &ProvisioningError{Tunnel: m.cfg.Name, Stage: "ready", Err: err}
	}

	m.cfg.Logger.Infof("%s tunnel is ready", m.cfg.Name)
	return nil
}

func (m *Manager) launch(target *url.URL) error {
	m.state = Launching
	if m.cfg.Prepare != nil {
		if err := m.cfg.Prepare(); err != nil {
			return err
		}
	}

	m.cfg.Logger.Infof("Launching %s tunnel...", m.cfg.Name)
	name, args := m.cfg.Command(m.cfg.BinaryPath, target)
	proc, err := m.cfg.Launcher.Launch(name, args)
	if err != nil {
		return err
	}
	m.proc = proc
	return nil
}

func (m *Manager) ensureBinary(ctx context.Context) error {
	if _, err := os.Stat(m.cfg.BinaryPath); err == nil {
		return nil
	}
	if m.cfg.Fetch == nil {
		return fmt.Errorf("%s not found and no fetcher configured", m.cfg.BinaryPath)
	}

	dir := filepath.Dir(m.cfg.BinaryPath)
	m.cfg.Logger.Infof("Tunnel binary (%s) not found. Retrieving...", filepath.Base(m.cfg.BinaryPath))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create tools directory: %w", err)
	}
	if err := m.cfg.Fetch(ctx, dir); err != nil {
		return err
	}
	if _, err := os.Stat(m.cfg.BinaryPath); err != nil {
		return fmt.Errorf("%s missing after fetch: %w", m.cfg.BinaryPath, err)
	}
	return nil
}

func (m *Manager) rewrite(target *url.URL) *url.URL {
	if m.cfg.Rewrite == nil {
		return target
	}
	return m.cfg.Rewrite(target)
}

// Close stops the tunnel process if one was launched. It is safe to call
// when nothing was started.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.proc == nil {
		m.state = NotNeeded
		m.err = nil
		return nil
	}

	err := m.proc.Kill()
	m.proc = nil
	m.state = NotNeeded
	m.err = nil
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Port returns the explicit port of u or the scheme default.
func Port(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	if u.Scheme == "https" {
		return "443"
	}
	return "80"
}

// TLSFlag returns "1" for https targets and "0" otherwise.
func TLSFlag(u *url.URL) string {
	if u.Scheme == "https" {
		return "1"
	}
	return "0"
}

// Classifier decides whether a host is only reachable locally.
type Classifier interface {
	IsLocal(ctx context.Context, host string) (bool, error)
}

// ExposeURL parses rawURL, classifies its host and exposes it. A URL
// without a scheme is treated as http. Classification failures are
// returned unchanged and nothing is provisioned.
func (m *Manager) ExposeURL(ctx context.Context, rawURL string, classifier Classifier) (*url.URL, error) {
	target, err := ParseTarget(rawURL)
	if err != nil {
		return nil, err
	}

	local, err := classifier.IsLocal(ctx, target.Hostname())
	if err != nil {
		return nil, err
	}
	return m.Expose(ctx, target, local)
}

// ParseTarget parses a URL the way agents will be pointed at it.
func ParseTarget(rawURL string) (*url.URL, error) {
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if target.Hostname() == "" {
		return nil, fmt.Errorf("invalid url %q: missing host", rawURL)
	}
	return target, nil
}
