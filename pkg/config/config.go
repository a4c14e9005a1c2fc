// Package config loads bunyip settings from a YAML file, .env files, the
// environment and the OS keyring.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/bunyip/pkg/agentfarm"
	"github.com/entrhq/bunyip/pkg/farm"
)

const (
	DefaultHub            = "http://localhost:9000"
	DefaultToolsDir       = "tools"
	DefaultSessionTimeout = 300 * time.Second
	DefaultVerbosity      = "normal"

	defaultHubPort = "9000"
)

// Environment variables read by ApplyEnv.
const (
	EnvUser      = "BUNYIP_USER"
	EnvPass      = "BUNYIP_PASS"
	EnvFarm      = "BUNYIP_FARM"
	EnvTunnelKey = "BUNYIP_TUNNEL_KEY"
)

// Config holds everything needed to drive a farm.
type Config struct {
	// Farm selects the backend: browserstack or saucelabs
	Farm string `yaml:"farm" json:"farm"`

	// Credentials at the farm
	User      string `yaml:"user" json:"user"`
	Pass      string `yaml:"pass" json:"-"`
	TunnelKey string `yaml:"tunnel_key" json:"-"`

	// Hub is the tester server agents are pointed at
	Hub string `yaml:"hub" json:"hub"`

	// Browsers to request, either a list of specs or a browser string
	Browsers Browsers `yaml:"browsers" json:"browsers"`

	// ToolsDir receives tunnel binaries, markers and logs
	ToolsDir string `yaml:"tools_dir" json:"tools_dir"`

	// SessionTimeout is how long BrowserStack keeps a worker alive
	SessionTimeout time.Duration `yaml:"session_timeout" json:"session_timeout"`

	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`

	// Wait leaves tunnels and workers running on quit
	Wait bool `yaml:"wait" json:"wait"`
}

// Browsers is a list of specs that also accepts the browser string syntax
// in YAML, e.g. browsers: "ie:win/8.0|firefox:mac/19.0".
type Browsers []farm.Spec

// UnmarshalYAML accepts a browser string or a list of specs.
func (b *Browsers) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		specs, err := farm.ParseBrowsers(node.Value)
		if err != nil {
			return err
		}
		*b = specs
		return nil
	}

	var specs []farm.Spec
	if err := node.Decode(&specs); err != nil {
		return err
	}
	*b = specs
	return nil
}

// DefaultConfig returns a configuration with every default filled in.
func DefaultConfig() *Config {
	return &Config{
		Hub:            DefaultHub,
		ToolsDir:       DefaultToolsDir,
		SessionTimeout: DefaultSessionTimeout,
		Verbosity:      DefaultVerbosity,
	}
}

// Load reads a YAML config file, expanding ${VAR} references first. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields with the BUNYIP_* environment variables that
// are set.
func (c *Config) ApplyEnv() {
	for name, field := range map[string]*string{
		EnvUser:      &c.User,
		EnvPass:      &c.Pass,
		EnvFarm:      &c.Farm,
		EnvTunnelKey: &c.TunnelKey,
	} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*field = v
		}
	}
}

// Kind returns the selected farm.
func (c *Config) Kind() (agentfarm.Kind, error) {
	return agentfarm.ParseKind(c.Farm)
}

// HubURL returns the parsed hub address.
func (c *Config) HubURL() (*url.URL, error) {
	return ParseHub(c.Hub)
}

// Validate checks the configuration and fills in defaults for empty
// fields.
func (c *Config) Validate() error {
	kind, err := c.Kind()
	if err != nil {
		return err
	}
	c.Farm = string(kind)

	if c.Hub == "" {
		c.Hub = DefaultHub
	}
	if _, err := ParseHub(c.Hub); err != nil {
		return err
	}

	if c.SessionTimeout < 0 {
		return fmt.Errorf("session_timeout cannot be negative")
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	if c.ToolsDir == "" {
		c.ToolsDir = DefaultToolsDir
	}

	if c.Verbosity == "" {
		c.Verbosity = DefaultVerbosity
	}
	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if !validLevels[c.Verbosity] {
		return fmt.Errorf("invalid verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Verbosity)
	}

	return nil
}

// ParseHub parses a tester server address. The scheme defaults to http,
// the host to localhost and the port to 9000.
func ParseHub(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultHub
	}
	if strings.HasPrefix(raw, ":") {
		raw = "localhost" + raw
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid hub %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid hub %q: unsupported scheme %q", raw, u.Scheme)
	}

	host, port := u.Hostname(), u.Port()
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = defaultHubPort
	}
	u.Host = joinHostPort(host, port)
	return u, nil
}

func joinHostPort(host, port string) string {
	if strings.Contains(host, ":") {
		return "[" + host + "]:" + port
	}
	return host + ":" + port
}
