package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{EnvUser, EnvPass, EnvFarm, EnvTunnelKey} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultHub, cfg.Hub)
}

func TestLoad_YAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("CI_SAUCE_KEY", "s3cret")
	path := writeFile(t, "bunyip.yaml", `
farm: browserstack
user: jdoe
pass: ${CI_SAUCE_KEY}
hub: http://ci.example.com:9000
session_timeout: 90s
wait: true
browsers:
  - firefox
  - id: ie
    version: 9
    osId: win
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "browserstack", cfg.Farm)
	assert.Equal(t, "jdoe", cfg.User)
	assert.Equal(t, "s3cret", cfg.Pass)
	assert.Equal(t, "http://ci.example.com:9000", cfg.Hub)
	assert.Equal(t, 90*time.Second, cfg.SessionTimeout)
	assert.True(t, cfg.Wait)
	assert.Equal(t, DefaultToolsDir, cfg.ToolsDir)

	nine := 9
	assert.Equal(t, Browsers{
		{ID: "firefox"},
		{ID: "ie", Version: &nine, OSID: "win"},
	}, cfg.Browsers)
}

func TestLoad_BrowserString(t *testing.T) {
	path := writeFile(t, "bunyip.yaml", `browsers: "ie:win/8.0,9.0|chrome:linux/25"`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Browsers, 3)
	assert.Equal(t, "ie", cfg.Browsers[0].ID)
	assert.Equal(t, 9, *cfg.Browsers[1].Version)
	assert.Equal(t, "linux", cfg.Browsers[2].OSID)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, "bunyip.yaml", "farm: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvUser, "envuser")
	t.Setenv(EnvFarm, "browserstack")

	cfg := DefaultConfig()
	cfg.User = "fileuser"
	cfg.Pass = "filepass"
	cfg.ApplyEnv()

	assert.Equal(t, "envuser", cfg.User)
	assert.Equal(t, "filepass", cfg.Pass)
	assert.Equal(t, "browserstack", cfg.Farm)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvUser, "already-set")

	path := writeFile(t, ".env", "BUNYIP_USER=fromfile\nBUNYIP_PASS=dotenv-key\n")
	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	t.Cleanup(func() { os.Unsetenv(EnvPass) })

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	assert.Equal(t, "already-set", cfg.User)
	assert.Equal(t, "dotenv-key", cfg.Pass)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"browserstack", func(c *Config) { c.Farm = "browserstack" }, false},
		{"unknown farm", func(c *Config) { c.Farm = "testingbot" }, true},
		{"bad hub scheme", func(c *Config) { c.Hub = "ftp://example.com" }, true},
		{"negative timeout", func(c *Config) { c.SessionTimeout = -time.Second }, true},
		{"bad verbosity", func(c *Config) { c.Verbosity = "loud" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_FillsDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "saucelabs", cfg.Farm)
	assert.Equal(t, DefaultHub, cfg.Hub)
	assert.Equal(t, DefaultSessionTimeout, cfg.SessionTimeout)
	assert.Equal(t, DefaultToolsDir, cfg.ToolsDir)
	assert.Equal(t, DefaultVerbosity, cfg.Verbosity)
}

func TestParseHub(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", "http://localhost:9000"},
		{"localhost", "http://localhost:9000"},
		{":8080", "http://localhost:8080"},
		{"ci.example.com:9000/yeti", "http://ci.example.com:9000/yeti"},
		{"https://ci.example.com", "https://ci.example.com:9000"},
		{"http://10.0.0.5:4000", "http://10.0.0.5:4000"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := ParseHub(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestHubURL(t *testing.T) {
	cfg := &Config{Hub: "ci.example.com"}
	u, err := cfg.HubURL()
	require.NoError(t, err)
	assert.Equal(t, "http://ci.example.com:9000", u.String())
}

func TestResolvePassword_Keyring(t *testing.T) {
	keyring.MockInit()

	require.NoError(t, StorePassword("browserstack", "jdoe", "from-keyring"))

	cfg := &Config{Farm: "browserstack", User: "jdoe"}
	require.NoError(t, cfg.ResolvePassword())
	assert.Equal(t, "from-keyring", cfg.Pass)

	// Explicit passwords win.
	cfg = &Config{Farm: "browserstack", User: "jdoe", Pass: "explicit"}
	require.NoError(t, cfg.ResolvePassword())
	assert.Equal(t, "explicit", cfg.Pass)

	// Other farms are keyed separately.
	cfg = &Config{User: "jdoe"}
	require.NoError(t, cfg.ResolvePassword())
	assert.Empty(t, cfg.Pass)

	require.NoError(t, DeletePassword("browserstack", "jdoe"))
	require.NoError(t, DeletePassword("browserstack", "jdoe"))
	cfg = &Config{Farm: "browserstack", User: "jdoe"}
	require.NoError(t, cfg.ResolvePassword())
	assert.Empty(t, cfg.Pass)
}

func TestStorePassword_RequiresValues(t *testing.T) {
	keyring.MockInit()
	assert.Error(t, StorePassword("saucelabs", "", "key"))
	assert.Error(t, StorePassword("saucelabs", "jdoe", ""))
}

func TestBrowsersUnmarshal_InvalidString(t *testing.T) {
	path := writeFile(t, "bunyip.yaml", `browsers: ":win/8.0"`)
	_, err := Load(path)
	assert.Error(t, err)
}

