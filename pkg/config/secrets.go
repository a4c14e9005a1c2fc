package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
)

const keyringService = "bunyip"

// LoadDotEnv loads .env style files into the environment without
// overriding variables that are already set. Missing files are skipped.
// With no paths, ".env" in the working directory is tried.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

func keyringAccount(farm, user string) string {
	return farm + ":" + user
}

// ResolvePassword fills Pass from the OS keyring when it is empty. A
// missing entry leaves Pass empty.
func (c *Config) ResolvePassword() error {
	if c.Pass != "" || c.User == "" {
		return nil
	}
	kind, err := c.Kind()
	if err != nil {
		return err
	}

	pass, err := keyring.Get(keyringService, keyringAccount(string(kind), c.User))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("keychain get: %w", err)
	}
	c.Pass = pass
	return nil
}

// StorePassword saves an access key in the OS keyring for later runs.
func StorePassword(farm, user, pass string) error {
	if user == "" || pass == "" {
		return fmt.Errorf("user and password are required")
	}
	if err := keyring.Set(keyringService, keyringAccount(farm, user), pass); err != nil {
		return fmt.Errorf("keychain set: %w", err)
	}
	return nil
}

// DeletePassword removes a stored access key. Missing entries are ignored.
func DeletePassword(farm, user string) error {
	err := keyring.Delete(keyringService, keyringAccount(farm, user))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keychain delete: %w", err)
	}
	return nil
}
