package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Save writes cfg as YAML, replacing path atomically. The file may hold
// API secrets, so it is created 0600.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config save: nil config")
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config save: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".hedgebot-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Example returns a complete config with one placeholder account, the
// starting point written by `hedgebot -init`.
func Example() *Config {
	cfg := &Config{
		Accounts: []AccountConfig{{
			Name:      "main",
			APIKey:    "your-api-key",
			APISecret: "your-api-secret",
		}},
	}
	cfg.applyDefaults(make(keySet))
	return cfg
}
