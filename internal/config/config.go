package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.ripple/config.toml.
type Config struct {
	// ServerURL is the base URL of the messaging backend, e.g.
	// "https://chat.example.com/api". The WebSocket endpoint is derived
	// from it by stripping the /api suffix.
	ServerURL string `toml:"server_url"`
	// Token authenticates REST and WebSocket requests.
	Token string `toml:"token"`
	// DefaultProfile selects the profile when --profile is not given.
	DefaultProfile string `toml:"default_profile"`
	// Sound enables the new-message chime.
	Sound bool `toml:"sound"`
}

// Load reads config from the given path. Returns zero config and error if
// the file is missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
