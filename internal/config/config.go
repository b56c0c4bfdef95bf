package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	logpkg "github.com/hyperrixel/logos/pkg/log"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// HTTPAddr is the listen address of the HTTP transport.
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr"`
	// DataDir overrides the OS default store location when set.
	DataDir string `json:"dataDir" yaml:"dataDir"`
	// Fsync selects the commit durability mode: always, interval, never.
	Fsync string `json:"fsync" yaml:"fsync"`
	// FsyncIntervalMs controls group commit when Fsync is "interval".
	FsyncIntervalMs int `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`
	// PayloadMaxBytes caps one submitted entry payload.
	PayloadMaxBytes int `json:"payloadMaxBytes" yaml:"payloadMaxBytes"`
	// DefaultFormat is the codec assumed when a client names none.
	DefaultFormat string `json:"defaultFormat" yaml:"defaultFormat"`
	// SubscriberQueueLen bounds each live subscriber's buffer.
	SubscriberQueueLen int `json:"subscriberQueueLen" yaml:"subscriberQueueLen"`
	// FlushWindowMs batches transport flushes; 0 flushes per delivery.
	FlushWindowMs int `json:"flushWindowMs" yaml:"flushWindowMs"`
	// Log configures level and output format.
	Log logpkg.Config `json:"log" yaml:"log"`
	// BootstrapAdmins are seeded into the access registry at startup so
	// an empty store is administrable.
	BootstrapAdmins []Admin `json:"bootstrapAdmins" yaml:"bootstrapAdmins"`
}

// Admin names one bootstrap administrator principal.
type Admin struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"displayName" yaml:"displayName"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		HTTPAddr:           ":8080",
		Fsync:              "always",
		FsyncIntervalMs:    5,
		PayloadMaxBytes:    1 << 20,
		DefaultFormat:      "json",
		SubscriberQueueLen: 256,
		Log:                logpkg.Config{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If
// path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, nil
}
