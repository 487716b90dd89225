package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the hidock-cli configuration, loadable from a YAML file
// and overridable per-flag. Zero values defer to library defaults.
type Config struct {
	// Trace is the protocol trace file path. Empty disables tracing.
	Trace string `yaml:"trace"`

	// Timeout is the per-command timeout.
	Timeout time.Duration `yaml:"timeout"`

	// Safe blocks every mutating command at the transport layer.
	Safe bool `yaml:"safe"`

	// KeepAliveInterval between liveness probes. Zero uses the default.
	KeepAliveInterval time.Duration `yaml:"keepalive_interval"`

	// NoKeepAlive disables the liveness probe.
	NoKeepAlive bool `yaml:"no_keepalive"`

	// Device pins a physical device as "bus:address" when several are
	// attached. Empty picks the first one found.
	Device string `yaml:"device"`
}

// LoadConfig reads a YAML config file. A missing file with an empty path
// is not an error; an explicitly named missing file is.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
