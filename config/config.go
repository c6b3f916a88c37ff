// Package config handles YAML configuration loading for Kataribe
// binaries: the listen address, contract version, default timeout,
// feature flags, and presence settings a deployed server or client
// would otherwise have to wire up by hand.
package config

import (
	"fmt"
	"time"
)

// Config represents a kataribe.yaml configuration file. Every field is
// optional; zero values fall back to runtime.Options' own defaults.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Runtime   RuntimeConfig   `yaml:"runtime"`
	Presence  PresenceConfig  `yaml:"presence"`
}

// TransportConfig selects and configures the concrete transport adapter.
type TransportConfig struct {
	Kind string `yaml:"kind"` // "ws", "tcp", "webrtc", "webtransport"
	Addr string `yaml:"addr"`
}

// RuntimeConfig mirrors the subset of runtime.Options that makes sense
// to declare in a file rather than in code.
type RuntimeConfig struct {
	Version int      `yaml:"version"`
	Timeout Duration `yaml:"timeout"`
	Feat    []string `yaml:"features"`
}

// PresenceConfig configures the etcd-backed presence registry.
type PresenceConfig struct {
	Endpoints   []string `yaml:"endpoints"`
	ServiceName string   `yaml:"service_name"`
	TTLSeconds  int64    `yaml:"ttl_seconds"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "2m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "1m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
