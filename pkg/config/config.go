/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads and validates the daemon configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/carverauto/devscout/pkg/logger"
)

// Duration accepts either a JSON number of nanoseconds or a Go duration
// string such as "30s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}

		*d = Duration(tmp)
	default:
		return ErrInvalidDuration
	}

	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// DiscoveryConfig tunes the sweep passes.
type DiscoveryConfig struct {
	// Interval between periodic discovery passes.
	Interval Duration `json:"interval"`

	// Concurrency caps in-flight probes per sweep.
	Concurrency int `json:"concurrency"`

	// ProbeTimeout bounds each individual probe.
	ProbeTimeout Duration `json:"probe_timeout"`

	// NetworkPrefix overrides local-prefix autodetection when set.
	NetworkPrefix string `json:"network_prefix,omitempty"`
}

// SNMPConfig holds sweep credentials.
type SNMPConfig struct {
	Community string `json:"community"`
	Port      int    `json:"port"`
}

// LearnerConfig tunes command learning.
type LearnerConfig struct {
	// Enabled turns trial-and-error learning on for IoT passes.
	Enabled bool `json:"enabled"`

	// Vocabulary is the candidate command set. Empty means the
	// built-in default.
	Vocabulary []string `json:"vocabulary,omitempty"`

	// DocsDir holds per-device command documentation artifacts.
	DocsDir string `json:"docs_dir"`

	// Concurrency caps parallel command probes.
	Concurrency int `json:"concurrency"`

	// CommandRate caps commands per second per device. Zero means
	// unlimited.
	CommandRate float64 `json:"command_rate,omitempty"`

	User       string `json:"user"`
	Credential string `json:"credential"`
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	// Backend is "memory" or "nats".
	Backend string `json:"backend"`

	// NatsURL, Bucket and TTL apply to the nats backend only.
	NatsURL string   `json:"nats_url,omitempty"`
	Bucket  string   `json:"bucket,omitempty"`
	TTL     Duration `json:"ttl,omitempty"`
}

// Config is the daemon configuration.
type Config struct {
	Logger    logger.Config   `json:"logger"`
	Discovery DiscoveryConfig `json:"discovery"`
	SNMP      SNMPConfig      `json:"snmp"`
	Learner   LearnerConfig   `json:"learner"`
	Cache     CacheConfig     `json:"cache"`
}

const (
	defaultInterval     = 5 * time.Minute
	defaultProbeTimeout = 1 * time.Second
	defaultConcurrency  = 10

	BackendMemory = "memory"
	BackendNats   = "nats"
)

// Default returns a configuration that works with no file at all:
// in-memory backends, public SNMP community, learning disabled.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()

	return cfg
}

// LoadFromFile reads and validates a JSON configuration file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}

	if c.Discovery.Interval <= 0 {
		c.Discovery.Interval = Duration(defaultInterval)
	}

	if c.Discovery.Concurrency <= 0 {
		c.Discovery.Concurrency = defaultConcurrency
	}

	if c.Discovery.ProbeTimeout <= 0 {
		c.Discovery.ProbeTimeout = Duration(defaultProbeTimeout)
	}

	if c.SNMP.Community == "" {
		c.SNMP.Community = "public"
	}

	if c.SNMP.Port <= 0 {
		c.SNMP.Port = 161
	}

	if c.Learner.Concurrency <= 0 {
		c.Learner.Concurrency = defaultConcurrency
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = BackendMemory
	}
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case BackendMemory:
	case BackendNats:
		if c.Cache.NatsURL == "" {
			return fmt.Errorf("%w: nats backend requires nats_url", ErrInvalidConfig)
		}

		if c.Cache.Bucket == "" {
			return fmt.Errorf("%w: nats backend requires bucket", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalidConfig, c.Cache.Backend)
	}

	if c.SNMP.Port > 65535 {
		return fmt.Errorf("%w: snmp port %d out of range", ErrInvalidConfig, c.SNMP.Port)
	}

	if c.Learner.Enabled && c.Learner.User == "" {
		return fmt.Errorf("%w: learner requires a user when enabled", ErrInvalidConfig)
	}

	return nil
}
