// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/conveyor/config.yaml",
	"/etc/conveyor/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONVEYOR_CONFIG"

// envPrefix scopes environment overrides: CONVEYOR_SERVER_PORT -> server.port.
const envPrefix = "CONVEYOR_"

// Config is the root configuration for the pipeline process.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Server   ServerConfig   `koanf:"server"`
	NATS     NATSConfig     `koanf:"nats"`
	Store    StoreConfig    `koanf:"store"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Policy   PolicyConfig   `koanf:"policy"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=1s"`
	RateLimit       int           `koanf:"rate_limit" validate:"min=0"`
}

// NATSConfig controls the JetStream transport.
type NATSConfig struct {
	URL            string        `koanf:"url" validate:"required"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	StoreDir       string        `koanf:"store_dir"`
	DurableName    string        `koanf:"durable_name" validate:"required"`
	QueueGroup     string        `koanf:"queue_group" validate:"required"`
	AckWait        time.Duration `koanf:"ack_wait" validate:"min=1s"`
	MaxDeliver     int           `koanf:"max_deliver" validate:"min=1"`
	MaxAckPending  int           `koanf:"max_ack_pending" validate:"min=1"`
}

// StoreConfig controls the embedded record store and ledger.
type StoreConfig struct {
	Dir             string        `koanf:"dir"`
	InMemory        bool          `koanf:"in_memory"`
	GCInterval      time.Duration `koanf:"gc_interval" validate:"min=1m"`
	LedgerRetention time.Duration `koanf:"ledger_retention" validate:"min=1m"`
}

// PipelineConfig bounds batch collection and step execution.
type PipelineConfig struct {
	BatchSize   int           `koanf:"batch_size" validate:"min=1,max=1000"`
	BatchWait   time.Duration `koanf:"batch_wait" validate:"min=1ms"`
	StepTimeout time.Duration `koanf:"step_timeout" validate:"min=1s"`
}

// PolicyConfig bounds what media the validation step accepts.
type PolicyConfig struct {
	MaxSizeBytes int64    `koanf:"max_size_bytes" validate:"min=0"`
	AllowedTypes []string `koanf:"allowed_types"`
}

func defaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       100,
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/conveyor/jetstream",
			DurableName:    "conveyor-pipeline",
			QueueGroup:     "pipeline",
			AckWait:        60 * time.Second,
			MaxDeliver:     5,
			MaxAckPending:  256,
		},
		Store: StoreConfig{
			Dir:             "/data/conveyor/store",
			GCInterval:      10 * time.Minute,
			LedgerRetention: 7 * 24 * time.Hour,
		},
		Pipeline: PipelineConfig{
			BatchSize:   10,
			BatchWait:   200 * time.Millisecond,
			StepTimeout: 30 * time.Second,
		},
		Policy: PolicyConfig{
			MaxSizeBytes: 0,
			AllowedTypes: nil,
		},
	}
}

// Load merges defaults, optional YAML file, and CONVEYOR_ environment
// variables (highest priority), then validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := normalizeSlices(k); err != nil {
		return nil, fmt.Errorf("normalize slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envTransform maps CONVEYOR_SECTION_SOME_KEY to section.some_key. Only the
// first underscore after the prefix is a section separator; the rest belong
// to the key.
func envTransform(name string) string {
	trimmed := strings.ToLower(strings.TrimPrefix(name, envPrefix))
	parts := strings.SplitN(trimmed, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists fields that env vars supply as comma-separated
// strings but the struct expects as slices.
var sliceConfigPaths = []string{
	"policy.allowed_types",
}

func normalizeSlices(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		s, ok := val.(string)
		if !ok {
			continue
		}
		var out []string
		for _, part := range strings.Split(s, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if err := k.Set(path, out); err != nil {
			return err
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field consistency.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config validation failed on %s (%s=%s)", fe.Namespace(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	if !c.NATS.EmbeddedServer && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when the embedded server is disabled")
	}
	if c.NATS.AckWait <= c.Pipeline.StepTimeout {
		return fmt.Errorf("nats.ack_wait (%s) must exceed pipeline.step_timeout (%s) or in-flight work gets redelivered mid-step",
			c.NATS.AckWait, c.Pipeline.StepTimeout)
	}
	return nil
}

// Addr returns the ops HTTP listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
