// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.NATS.DurableName != "conveyor-pipeline" {
		t.Errorf("NATS.DurableName = %q", cfg.NATS.DurableName)
	}
	if !cfg.NATS.EmbeddedServer {
		t.Error("embedded NATS should default on")
	}
	if cfg.Pipeline.BatchSize != 10 || cfg.Pipeline.BatchWait != 200*time.Millisecond {
		t.Errorf("batch defaults wrong: %+v", cfg.Pipeline)
	}
	if cfg.Store.LedgerRetention != 7*24*time.Hour {
		t.Errorf("LedgerRetention = %s", cfg.Store.LedgerRetention)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CONVEYOR_SERVER_PORT", "9090")
	t.Setenv("CONVEYOR_LOG_LEVEL", "debug")
	t.Setenv("CONVEYOR_PIPELINE_BATCH_SIZE", "50")
	t.Setenv("CONVEYOR_POLICY_ALLOWED_TYPES", "video/, audio/flac")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Pipeline.BatchSize != 50 {
		t.Errorf("Pipeline.BatchSize = %d, want 50", cfg.Pipeline.BatchSize)
	}
	want := []string{"video/", "audio/flac"}
	if len(cfg.Policy.AllowedTypes) != len(want) {
		t.Fatalf("AllowedTypes = %v, want %v", cfg.Policy.AllowedTypes, want)
	}
	for i := range want {
		if cfg.Policy.AllowedTypes[i] != want[i] {
			t.Errorf("AllowedTypes[%d] = %q, want %q", i, cfg.Policy.AllowedTypes[i], want[i])
		}
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 7070
nats:
  durable_name: custom-durable
policy:
  max_size_bytes: 1073741824
  allowed_types:
    - video/
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.NATS.DurableName != "custom-durable" {
		t.Errorf("NATS.DurableName = %q", cfg.NATS.DurableName)
	}
	if cfg.Policy.MaxSizeBytes != 1<<30 {
		t.Errorf("Policy.MaxSizeBytes = %d", cfg.Policy.MaxSizeBytes)
	}
	// File layers over defaults, env still wins.
	if cfg.Store.GCInterval != 10*time.Minute {
		t.Errorf("Store.GCInterval = %s, defaults lost", cfg.Store.GCInterval)
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("CONVEYOR_SERVER_PORT", "9191")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, env should win", cfg.Server.Port)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Log.Level = "loud" },
			want:   "Log.Level",
		},
		{
			name:   "port out of range",
			mutate: func(c *Config) { c.Server.Port = 0 },
			want:   "Server.Port",
		},
		{
			name:   "zero max deliver",
			mutate: func(c *Config) { c.NATS.MaxDeliver = 0 },
			want:   "NATS.MaxDeliver",
		},
		{
			name:   "ack wait inside step timeout",
			mutate: func(c *Config) { c.NATS.AckWait = 10 * time.Second },
			want:   "ack_wait",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"CONVEYOR_SERVER_PORT", "server.port"},
		{"CONVEYOR_NATS_ACK_WAIT", "nats.ack_wait"},
		{"CONVEYOR_PIPELINE_STEP_TIMEOUT", "pipeline.step_timeout"},
		{"CONVEYOR_LOG_LEVEL", "log.level"},
	}
	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestServerConfig_Addr(t *testing.T) {
	c := ServerConfig{Host: "127.0.0.1", Port: 8080}
	if got := c.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr = %q", got)
	}
}
