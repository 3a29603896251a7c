// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nxpack/nxpack/lib/forwarder"
	"github.com/nxpack/nxpack/lib/transfer"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nxpack.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config does not validate: %v", err)
	}

	options, err := cfg.TransferOptions()
	if err != nil {
		t.Fatal(err)
	}
	if options.ChunkSize != transfer.LargeChunkSize {
		t.Errorf("expected chunk size %d, got %d", transfer.LargeChunkSize, options.ChunkSize)
	}
	if options.Mode != transfer.ModeSingleThreadedIfSmaller {
		t.Errorf("expected mode single_threaded_if_smaller, got %s", options.Mode)
	}
}

func TestLoad_RequiresNxpackConfig(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when NXPACK_CONFIG not set, got nil")
	}

	expectedMsg := "NXPACK_CONFIG environment variable not set"
	if !strings.HasPrefix(err.Error(), expectedMsg) {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithNxpackConfig(t *testing.T) {
	t.Setenv(EnvironmentVariable, writeConfig(t, `
environment: production
paths:
  root: /test/root
`))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Environment != Production {
		t.Errorf("expected environment=production, got %s", cfg.Environment)
	}
	if cfg.Paths.Root != "/test/root" {
		t.Errorf("expected root=/test/root, got %s", cfg.Paths.Root)
	}
	// Production without an explicit level logs warnings and above.
	if level, _ := cfg.Slog(); level != slog.LevelWarn {
		t.Errorf("expected production log level warn, got %s", level)
	}
}

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
environment: development
log_level: debug

paths:
  root: /custom/root
  keys: ${NXPACK_ROOT}/prod.keys.age
  identity: ${NXPACK_ROOT}/identity.txt
  store: ${NXPACK_ROOT}/store

transfer:
  chunk_size: 1MiB
  ring_capacity: 4
  mode: multi_threaded

package:
  system_version: 18.1.0
  key_generation: 5
  author: someone
`))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Keys != "/custom/root/prod.keys.age" {
		t.Errorf("expected keys expanded under root, got %s", cfg.Paths.Keys)
	}
	if cfg.Paths.Store != "/custom/root/store" {
		t.Errorf("expected store=/custom/root/store, got %s", cfg.Paths.Store)
	}
	if level, _ := cfg.Slog(); level != slog.LevelDebug {
		t.Errorf("expected debug, got %s", level)
	}

	options, err := cfg.TransferOptions()
	if err != nil {
		t.Fatal(err)
	}
	if options.ChunkSize != 1<<20 || options.RingCapacity != 4 || options.Mode != transfer.ModeMultiThreaded {
		t.Errorf("transfer options = %+v", options)
	}

	version, err := cfg.SystemVersion()
	if err != nil || version != forwarder.MakeSystemVersion(18, 1, 0) {
		t.Errorf("system version = %v, %v", version, err)
	}
	if cfg.Package.KeyGeneration != 5 || cfg.Package.Author != "someone" {
		t.Errorf("package = %+v", cfg.Package)
	}
	// Unset fields keep their defaults.
	if cfg.Package.DisplayVersion != "1.0.0" {
		t.Errorf("expected default display version, got %q", cfg.Package.DisplayVersion)
	}
}

func TestEnvironmentOverridesKeepUnsetSlowStorage(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
environment: production

transfer:
  slow_storage: true

production:
  transfer:
    chunk_size: 1MiB
`))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if !cfg.Transfer.SlowStorage {
		t.Error("override without slow_storage turned slow storage off")
	}
	if cfg.Transfer.ChunkSize != "1MiB" {
		t.Errorf("expected chunk_size=1MiB from override, got %s", cfg.Transfer.ChunkSize)
	}

	options, err := cfg.TransferOptions()
	if err != nil {
		t.Fatal(err)
	}
	if options.ChunkSize != transfer.SmallChunkSize {
		t.Errorf("slow storage should keep the small chunk size, got %d", options.ChunkSize)
	}

	cfg, err = LoadFile(writeConfig(t, `
environment: production

transfer:
  slow_storage: true

production:
  transfer:
    slow_storage: false
`))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Transfer.SlowStorage {
		t.Error("explicit slow_storage: false in the override was ignored")
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	for name, content := range map[string]string{
		"environment":    "environment: staging\n",
		"log level":      "log_level: loud\n",
		"chunk size":     "transfer:\n  chunk_size: lots\n",
		"mode":           "transfer:\n  mode: sideways\n",
		"system version": "package:\n  system_version: 1.2.3.4\n",
		"yaml":           "paths: [\n",
	} {
		if _, err := LoadFile(writeConfig(t, content)); err == nil {
			t.Errorf("%s: LoadFile accepted an invalid config", name)
		}
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
environment: production

paths:
  root: /default/root

transfer:
  slow_storage: false

production:
  log_level: error
  paths:
    root: /prod/root
  transfer:
    slow_storage: true
  package:
    key_generation: 3
`))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Root != "/prod/root" {
		t.Errorf("expected root=/prod/root, got %s", cfg.Paths.Root)
	}
	if !cfg.Transfer.SlowStorage {
		t.Error("expected slow_storage=true from production override")
	}
	if cfg.Package.KeyGeneration != 3 {
		t.Errorf("expected key generation 3, got %d", cfg.Package.KeyGeneration)
	}
	if level, _ := cfg.Slog(); level != slog.LevelError {
		t.Errorf("expected error level from override, got %s", level)
	}

	options, err := cfg.TransferOptions()
	if err != nil {
		t.Fatal(err)
	}
	if options.ChunkSize != transfer.SmallChunkSize {
		t.Errorf("slow storage should use the small chunk size, got %d", options.ChunkSize)
	}
}

func TestDevelopmentOverridesIgnoredInProduction(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
environment: production
log_level: info
development:
  paths:
    root: /dev/root
`))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Paths.Root == "/dev/root" {
		t.Error("development override applied in production")
	}
	if level, _ := cfg.Slog(); level != slog.LevelInfo {
		t.Errorf("explicit log level replaced by production default: %s", level)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	// Environment variables are only consulted by ${VAR} expansion.
	t.Setenv("NXPACK_ROOT", "/env/root")
	t.Setenv("NXPACK_ENVIRONMENT", "production")

	cfg, err := LoadFile(writeConfig(t, `
environment: development
paths:
  root: /file/root
`))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Environment != Development {
		t.Errorf("expected environment=development from file, got %s (env vars should not override)", cfg.Environment)
	}
	if cfg.Paths.Root != "/file/root" {
		t.Errorf("expected root=/file/root from file, got %s (env vars should not override)", cfg.Paths.Root)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/nxpack",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/nxpack",
		},
		{
			input:    "${MISSING_NXPACK_TEST_VAR:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid environment",
			modify: func(c *Config) {
				c.Environment = "invalid"
			},
			wantErr: true,
		},
		{
			name: "empty root path",
			modify: func(c *Config) {
				c.Paths.Root = ""
			},
			wantErr: true,
		},
		{
			name: "zero chunk size",
			modify: func(c *Config) {
				c.Transfer.ChunkSize = "0B"
			},
			wantErr: true,
		},
		{
			name: "bad small chunk size only matters on slow storage",
			modify: func(c *Config) {
				c.Transfer.SmallChunkSize = "tiny"
			},
			wantErr: false,
		},
		{
			name: "negative ring capacity",
			modify: func(c *Config) {
				c.Transfer.RingCapacity = -1
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Paths.Root = filepath.Join(tmpDir, "nxpack")
	cfg.Paths.Store = filepath.Join(cfg.Paths.Root, "store")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}

	for _, path := range []string{cfg.Paths.Root, cfg.Paths.Store} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}
