// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/nxpack/nxpack/lib/forwarder"
	"github.com/nxpack/nxpack/lib/transfer"
)

// EnvironmentVariable names the variable [Load] reads the config path
// from.
const EnvironmentVariable = "NXPACK_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for interactive use on a workstation.
	Development Environment = "development"
	// Production is for scripted, unattended packaging.
	Production Environment = "production"
)

// Config is the master configuration for nxpack.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Paths configures file and directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Transfer configures the transfer pipeline.
	Transfer TransferConfig `yaml:"transfer"`

	// Package configures forwarder packages.
	Package PackageConfig `yaml:"package"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`

	// logLevelSet records whether the loaded file named a log level.
	logLevelSet bool
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	LogLevel string             `yaml:"log_level,omitempty"`
	Paths    *PathsConfig       `yaml:"paths,omitempty"`
	Transfer *TransferOverrides `yaml:"transfer,omitempty"`
	Package  *PackageConfig     `yaml:"package,omitempty"`
}

// TransferOverrides mirrors [TransferConfig] for override sections.
// SlowStorage is a pointer so that a section leaving it out keeps the
// base value.
type TransferOverrides struct {
	ChunkSize      string `yaml:"chunk_size,omitempty"`
	SmallChunkSize string `yaml:"small_chunk_size,omitempty"`
	RingCapacity   int    `yaml:"ring_capacity,omitempty"`
	Mode           string `yaml:"mode,omitempty"`
	SlowStorage    *bool  `yaml:"slow_storage,omitempty"`
}

// PathsConfig configures file and directory locations.
type PathsConfig struct {
	// Root is the base directory for nxpack data.
	Root string `yaml:"root"`

	// Keys is the key file. A name ending in .age is decrypted with
	// Identity.
	Keys string `yaml:"keys"`

	// Identity is an age identity file for encrypted key files. Empty
	// means the passphrase is read from the terminal.
	Identity string `yaml:"identity"`

	// Loader and LoaderMetadata are the forwarder loader stub and its
	// NPDM.
	Loader         string `yaml:"loader"`
	LoaderMetadata string `yaml:"loader_metadata"`

	// Store is the content store root used by install and store
	// commands.
	Store string `yaml:"store"`
}

// TransferConfig configures the transfer pipeline.
type TransferConfig struct {
	// ChunkSize is a byte count such as "4MiB".
	// Default: 4MiB
	ChunkSize string `yaml:"chunk_size"`

	// SmallChunkSize replaces ChunkSize when SlowStorage is set.
	// Default: 512KiB
	SmallChunkSize string `yaml:"small_chunk_size"`

	// RingCapacity is the number of chunks buffered between stages.
	// Default: 2
	RingCapacity int `yaml:"ring_capacity"`

	// Mode is multi_threaded, single_threaded or
	// single_threaded_if_smaller.
	// Default: single_threaded_if_smaller
	Mode string `yaml:"mode"`

	// SlowStorage selects SmallChunkSize, for SD cards and network
	// mounts.
	SlowStorage bool `yaml:"slow_storage"`
}

// PackageConfig configures forwarder packages.
type PackageConfig struct {
	// SystemVersion is the target firmware, "major.minor.micro".
	// Default: 17.0.0
	SystemVersion string `yaml:"system_version"`

	// KeyGeneration is the archive key generation.
	// Default: 0
	KeyGeneration uint8 `yaml:"key_generation"`

	// SDKAddonVersion is stamped into archive headers. Zero means the
	// builder default.
	SDKAddonVersion uint32 `yaml:"sdk_addon_version"`

	// DisplayVersion and Author are used when a command does not give
	// them.
	DisplayVersion string `yaml:"display_version"`
	Author         string `yaml:"author"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file,
// and on their own by commands that run without one.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".local", "share", "nxpack")

	return &Config{
		Environment: Development,
		LogLevel:    "info",
		Paths: PathsConfig{
			Root:           defaultRoot,
			Keys:           filepath.Join(homeDir, ".switch", "prod.keys"),
			Loader:         filepath.Join(defaultRoot, "loader", "main"),
			LoaderMetadata: filepath.Join(defaultRoot, "loader", "main.npdm"),
			Store:          filepath.Join(defaultRoot, "store"),
		},
		Transfer: TransferConfig{
			ChunkSize:      "4MiB",
			SmallChunkSize: "512KiB",
			RingCapacity:   transfer.DefaultRingCapacity,
			Mode:           transfer.ModeSingleThreadedIfSmaller.String(),
		},
		Package: PackageConfig{
			SystemVersion:  "17.0.0",
			DisplayVersion: "1.0.0",
			Author:         "nxpack",
		},
	}
}

// Load loads configuration from the NXPACK_CONFIG environment variable.
//
// There are no fallbacks: if NXPACK_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your nxpack.yaml config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. The only expansion
// performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Record whether the file set a log level so production can
	// choose its own default.
	var probe struct {
		LogLevel *string `yaml:"log_level"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	c.logLevelSet = probe.LogLevel != nil
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		if !c.logLevelSet && (overrides == nil || overrides.LogLevel == "") {
			c.LogLevel = "warn"
		}
	}

	if overrides == nil {
		return
	}

	if overrides.LogLevel != "" {
		c.LogLevel = overrides.LogLevel
	}

	if overrides.Paths != nil {
		overrideString(&c.Paths.Root, overrides.Paths.Root)
		overrideString(&c.Paths.Keys, overrides.Paths.Keys)
		overrideString(&c.Paths.Identity, overrides.Paths.Identity)
		overrideString(&c.Paths.Loader, overrides.Paths.Loader)
		overrideString(&c.Paths.LoaderMetadata, overrides.Paths.LoaderMetadata)
		overrideString(&c.Paths.Store, overrides.Paths.Store)
	}

	if overrides.Transfer != nil {
		overrideString(&c.Transfer.ChunkSize, overrides.Transfer.ChunkSize)
		overrideString(&c.Transfer.SmallChunkSize, overrides.Transfer.SmallChunkSize)
		overrideString(&c.Transfer.Mode, overrides.Transfer.Mode)
		if overrides.Transfer.RingCapacity != 0 {
			c.Transfer.RingCapacity = overrides.Transfer.RingCapacity
		}
		if overrides.Transfer.SlowStorage != nil {
			c.Transfer.SlowStorage = *overrides.Transfer.SlowStorage
		}
	}

	if overrides.Package != nil {
		overrideString(&c.Package.SystemVersion, overrides.Package.SystemVersion)
		overrideString(&c.Package.DisplayVersion, overrides.Package.DisplayVersion)
		overrideString(&c.Package.Author, overrides.Package.Author)
		if overrides.Package.KeyGeneration != 0 {
			c.Package.KeyGeneration = overrides.Package.KeyGeneration
		}
		if overrides.Package.SDKAddonVersion != 0 {
			c.Package.SDKAddonVersion = overrides.Package.SDKAddonVersion
		}
	}
}

func overrideString(field *string, value string) {
	if value != "" {
		*field = value
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"NXPACK_ROOT": c.Paths.Root,
		"HOME":        os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["NXPACK_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Keys = expandVars(c.Paths.Keys, vars)
	c.Paths.Identity = expandVars(c.Paths.Identity, vars)
	c.Paths.Loader = expandVars(c.Paths.Loader, vars)
	c.Paths.LoaderMetadata = expandVars(c.Paths.LoaderMetadata, vars)
	c.Paths.Store = expandVars(c.Paths.Store, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}

	if _, err := c.Slog(); err != nil {
		errs = append(errs, err)
	}

	if _, err := c.TransferOptions(); err != nil {
		errs = append(errs, err)
	}

	if _, err := c.SystemVersion(); err != nil {
		errs = append(errs, fmt.Errorf("package.system_version: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Slog returns LogLevel as a slog level.
func (c *Config) Slog() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// TransferOptions converts the transfer section into pipeline options.
func (c *Config) TransferOptions() (transfer.Options, error) {
	mode, err := transfer.ParseMode(c.Transfer.Mode)
	if err != nil {
		return transfer.Options{}, fmt.Errorf("transfer.mode: %w", err)
	}
	sizeField, sizeText := "transfer.chunk_size", c.Transfer.ChunkSize
	if c.Transfer.SlowStorage {
		sizeField, sizeText = "transfer.small_chunk_size", c.Transfer.SmallChunkSize
	}
	chunkSize, err := humanize.ParseBytes(sizeText)
	if err != nil {
		return transfer.Options{}, fmt.Errorf("%s: %w", sizeField, err)
	}
	if chunkSize == 0 || chunkSize > 1<<30 {
		return transfer.Options{}, fmt.Errorf("%s: %s is outside 1 byte to 1GiB", sizeField, sizeText)
	}
	if c.Transfer.RingCapacity < 0 {
		return transfer.Options{}, fmt.Errorf("transfer.ring_capacity: %d is negative", c.Transfer.RingCapacity)
	}
	return transfer.Options{
		Mode:         mode,
		ChunkSize:    int(chunkSize),
		RingCapacity: c.Transfer.RingCapacity,
	}, nil
}

// SystemVersion parses Package.SystemVersion.
func (c *Config) SystemVersion() (forwarder.SystemVersion, error) {
	return forwarder.ParseSystemVersion(c.Package.SystemVersion)
}

// EnsurePaths creates the configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Root, c.Paths.Store} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
