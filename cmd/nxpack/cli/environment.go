// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"filippo.io/age"
	"golang.org/x/term"

	"github.com/nxpack/nxpack/lib/config"
	"github.com/nxpack/nxpack/lib/keyset"
	"github.com/nxpack/nxpack/lib/transfer"
)

// GlobalParams are the flags shared by commands that need
// configuration. Embed it in a command's params struct.
type GlobalParams struct {
	ConfigPath string `flag:"config"    desc:"config file (default: $NXPACK_CONFIG, else built-in defaults)"`
	Verbose    bool   `flag:"verbose,v" desc:"log at debug level"`
}

// Environment is what a command runs with once its global flags are
// resolved.
type Environment struct {
	Config *config.Config
	Logger *slog.Logger
}

// Environment loads the configuration named by --config or
// NXPACK_CONFIG, falling back to [config.Default] when neither is set,
// and builds the command logger at the configured level.
func (g *GlobalParams) Environment(command string) (*Environment, error) {
	var cfg *config.Config
	var err error
	switch {
	case g.ConfigPath != "":
		cfg, err = config.LoadFile(g.ConfigPath)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, err
	}

	level, err := cfg.Slog()
	if err != nil {
		return nil, err
	}
	if g.Verbose {
		level = slog.LevelDebug
	}
	return &Environment{
		Config: cfg,
		Logger: NewCommandLogger(level).With("command", command),
	}, nil
}

// TransferOptions returns the configured pipeline options with the
// command logger attached.
func (e *Environment) TransferOptions() (transfer.Options, error) {
	options, err := e.Config.TransferOptions()
	if err != nil {
		return transfer.Options{}, err
	}
	options.Logger = e.Logger
	return options, nil
}

// LoadKeys reads the key file at path, or the configured one when path
// is empty. An age-encrypted file is decrypted with the configured
// identity file, or with a passphrase read from the terminal when no
// identity is configured.
func (e *Environment) LoadKeys(path string) (*keyset.KeySet, error) {
	if path == "" {
		path = e.Config.Paths.Keys
	}
	if !strings.HasSuffix(path, keyset.EncryptedSuffix) {
		return keyset.LoadWithIdentities(path, nil)
	}

	var identities []age.Identity
	var err error
	if e.Config.Paths.Identity != "" {
		identities, err = keyset.ReadIdentities(e.Config.Paths.Identity)
	} else {
		identities, err = promptPassphrase(path)
	}
	if err != nil {
		return nil, err
	}
	e.Logger.Debug("decrypting key file", "path", path)
	return keyset.LoadWithIdentities(path, identities)
}

func promptPassphrase(path string) ([]age.Identity, error) {
	descriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(descriptor) {
		return nil, fmt.Errorf("%s is age-encrypted: set paths.identity or run from a terminal", path)
	}
	fmt.Fprintf(os.Stderr, "Passphrase for %s: ", path)
	passphrase, err := term.ReadPassword(descriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	return keyset.PassphraseIdentity(string(passphrase))
}
