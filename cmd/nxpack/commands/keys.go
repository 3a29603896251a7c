// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/nxpack/nxpack/cmd/nxpack/cli"
	"github.com/nxpack/nxpack/lib/keyset"
)

type keysParams struct {
	cli.GlobalParams
	Keys string `flag:"keys" desc:"key file (default: paths.keys)"`
}

func keysCommand() *cli.Command {
	var params keysParams

	return &cli.Command{
		Name:    "keys",
		Summary: "Check the key file",
		Subcommands: []*cli.Command{
			{
				Name:    "check",
				Summary: "Report which keys the configured key generation needs",
				Description: `Load the key file (decrypting it when its name ends in .age) and
report whether the header key and the key-area key for the configured
key generation are present. Key values are never printed.`,
				Params: func() any { return &params },
				Run: func(_ context.Context, args []string) error {
					if err := cli.RequireArgs(args, 0, "nxpack keys check [flags]"); err != nil {
						return err
					}
					env, err := params.Environment("keys/check")
					if err != nil {
						return err
					}
					keys, err := env.LoadKeys(params.Keys)
					if err != nil {
						return err
					}
					path := cmp.Or(params.Keys, env.Config.Paths.Keys)
					return checkKeys(os.Stdout, path, keys, env.Config.Package.KeyGeneration)
				},
			},
		},
	}
}

// checkKeys reports the keys needed to build archives for generation
// and returns an error when any is unusable.
func checkKeys(w io.Writer, path string, keys *keyset.KeySet, generation uint8) error {
	fmt.Fprintf(w, "%s: %d keys\n", path, len(keys.Names()))
	_, headerErr := keys.HeaderKey()
	_, keyAreaErr := keys.KeyAreaKey(generation)
	for _, check := range []struct {
		name string
		err  error
	}{
		{keyset.HeaderKeyName, headerErr},
		{keyset.KeyAreaKeyName(generation), keyAreaErr},
	} {
		status := "ok"
		if check.err != nil {
			status = check.err.Error()
		}
		fmt.Fprintf(w, "  %-32s %s\n", check.name, status)
	}
	_, err := keys.ArchiveKeys(generation)
	return err
}
