// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package store implements the "nxpack store" command group for
// listing, verifying and removing installed applications.
package store

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/nxpack/nxpack/cmd/nxpack/cli"
	"github.com/nxpack/nxpack/lib/contentstore"
	"github.com/nxpack/nxpack/lib/fault"
	"github.com/nxpack/nxpack/lib/forwarder"
)

type storeParams struct {
	cli.GlobalParams
	Store string `flag:"store" desc:"content store root (default: paths.store)"`
}

func (p *storeParams) open(command string) (*contentstore.Store, error) {
	env, err := p.Environment(command)
	if err != nil {
		return nil, err
	}
	return contentstore.Open(cmp.Or(p.Store, env.Config.Paths.Store), env.Logger)
}

// Command returns the "store" command group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "store",
		Summary: "Inspect and maintain the content store",
		Subcommands: []*cli.Command{
			listCommand(),
			verifyCommand(),
			removeCommand(),
		},
	}
}

func listCommand() *cli.Command {
	var params storeParams

	return &cli.Command{
		Name:    "list",
		Summary: "List installed applications",
		Params:  func() any { return &params },
		Run: func(_ context.Context, args []string) error {
			if err := cli.RequireArgs(args, 0, "nxpack store list [flags]"); err != nil {
				return err
			}
			store, err := params.open("store/list")
			if err != nil {
				return err
			}
			applications, err := store.List()
			if err != nil {
				return err
			}
			return printApplications(os.Stdout, applications)
		},
	}
}

func printApplications(w io.Writer, applications []contentstore.Application) error {
	if len(applications) == 0 {
		fmt.Fprintln(w, "no applications installed")
		return nil
	}
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "APPLICATION\tNAME\tAUTHOR\tVERSION\tCONTENTS\tSIZE")
	for _, application := range applications {
		var size int64
		var contents int
		var version uint32
		for _, meta := range application.Metas {
			version = max(version, meta.Key.Version)
			for _, content := range meta.Contents {
				size += content.Size
				contents++
			}
		}
		record := application.Record
		fmt.Fprintf(tw, "%s\t%s\t%s\tv%d\t%d\t%s\n",
			forwarder.FormatTitleID(record.ApplicationID), record.Name, record.Author,
			version, contents, humanize.IBytes(uint64(size)))
	}
	return tw.Flush()
}

func verifyCommand() *cli.Command {
	var params storeParams

	return &cli.Command{
		Name:    "verify",
		Summary: "Rehash every registered content",
		Description: `Rehash every registered content archive and compare it with the digest
recorded at registration. Each mismatch is listed; the command exits 1
when any is found.`,
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string) error {
			if err := cli.RequireArgs(args, 0, "nxpack store verify [flags]"); err != nil {
				return err
			}
			store, err := params.open("store/verify")
			if err != nil {
				return err
			}
			problems, err := store.Verify()
			if err != nil {
				return err
			}
			return reportProblems(os.Stdout, problems)
		},
	}
}

func reportProblems(w io.Writer, problems []contentstore.Problem) error {
	if len(problems) == 0 {
		fmt.Fprintln(w, "all contents verified")
		return nil
	}
	for _, problem := range problems {
		fmt.Fprintf(w, "%s: %v\n", problem.ID, problem.Err)
	}
	return &cli.ExitError{Code: 1}
}

func removeCommand() *cli.Command {
	var params storeParams

	return &cli.Command{
		Name:    "remove",
		Summary: "Remove an installed application and its contents",
		Usage:   "nxpack store remove <application-id> [flags]",
		Params:  func() any { return &params },
		Run: func(_ context.Context, args []string) error {
			if err := cli.RequireArgs(args, 1, "nxpack store remove <application-id> [flags]"); err != nil {
				return fault.Wrap(fault.InvalidArgument, err)
			}
			applicationID, err := contentstore.ParseApplicationID(args[0])
			if err != nil {
				return err
			}
			store, err := params.open("store/remove")
			if err != nil {
				return err
			}
			if err := store.Remove(applicationID); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "removed %s\n", forwarder.FormatTitleID(applicationID))
			return nil
		},
	}
}
