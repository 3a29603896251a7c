// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Command nxpack builds, exports and installs forwarder packages.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nxpack/nxpack/cmd/nxpack/commands"
	"github.com/nxpack/nxpack/lib/fault"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output (store verify) return
		// an ExitError with the desired exit code.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, fault.Cancelled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return commands.Root().Execute(ctx, os.Args[1:])
}
