// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/nxpack/nxpack/cmd/nxpack/cli"
	"github.com/nxpack/nxpack/lib/codec"
	"github.com/nxpack/nxpack/lib/fault"
	"github.com/nxpack/nxpack/lib/forwarder"
	"github.com/nxpack/nxpack/lib/nca"
	"github.com/nxpack/nxpack/lib/pfs"
)

type inspectParams struct {
	cli.GlobalParams
	Keys string `flag:"keys" desc:"key file (default: paths.keys)"`
}

func inspectCommand() *cli.Command {
	var params inspectParams

	return &cli.Command{
		Name:    "inspect",
		Summary: "Describe a content archive, NSP or store record",
		Description: `Describe a file by its extension:

  .nca   decrypt the header, list sections and files, verify every
         section's hash tree and decode the content meta or control
         data it carries
  .nsp   list the partition entries and inspect each content archive
  .cbor  print a content store record in CBOR diagnostic notation`,
		Usage:  "nxpack inspect <file> [flags]",
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string) error {
			if err := cli.RequireArgs(args, 1, "nxpack inspect <file> [flags]"); err != nil {
				return fault.Wrap(fault.InvalidArgument, err)
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fault.Wrap(fault.IO, err)
			}

			extension := strings.ToLower(filepath.Ext(args[0]))
			if extension == ".cbor" {
				return inspectRecord(os.Stdout, data)
			}
			if extension != ".nca" && extension != ".nsp" {
				return fault.New(fault.InvalidArgument, "cannot inspect %q files", extension)
			}

			env, err := params.Environment("inspect")
			if err != nil {
				return err
			}
			keys, err := env.LoadKeys(params.Keys)
			if err != nil {
				return err
			}
			headerKey, err := keys.HeaderKey()
			if err != nil {
				return err
			}
			if extension == ".nsp" {
				return inspectPackage(os.Stdout, data, headerKey)
			}
			return inspectArchive(os.Stdout, filepath.Base(args[0]), data, headerKey)
		},
	}
}

func inspectRecord(w io.Writer, data []byte) error {
	diagnostic, err := codec.Diagnose(data)
	if err != nil {
		return fault.Wrap(fault.InvalidArgument, err)
	}
	fmt.Fprintln(w, diagnostic)
	return nil
}

// inspectPackage describes every entry of an NSP and inspects the
// content archives among them.
func inspectPackage(w io.Writer, data []byte, headerKey [nca.HeaderKeySize]byte) error {
	entries, err := pfs.Parse(data)
	if err != nil {
		return fault.Wrap(fault.InvalidArgument, err)
	}
	fmt.Fprintf(w, "%d entries\n", len(entries))
	for _, entry := range entries {
		fmt.Fprintf(w, "  %s %s\n", entry.Name, humanize.IBytes(uint64(entry.Size)))
	}
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name, ".nca") {
			continue
		}
		fmt.Fprintln(w)
		if err := inspectArchive(w, entry.Name, data[entry.Offset:entry.Offset+entry.Size], headerKey); err != nil {
			return fmt.Errorf("%s: %w", entry.Name, err)
		}
	}
	return nil
}

// inspectArchive describes one content archive. A section that fails
// verification is reported and makes the result a ChecksumMismatch.
func inspectArchive(w io.Writer, name string, data []byte, headerKey [nca.HeaderKeySize]byte) error {
	archive, err := nca.Open(data, headerKey)
	if err != nil {
		return fault.Wrap(fault.InvalidArgument, err)
	}
	header := archive.Header
	digest := nca.Digest(data)

	fmt.Fprintf(w, "%s\n", name)
	fmt.Fprintf(w, "  content id:     %s\n", nca.ContentIDOf(digest))
	fmt.Fprintf(w, "  content type:   %s\n", header.ContentType)
	fmt.Fprintf(w, "  program id:     %s\n", forwarder.FormatTitleID(header.ProgramID))
	fmt.Fprintf(w, "  size:           %s\n", humanize.IBytes(header.ContentSize))
	fmt.Fprintf(w, "  key generation: %d\n", header.EffectiveKeyGeneration())
	fmt.Fprintf(w, "  sdk version:    %#08x\n", header.SDKAddonVersion)

	for _, section := range archive.Sections() {
		fmt.Fprintf(w, "  section %d: %s %s [%#x, %#x)\n",
			section.Slot, section.FsType, section.HashType, section.Start, section.End)
		files, err := archive.Files(section.Slot)
		if err != nil {
			return fault.Wrap(fault.InvalidArgument, fmt.Errorf("section %d: %w", section.Slot, err))
		}
		for _, file := range files {
			fmt.Fprintf(w, "    %-32s %s\n", file.Name, humanize.IBytes(uint64(file.Size)))
		}
	}

	verifyErr := archive.Verify()
	if verifyErr != nil {
		fmt.Fprintf(w, "  verify: FAILED: %v\n", verifyErr)
	} else {
		fmt.Fprintf(w, "  verify: ok\n")
	}

	switch header.ContentType {
	case nca.ContentMeta:
		describeContentMeta(w, archive)
	case nca.ContentControl:
		describeControl(w, archive)
	}

	if verifyErr != nil {
		return fault.Wrap(fault.ChecksumMismatch, verifyErr)
	}
	return nil
}

func describeContentMeta(w io.Writer, archive *nca.Archive) {
	files, err := archive.Files(0)
	if err != nil || len(files) == 0 {
		return
	}
	data, err := archive.File(0, files[0].Name)
	if err != nil {
		return
	}
	meta, err := forwarder.ParseContentMeta(data)
	if err != nil {
		fmt.Fprintf(w, "  content meta: %v\n", err)
		return
	}
	fmt.Fprintf(w, "  content meta: %s %s v%d\n", forwarder.FormatTitleID(meta.TitleID), meta.Type, meta.Version)
	for _, content := range meta.Contents {
		fmt.Fprintf(w, "    %-8s %s %s\n", content.Type, content.ID, humanize.IBytes(uint64(content.Size)))
	}
}

func describeControl(w io.Writer, archive *nca.Archive) {
	data, err := archive.File(0, forwarder.NACPPath)
	if err != nil {
		return
	}
	control, err := forwarder.ParseControl(data)
	if err != nil {
		fmt.Fprintf(w, "  control: %v\n", err)
		return
	}
	fmt.Fprintf(w, "  control: %q by %q, version %s\n", control.Name, control.Author, control.DisplayVersion)
}
