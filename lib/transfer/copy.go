// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/nxpack/nxpack/lib/fsys"
)

// PartialSuffix is appended to a destination while it is being
// written.
const PartialSuffix = ".part"

// CopyFile copies source to destination through a transfer. Output
// goes to destination+PartialSuffix, which is renamed over destination
// on success and deleted on any failure, including cancellation.
//
// Without a transform the destination is preallocated to the source
// size after checking free space.
func CopyFile(ctx context.Context, filesystem fsys.FS, progress ProgressSink, source, destination string, options Options) error {
	input, err := filesystem.OpenFile(source, fsys.ModeRead)
	if err != nil {
		return fmt.Errorf("opening %s: %w", source, err)
	}
	defer input.Close()

	size, err := input.GetSize()
	if err != nil {
		return fmt.Errorf("sizing %s: %w", source, err)
	}
	if options.Transform == nil && options.Pull == nil {
		if err := fsys.CheckSpace(filesystem, filepath.Dir(destination), size); err != nil {
			return err
		}
	}

	partial := destination + PartialSuffix
	output, err := filesystem.OpenFile(partial, fsys.ModeWrite)
	if err != nil {
		return fmt.Errorf("creating %s: %w", partial, err)
	}
	discard := func(cause error) error {
		output.Close()
		filesystem.DeleteFile(partial)
		return cause
	}

	if options.Transform == nil {
		if err := output.SetSize(size); err != nil {
			return discard(fmt.Errorf("preallocating %s: %w", partial, err))
		}
	}
	if err := Transfer(ctx, progress, size, ReadAt(input), WriteAt(output), options); err != nil {
		return discard(fmt.Errorf("copying %s: %w", source, err))
	}
	if err := output.Close(); err != nil {
		filesystem.DeleteFile(partial)
		return fmt.Errorf("closing %s: %w", partial, err)
	}
	if err := filesystem.RenameFile(partial, destination); err != nil {
		filesystem.DeleteFile(partial)
		return fmt.Errorf("renaming %s: %w", partial, err)
	}
	return nil
}
